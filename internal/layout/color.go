package layout

import (
	"crypto/md5"
	"fmt"
	"math/big"

	"github.com/noah-isme/timetable-grid-api/internal/models"
)

// White is the fill used in no-colour mode.
const White = "#ffffff"

var (
	hueModulus        = big.NewInt(360)
	saturationModulus = big.NewInt(40)
	valueModulus      = big.NewInt(50)
)

// Color derives a stable fill for a (subject, kind, first participant) triple.
// The md5 digest, read as one big integer, picks hue, saturation and value.
func Color(subject string, kind models.LessonKind, participants []string) string {
	key := subject + string(kind)
	if len(participants) > 0 {
		key += participants[0]
	}
	digest := md5.Sum([]byte(key))
	hash := new(big.Int).SetBytes(digest[:])

	mod := func(m *big.Int) float64 {
		return float64(new(big.Int).Mod(hash, m).Int64())
	}
	h := mod(hueModulus) / 360.0
	s := 0.6 + mod(saturationModulus)/100.0
	v := 0.5 + mod(valueModulus)/100.0

	r, g, b := hsvToRGB(h, s, v)
	return fmt.Sprintf("#%02x%02x%02x", int(r*255), int(g*255), int(b*255))
}

func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	if s == 0 {
		return v, v, v
	}
	i := int(h * 6.0)
	f := (h * 6.0) - float64(i)
	p := v * (1.0 - s)
	q := v * (1.0 - s*f)
	t := v * (1.0 - s*(1.0-f))
	switch i % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}
