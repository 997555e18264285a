package layout

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// subjects at least this long are abbreviated before drawing
	initialsThreshold = 8
	singleWordLimit   = 12
	singleWordCut     = 5
)

var wordSeparator = regexp.MustCompile(`[ -]+`)

var keptWords = map[string]struct{}{
	"и": {}, "или": {}, "но": {}, "да": {}, "что": {}, "как": {}, "на": {}, "под": {},
	"за": {}, "с": {}, "к": {}, "в": {}, "до": {}, "из": {}, "у": {}, "при": {},
}

// DisplaySubject returns the subject as it is drawn inside a box.
func DisplaySubject(subject string) string {
	if utf8.RuneCountInString(subject) < initialsThreshold {
		return subject
	}
	return ExtractInitials(subject)
}

// ExtractInitials abbreviates a subject name: "Теория вероятностей и
// математическая статистика" becomes "ТВиМС". A single word is kept when short
// and cut to its first five letters otherwise.
func ExtractInitials(subject string) string {
	words := wordSeparator.Split(subject, -1)
	if len(words) <= 1 {
		runes := []rune(subject)
		if len(runes) < singleWordLimit {
			return subject
		}
		return string(runes[:singleWordCut])
	}

	var b strings.Builder
	for _, word := range words {
		if word == "" {
			continue
		}
		lower := strings.ToLower(word)
		if _, ok := keptWords[lower]; ok {
			b.WriteString(lower)
			continue
		}
		first, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(first))
	}
	return b.String()
}

// ShortenGroups joins participants with ", ", keeping the first one whole and
// only the part after the first dash of the others.
func ShortenGroups(participants []string) string {
	parts := make([]string, len(participants))
	for i, p := range participants {
		if i == 0 {
			parts[i] = p
			continue
		}
		if _, rest, ok := strings.Cut(p, "-"); ok {
			parts[i] = rest
		} else {
			parts[i] = p
		}
	}
	return strings.Join(parts, ", ")
}
