package layout

import (
	"strings"
	"unicode/utf8"
)

const (
	maxBoxFontSize = 16
	minFontSize    = 1
	mergeFontSize  = 10
	lineHeight     = 1.5
	fillRatio      = 0.9

	groupsTruncateAt = 26
	groupsSplitAt    = 12
	groupsMergeAt    = 18
)

// MeasureFunc returns the rendered width of text at a font size.
type MeasureFunc func(text string, size float64) float64

// BoxElements lists the text pieces of one lesson box: subject, "(kind)", the
// participant list (split or truncated when long) and the room. Long
// participant lists trigger a greedy merge of adjacent pieces.
func BoxElements(subject, kind, groups, room string, measure MeasureFunc) []string {
	runes := []rune(groups)
	var elements []string
	switch {
	case len(runes) > groupsTruncateAt:
		elements = []string{subject, "(" + kind + ")", string(runes[:groupsSplitAt]) + "...", room}
	case len(runes) > groupsSplitAt:
		elements = []string{subject, "(" + kind + ")", string(runes[:groupsSplitAt]), string(runes[groupsSplitAt:]), room}
	default:
		elements = []string{subject, "(" + kind + ")", groups, room}
	}

	kept := elements[:0]
	for _, el := range elements {
		if el != "" {
			kept = append(kept, el)
		}
	}
	if utf8.RuneCountInString(groups) > groupsMergeAt {
		kept = mergeAdjacent(kept, measure)
	}
	return kept
}

// mergeAdjacent joins neighbours whose combined width does not exceed the
// widest single piece.
func mergeAdjacent(elements []string, measure MeasureFunc) []string {
	longest := 0.0
	for _, el := range elements {
		if w := measure(el, mergeFontSize); w > longest {
			longest = w
		}
	}
	merged := make([]string, 0, len(elements))
	for i := 0; i < len(elements); {
		current := elements[i]
		if i+1 < len(elements) && measure(current, mergeFontSize)+measure(elements[i+1], mergeFontSize) <= longest {
			current += ", " + elements[i+1]
			i += 2
		} else {
			i++
		}
		merged = append(merged, current)
	}
	return merged
}

// FitText searches the largest font size, then the fewest lines, at which the
// elements fit a width x height box. Each line joins consecutive elements with
// ", ". It reports false when nothing fits even at 1pt.
func FitText(elements []string, width, height float64, measure MeasureFunc) ([]string, float64, bool) {
	if len(elements) == 0 {
		return nil, 0, false
	}
	for size := float64(maxBoxFontSize); size >= minFontSize; size-- {
		for perLine := len(elements); perLine >= 1; perLine-- {
			lines := groupLines(elements, perLine)
			if lineHeight*size*float64(len(lines)) > height {
				continue
			}
			if fitsWidth(lines, size, width*fillRatio, measure) {
				return lines, size, true
			}
		}
	}
	return nil, 0, false
}

func groupLines(elements []string, perLine int) []string {
	lines := make([]string, 0, (len(elements)+perLine-1)/perLine)
	for j := 0; j < len(elements); j += perLine {
		end := j + perLine
		if end > len(elements) {
			end = len(elements)
		}
		lines = append(lines, strings.Join(elements[j:end], ", "))
	}
	return lines
}

func fitsWidth(lines []string, size, limit float64, measure MeasureFunc) bool {
	for _, line := range lines {
		if measure(line, size) > limit {
			return false
		}
	}
	return true
}
