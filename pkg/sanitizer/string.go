package sanitizer

import (
	"strings"
	"unicode"
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeText is used for notes, reasons and labels.
func NormalizeText(s string) string {
	p := Pipeline{
		stripControl,
		TrimAndNormalize,
	}
	return p.Apply(s)
}

func NormalizeDay(day string) string {
	return trimAndLower(day)
}

func NormalizeClock(clock string) string {
	clock = strings.TrimSpace(clock)
	return reShortHour.ReplaceAllString(clock, "0$1:$2")
}

func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}
