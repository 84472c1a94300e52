package slots

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	indexPattern = regexp.MustCompile(`^\d+$`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{1,2})/(\d{1,2})`),
		regexp.MustCompile(`(\d{1,2})-(\d{1,2})`),
		regexp.MustCompile(`(\d{1,2})\.(\d{1,2})`),
	}

	clockPattern = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	hourPattern  = regexp.MustCompile(`(\d{1,2})h(\d{2})?`)
	horasPattern = regexp.MustCompile(`(\d{1,2}) horas?`)
)

// Choose resolves a free-text pick against candidates.
//
// A bare integer is a 1-based index and is never clamped. Otherwise a "D/M"
// style date and an "H:MM", "HhMM" or "H horas" time are extracted
// independently and the first candidate matching every extracted fragment
// wins. When neither fragment is present the first candidate is returned.
func Choose(text string, candidates []Slot) (Slot, bool) {
	text = strings.TrimSpace(text)

	if indexPattern.MatchString(text) {
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 || n > len(candidates) {
			return Slot{}, false
		}
		return candidates[n-1], true
	}

	date, hasDate := extractDate(text)
	clock, hasClock := extractTime(text)

	for _, c := range candidates {
		if hasDate && !strings.HasPrefix(date, c.DateFormatted[:min(5, len(c.DateFormatted))]) {
			continue
		}
		if hasClock && clock != c.Time.String() {
			continue
		}
		return c, true
	}

	return Slot{}, false
}

// extractDate returns "DD/MM" for the first date-like fragment.
func extractDate(text string) (string, bool) {
	for _, p := range datePatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			day, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			return fmt.Sprintf("%02d/%02d", day, month), true
		}
	}
	return "", false
}

// extractTime returns "HH:MM" for the first time-like fragment.
func extractTime(text string) (string, bool) {
	if m := clockPattern.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%02d:%02d", h, mm), true
	}
	if m := hourPattern.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		mm := 0
		if m[2] != "" {
			mm, _ = strconv.Atoi(m[2])
		}
		return fmt.Sprintf("%02d:%02d", h, mm), true
	}
	if m := horasPattern.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		return fmt.Sprintf("%02d:00", h), true
	}
	return "", false
}
