package chat

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
)

const (
	nationalIDDigits = 11
	minCardLength    = 6
	maxCardLength    = 50
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	birthDateLayouts = []string{"2/1/2006", "2-1-2006", "2.1.2006"}
	earliestBirth    = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

	emailSkipWords     = []string{"pular", "não", "nao"}
	insuranceSkipWords = []string{"particular", "nao", "não", "sem plano", "pular"}
)

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ExtractNationalID returns the digits of msg when there are exactly 11.
func ExtractNationalID(msg string) (string, bool) {
	d := digitsOf(msg)
	return d, len(d) == nationalIDDigits
}

// FormatNationalID renders 11 digits as XXX.XXX.XXX-XX.
func FormatNationalID(id string) string {
	if len(id) != nationalIDDigits {
		return id
	}
	return id[:3] + "." + id[3:6] + "." + id[6:9] + "-" + id[9:]
}

// ExtractPhone accepts 10 or 11 digits (area code included).
func ExtractPhone(msg string) (string, bool) {
	d := digitsOf(msg)
	return d, len(d) >= 10 && len(d) <= 11
}

func ExtractEmail(msg string) (string, bool) {
	m := emailPattern.FindString(msg)
	return m, m != ""
}

// ParseBirthDate accepts DD/MM/YYYY, DD-MM-YYYY and DD.MM.YYYY between
// 1900-01-01 and today.
func ParseBirthDate(msg string, today time.Time) (time.Time, bool) {
	s := strings.TrimSpace(msg)
	limit := appointment.Date(today)
	for _, layout := range birthDateLayouts {
		d, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if d.After(limit) || d.Before(earliestBirth) {
			return time.Time{}, false
		}
		return d, true
	}
	return time.Time{}, false
}

func isSkip(msg string, words []string) bool {
	s := strings.ToLower(strings.TrimSpace(msg))
	for _, w := range words {
		if s == w {
			return true
		}
	}
	return false
}

// ParseInsurance reads the insurance-card answer. Skip words mean private
// billing; otherwise at least six alphanumerics form the card number.
func ParseInsurance(msg string) (card *string, billing appointment.BillingType, ok bool) {
	if isSkip(msg, insuranceSkipWords) {
		return nil, appointment.BillingPrivate, true
	}

	var b strings.Builder
	for _, r := range msg {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	clean := []rune(b.String())
	if len(clean) < minCardLength {
		return nil, "", false
	}
	if len(clean) > maxCardLength {
		clean = clean[:maxCardLength]
	}
	s := string(clean)
	return &s, appointment.BillingInsured, true
}
