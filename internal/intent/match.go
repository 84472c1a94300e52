package intent

import (
	"strings"
	"unicode"
)

// Tokens lowercases text and splits it into letter/digit words. E-mail
// addresses stay whole so their parts never match a keyword.
func Tokens(text string) []string {
	var out []string
	for _, field := range strings.Fields(strings.ToLower(text)) {
		if strings.Contains(field, "@") {
			out = append(out, field)
			continue
		}
		out = append(out, strings.FieldsFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})...)
	}
	return out
}

// MatchAny reports whether any phrase occurs in text as a whole-word
// sequence, so "ola" matches "ola, tudo bem" but not "escola".
func MatchAny(text string, phrases []string) bool {
	words := Tokens(text)
	for _, p := range phrases {
		if containsSeq(words, Tokens(p)) {
			return true
		}
	}
	return false
}

func containsSeq(words, seq []string) bool {
	if len(seq) == 0 || len(seq) > len(words) {
		return false
	}
outer:
	for i := 0; i+len(seq) <= len(words); i++ {
		for j, w := range seq {
			if words[i+j] != w {
				continue outer
			}
		}
		return true
	}
	return false
}
