package passwordx

import (
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const DefaultMaxSimilarity = 0.7

var nonWord = regexp.MustCompile(`\W+`)

// Similarity rejects passwords whose character overlap with an account
// attribute, or with any word-separated part of it, reaches MaxSimilarity.
type Similarity struct {
	MaxSimilarity float64
}

func (r Similarity) Check(password string, attrs Attributes) *Violation {
	pwd := strings.ToLower(password)

	fields := []struct {
		name  string
		value string
	}{
		{"username", attrs.Username},
		{"first name", attrs.FirstName},
		{"last name", attrs.LastName},
		{"email address", attrs.Email},
	}

	for _, f := range fields {
		if f.value == "" {
			continue
		}
		value := strings.ToLower(f.value)
		parts := append(nonWord.Split(value, -1), value)

		for _, part := range parts {
			if exceedsLengthRatio(pwd, r.MaxSimilarity, part) {
				continue
			}
			if quickRatio(pwd, part) >= r.MaxSimilarity {
				return &Violation{
					Code:    "password_too_similar",
					Message: "The password is too similar to the " + f.name + ".",
				}
			}
		}
	}
	return nil
}

// exceedsLengthRatio reports whether value is so short relative to the
// password that it cannot reach the similarity threshold. Skipping these keeps
// one-letter name parts from tripping the rule.
func exceedsLengthRatio(password string, maxSimilarity float64, value string) bool {
	pwdLen := len([]rune(password))
	valueLen := len([]rune(value))
	bound := maxSimilarity / 2 * float64(pwdLen)
	return pwdLen >= 10*valueLen && float64(valueLen) < bound
}

func quickRatio(a, b string) float64 {
	return difflib.NewMatcher(runes(a), runes(b)).QuickRatio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
