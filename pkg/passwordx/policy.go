// Package passwordx holds the password strength policy applied at signup.
//
// A Policy is an ordered list of rules; every rule that fails contributes a
// Violation so the form can show all problems at once.
package passwordx

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Attributes are the account fields a password must not resemble.
type Attributes struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
}

type Violation struct {
	Code    string
	Message string
}

type Rule interface {
	Check(password string, attrs Attributes) *Violation
}

type Policy []Rule

// Default mirrors the usual web-framework defaults: similarity to account
// attributes, eight characters, common-password list, not all digits.
func Default() Policy {
	return Policy{
		Similarity{MaxSimilarity: DefaultMaxSimilarity},
		MinLength{Min: DefaultMinLength},
		Common{},
		Numeric{},
	}
}

// Validate runs every rule and returns the violations in rule order.
func (p Policy) Validate(password string, attrs Attributes) []Violation {
	var out []Violation
	for _, rule := range p {
		if v := rule.Check(password, attrs); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// Messages flattens violations for display.
func Messages(vs []Violation) []string {
	msgs := make([]string, len(vs))
	for i, v := range vs {
		msgs[i] = v.Message
	}
	return msgs
}

const DefaultMinLength = 8

type MinLength struct {
	Min int
}

func (r MinLength) Check(password string, _ Attributes) *Violation {
	if utf8.RuneCountInString(password) >= r.Min {
		return nil
	}
	unit := "characters"
	if r.Min == 1 {
		unit = "character"
	}
	return &Violation{
		Code:    "password_too_short",
		Message: fmt.Sprintf("This password is too short. It must contain at least %d %s.", r.Min, unit),
	}
}

type Numeric struct{}

func (Numeric) Check(password string, _ Attributes) *Violation {
	if password == "" {
		return nil
	}
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return nil
		}
	}
	return &Violation{Code: "password_entirely_numeric", Message: "This password is entirely numeric."}
}

type Common struct{}

func (Common) Check(password string, _ Attributes) *Violation {
	if !IsCommon(password) {
		return nil
	}
	return &Violation{Code: "password_too_common", Message: "This password is too common."}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
