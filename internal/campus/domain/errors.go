package domain

import (
	"sort"
	"strings"
)

// Form field names shared by the validator, the handlers and the templates.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
	FieldRole            = "user_type"
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
)

// FieldErrors collects validation messages per form field. It is an error so
// services can return it directly.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

func (fe FieldErrors) Has(field string) bool {
	return len(fe[field]) > 0
}

func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// First returns the first message for field, used by the JSON API.
func (fe FieldErrors) First(field string) string {
	if msgs := fe[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("validation failed")
	for _, f := range fields {
		b.WriteString("; ")
		b.WriteString(f)
		b.WriteString(": ")
		b.WriteString(strings.Join(fe[f], " "))
	}
	return b.String()
}
