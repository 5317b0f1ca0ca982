// Package validation collects per-field violations as i18n codes.
package validation

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Violations maps a field name to an i18n code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators. Each keeps the first violation of a field.
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.add(field, "required")
	}
}

func Email(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		v.add(field, "invalid_email")
	}
}

func MaxLen(field, value string, n int, v Violations) {
	if utf8.RuneCountInString(value) > n {
		v.add(field, "too_long")
	}
}

func (v Violations) add(field, code string) {
	if _, exists := v[field]; !exists {
		v[field] = code
	}
}
