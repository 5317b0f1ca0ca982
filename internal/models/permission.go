package models

import (
	"strings"
	"unicode"
)

// Resources is the closed set of resource types a permission can target.
var Resources = []string{"user", "installation", "measurement", "logistic", "invoice"}

// Actions is the closed set of operations a permission can grant.
var Actions = []string{"create", "read", "update", "delete"}

// Permission is a single grant as returned by the remote API.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	Method      string `json:"method,omitempty"`
}

// DisplayName returns the name formatted for tables.
func (p Permission) DisplayName() string {
	return DisplayName(p.Name)
}

// NewPermission is the body of a permission creation request.
type NewPermission struct {
	Name     string `json:"name"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// DisplayName replaces underscores with spaces and upper-cases the first
// letter of every word: "user_create" becomes "User Create".
// Already formatted input is returned unchanged.
func DisplayName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	inWord := false
	for _, r := range strings.ReplaceAll(name, "_", " ") {
		word := unicode.IsLetter(r) || unicode.IsDigit(r)
		if word && !inWord {
			r = unicode.ToUpper(r)
		}
		inWord = word
		b.WriteRune(r)
	}
	return b.String()
}

// IsResource reports whether s is one of Resources.
func IsResource(s string) bool { return contains(Resources, s) }

// IsAction reports whether s is one of Actions.
func IsAction(s string) bool { return contains(Actions, s) }

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
