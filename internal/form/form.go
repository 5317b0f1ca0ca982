// Package form describes dialog fields as typed descriptors and holds the
// values typed into them.
package form

import (
	"errors"
	"fmt"

	"github.com/diewo77/rbac-console/internal/models"
)

// Kind selects how a field is rendered and which values it accepts.
type Kind string

const (
	KindText   Kind = "text"
	KindSelect Kind = "select"
)

var (
	ErrUnknownField  = errors.New("form: unknown field")
	ErrInvalidChoice = errors.New("form: value is not one of the field choices")
)

// Field describes one input. Label is an i18n code. Choices is only
// meaningful for KindSelect.
type Field struct {
	Name    string
	Label   string
	Kind    Kind
	Choices []string
}

// Text returns a free-text field.
func Text(name, label string) Field {
	return Field{Name: name, Label: label, Kind: KindText}
}

// Select returns a closed-choice field.
func Select(name, label string, choices []string) Field {
	return Field{Name: name, Label: label, Kind: KindSelect, Choices: choices}
}

// Accepts reports whether value can be stored in the field. Empty is
// always accepted: the dialog does not enforce required fields.
func (f Field) Accepts(value string) bool {
	if f.Kind != KindSelect || value == "" {
		return true
	}
	for _, c := range f.Choices {
		if c == value {
			return true
		}
	}
	return false
}

// PermissionFields are the inputs of the "Add New Permission" dialog.
func PermissionFields() []Field {
	return []Field{
		Text("name", "field.name"),
		Select("resource", "field.resource", models.Resources),
		Select("action", "field.action", models.Actions),
	}
}

// Option is one rendered choice of a select input.
type Option struct {
	Value    string
	Selected bool
}

// Options marks the choice equal to selected.
func Options(choices []string, selected string) []Option {
	out := make([]Option, 0, len(choices))
	for _, c := range choices {
		out = append(out, Option{Value: c, Selected: c == selected})
	}
	return out
}

// Input is a field paired with its current value, ready for a template.
type Input struct {
	Field
	Value   string
	Options []Option
}

// Form holds the values of an ordered set of fields.
type Form struct {
	fields []Field
	values map[string]string
}

// New returns an empty form over fields.
func New(fields ...Field) *Form {
	f := &Form{fields: fields}
	f.Reset()
	return f
}

// NewPermission returns the permission dialog form.
func NewPermission() *Form { return New(PermissionFields()...) }

func (f *Form) field(name string) (Field, bool) {
	for _, fd := range f.fields {
		if fd.Name == name {
			return fd, true
		}
	}
	return Field{}, false
}

// Set stores value in the named field.
func (f *Form) Set(name, value string) error {
	fd, ok := f.field(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	if !fd.Accepts(value) {
		return fmt.Errorf("%w: %s=%q", ErrInvalidChoice, name, value)
	}
	f.values[name] = value
	return nil
}

// Get returns the value of the named field.
func (f *Form) Get(name string) string { return f.values[name] }

// Reset clears every value.
func (f *Form) Reset() {
	f.values = make(map[string]string, len(f.fields))
	for _, fd := range f.fields {
		f.values[fd.Name] = ""
	}
}

// Fields returns the descriptors in display order.
func (f *Form) Fields() []Field { return f.fields }

// Inputs returns the fields with their values in display order.
func (f *Form) Inputs() []Input {
	out := make([]Input, 0, len(f.fields))
	for _, fd := range f.fields {
		in := Input{Field: fd, Value: f.values[fd.Name]}
		if fd.Kind == KindSelect {
			in.Options = Options(fd.Choices, in.Value)
		}
		out = append(out, in)
	}
	return out
}

// Permission converts the values into a creation request.
func (f *Form) Permission() models.NewPermission {
	return models.NewPermission{
		Name:     f.values["name"],
		Resource: f.values["resource"],
		Action:   f.values["action"],
	}
}
