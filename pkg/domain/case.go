package domain

import (
	"bytes"
	"encoding/json"
)

// DefaultCaseID is the reserved id of the fallback case.
const DefaultCaseID = "default"

// Case maps a discriminant value to a successor and a set of variable assignments.
type Case struct {
	ID          string      `json:"id"`
	Variables   Assignments `json:"variables,omitempty"`
	OConnection string      `json:"o_connection,omitempty"`
}

// IsDefault reports whether c is the fallback case.
func (c Case) IsDefault() bool { return c.ID == DefaultCaseID }

// Assignment binds a variable name to a (templated) value or source key.
type Assignment struct {
	Name  string
	Value string
}

// Assignments is an ordered name/value mapping. Order is the declaration order
// of the flow definition and is the order in which assignments are applied.
type Assignments []Assignment

// Lookup returns the value bound to name.
func (a Assignments) Lookup(name string) (string, bool) {
	for _, as := range a {
		if as.Name == name {
			return as.Value, true
		}
	}
	return "", false
}

// Names returns the bound names in declaration order.
func (a Assignments) Names() []string {
	names := make([]string, len(a))
	for i, as := range a {
		names[i] = as.Name
	}
	return names
}

// FindCase returns the first case whose id equals value, falling back to the
// default case. ok is false when neither exists.
func FindCase(cases []Case, value string) (c Case, ok bool) {
	for _, c := range cases {
		if c.ID == value {
			return c, true
		}
	}
	for _, c := range cases {
		if c.IsDefault() {
			return c, true
		}
	}
	return Case{}, false
}

// MarshalJSON encodes the assignments as an object, keeping declaration order.
func (a Assignments) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, as := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(as.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(as.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
