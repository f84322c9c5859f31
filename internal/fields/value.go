// Package fields defines the values written into PDF form fields.
package fields

import (
	"encoding/json"
	"sort"
)

// Kind is the shape of a field value
type Kind int

const (
	KindText Kind = iota
	KindBool
)

func (k Kind) String() string {
	if k == KindBool {
		return "bool"
	}
	return "text"
}

// Value is either text or a boolean. Dates are already rendered to text.
type Value struct {
	Kind Kind
	Text string
	Bool bool
}

// Text returns a text value
func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// Bool returns a boolean value
func Bool(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// IsBool reports whether v holds a boolean
func (v Value) IsBool() bool {
	return v.Kind == KindBool
}

// String renders the value as text; booleans become Yes or No.
func (v Value) String() string {
	if v.Kind == KindBool {
		if v.Bool {
			return "Yes"
		}
		return "No"
	}
	return v.Text
}

// MarshalJSON encodes text as a JSON string and booleans as JSON booleans.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == KindBool {
		return json.Marshal(v.Bool)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON accepts a JSON string or boolean.
func (v *Value) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = Bool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = Text(s)
	return nil
}

// Values maps PDF field names to the value to write.
type Values map[string]Value

// Names returns the field names in lexical order.
func (vs Values) Names() []string {
	names := make([]string, 0, len(vs))
	for name := range vs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
