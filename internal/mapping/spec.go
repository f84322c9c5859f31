// Package mapping turns a per-country mapping specification and a record
// context into the flat set of PDF field values to write.
package mapping

import (
	"fmt"

	"github.com/a3tai/visa-pdf-filler/internal/records"
)

// SourceType names how a rule computes its value.
type SourceType string

const (
	SourceField    SourceType = "field"
	SourceLiteral  SourceType = "literal"
	SourceDate     SourceType = "date"
	SourceCoalesce SourceType = "coalesce"
	SourceJoin     SourceType = "join"
	SourceCheck    SourceType = "check"
	SourceExpr     SourceType = "expr"
)

// Spec maps record attributes onto the fields of one PDF template.
type Spec struct {
	Country  string  `json:"country"`
	Template string  `json:"template"`
	Rules    []Rule  `json:"rules"`
	Groups   []Group `json:"groups,omitempty"`
}

// Rule resolves one PDF field.
type Rule struct {
	Field  string `json:"field"`
	Source Source `json:"source"`
}

// Source describes where a rule's value comes from. Which attributes apply
// depends on Type.
type Source struct {
	Type      SourceType `json:"type"`
	Path      string     `json:"path,omitempty"`
	Paths     []string   `json:"paths,omitempty"`
	Value     string     `json:"value,omitempty"`
	Checked   *bool      `json:"checked,omitempty"`
	Format    string     `json:"format,omitempty"`
	Separator *string    `json:"separator,omitempty"`
	Equals    string     `json:"equals,omitempty"`
	Expr      string     `json:"expr,omitempty"`
}

// Group emits the rules of the case matching a discriminator's value.
type Group struct {
	Name          string                `json:"name"`
	Discriminator records.Discriminator `json:"discriminator"`
	Cases         map[string][]Rule     `json:"cases"`
}

// Validate checks the spec's structure beyond what the JSON schema covers:
// known sources and discriminators, well-formed paths and unique field names.
func (s *Spec) Validate() error {
	if s.Country == "" {
		return fmt.Errorf("mapping spec has no country")
	}
	if s.Template == "" {
		return fmt.Errorf("mapping spec %s has no template", s.Country)
	}

	topLevel := make(map[string]bool, len(s.Rules))
	for i, rule := range s.Rules {
		if err := rule.validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		if topLevel[rule.Field] {
			return fmt.Errorf("field %q is mapped more than once", rule.Field)
		}
		topLevel[rule.Field] = true
	}

	for _, group := range s.Groups {
		if records.KnownValues(group.Discriminator) == nil {
			return fmt.Errorf("group %q: unknown discriminator %q", group.Name, group.Discriminator)
		}
		for value, rules := range group.Cases {
			if !records.IsKnown(group.Discriminator, value) {
				return fmt.Errorf("group %q: %q is not a value of %s", group.Name, value, group.Discriminator)
			}
			inCase := make(map[string]bool, len(rules))
			for i, rule := range rules {
				if err := rule.validate(); err != nil {
					return fmt.Errorf("group %q case %q rule %d: %w", group.Name, value, i, err)
				}
				if topLevel[rule.Field] || inCase[rule.Field] {
					return fmt.Errorf("group %q case %q: field %q is mapped more than once", group.Name, value, rule.Field)
				}
				inCase[rule.Field] = true
			}
		}
	}
	return nil
}

// FieldNames lists every field the spec can emit, top-level rules first.
func (s *Spec) FieldNames() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(rules []Rule) {
		for _, r := range rules {
			if !seen[r.Field] {
				seen[r.Field] = true
				names = append(names, r.Field)
			}
		}
	}
	add(s.Rules)
	for _, g := range s.Groups {
		for _, value := range records.KnownValues(g.Discriminator) {
			add(g.Cases[value])
		}
	}
	return names
}

func (r Rule) validate() error {
	if r.Field == "" {
		return fmt.Errorf("rule has no field name")
	}
	src := r.Source
	switch src.Type {
	case SourceField, SourceDate:
		return checkPaths(src.Path)
	case SourceCheck:
		if src.Equals == "" {
			return fmt.Errorf("field %q: check source needs an expected answer", r.Field)
		}
		return checkPaths(src.Path)
	case SourceCoalesce, SourceJoin:
		if len(src.Paths) == 0 {
			return fmt.Errorf("field %q: %s source needs paths", r.Field, src.Type)
		}
		return checkPaths(src.Paths...)
	case SourceLiteral:
		if src.Value == "" && src.Checked == nil {
			return fmt.Errorf("field %q: literal source needs a value or checked flag", r.Field)
		}
		return nil
	case SourceExpr:
		if src.Expr == "" {
			return fmt.Errorf("field %q: expr source needs an expression", r.Field)
		}
		if _, err := compileExpr(src.Expr); err != nil {
			return fmt.Errorf("field %q: %w", r.Field, err)
		}
		return nil
	default:
		return fmt.Errorf("field %q: unknown source type %q", r.Field, src.Type)
	}
}

func checkPaths(paths ...string) error {
	for _, p := range paths {
		if _, _, err := records.SplitPath(p); err != nil {
			return err
		}
	}
	return nil
}
