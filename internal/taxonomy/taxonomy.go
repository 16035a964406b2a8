// Package taxonomy holds the fixed two-level field/subfield scheme used to
// classify technologies. A Taxonomy is immutable once loaded.
package taxonomy

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Fallback is the field that absorbs anything the classifier cannot place.
const Fallback = "Other"

//go:embed taxonomy.yaml
var embedded []byte

// Field is one top-level entry.
type Field struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Subfields   []string `yaml:"subfields" json:"subfields"`
	Keywords    []string `yaml:"keywords" json:"keywords,omitempty"`
}

// Listing is the read-only view served to presentation layers.
type Listing struct {
	Name      string   `json:"name"`
	Subfields []string `json:"subfields"`
}

// Taxonomy is an ordered set of fields with case-insensitive lookup.
type Taxonomy struct {
	fields []Field
	index  map[string]int
}

var (
	defaultOnce sync.Once
	defaultTax  *Taxonomy
)

// Default returns the embedded taxonomy, parsed on first use.
func Default() *Taxonomy {
	defaultOnce.Do(func() {
		t, err := Parse(embedded)
		if err != nil {
			panic(fmt.Sprintf("taxonomy: embedded definition invalid: %v", err))
		}
		defaultTax = t
	})
	return defaultTax
}

// Parse builds a Taxonomy from a YAML list of fields. Every field needs at
// least one subfield and the Fallback field must be present.
func Parse(data []byte) (*Taxonomy, error) {
	var fields []Field
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if len(fields) == 0 {
		return nil, errors.New("taxonomy has no fields")
	}
	t := &Taxonomy{fields: fields, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return nil, fmt.Errorf("taxonomy field %d has no name", i)
		}
		if len(f.Subfields) == 0 {
			return nil, fmt.Errorf("taxonomy field %q has no subfields", name)
		}
		key := strings.ToLower(name)
		if _, dup := t.index[key]; dup {
			return nil, fmt.Errorf("taxonomy field %q defined twice", name)
		}
		t.index[key] = i
	}
	if _, ok := t.index[strings.ToLower(Fallback)]; !ok {
		return nil, fmt.Errorf("taxonomy is missing the %q field", Fallback)
	}
	return t, nil
}

// Names returns the top-level field names in definition order.
func (t *Taxonomy) Names() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.Name
	}
	return names
}

// Field looks a field up by name, ignoring case and surrounding space.
func (t *Taxonomy) Field(name string) (Field, bool) {
	i, ok := t.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Field{}, false
	}
	f := t.fields[i]
	f.Subfields = append([]string(nil), f.Subfields...)
	f.Keywords = append([]string(nil), f.Keywords...)
	return f, true
}

// Subfields returns the ordered subfields of name, or nil.
func (t *Taxonomy) Subfields(name string) []string {
	f, ok := t.Field(name)
	if !ok {
		return nil
	}
	return f.Subfields
}

// Contains reports whether (field, subfield) is an exact taxonomy pair.
func (t *Taxonomy) Contains(field, subfield string) bool {
	i, ok := t.index[strings.ToLower(field)]
	if !ok || t.fields[i].Name != field {
		return false
	}
	for _, s := range t.fields[i].Subfields {
		if s == subfield {
			return true
		}
	}
	return false
}

// Listing returns every field name with its ordered subfields.
func (t *Taxonomy) Listing() []Listing {
	out := make([]Listing, len(t.fields))
	for i, f := range t.fields {
		out[i] = Listing{Name: f.Name, Subfields: append([]string(nil), f.Subfields...)}
	}
	return out
}

// Resolve maps model output onto a valid pair. Unknown fields become
// Fallback; unknown subfields become the field's first subfield.
func (t *Taxonomy) Resolve(field, subfield string) (string, string) {
	i, ok := t.index[strings.ToLower(strings.TrimSpace(field))]
	if !ok {
		i = t.index[strings.ToLower(Fallback)]
	}
	f := t.fields[i]
	want := strings.ToLower(strings.TrimSpace(subfield))
	for _, s := range f.Subfields {
		if strings.ToLower(s) == want {
			return f.Name, s
		}
	}
	return f.Name, f.Subfields[0]
}

// PromptText renders the taxonomy for inclusion in a classification prompt.
func (t *Taxonomy) PromptText() string {
	lines := []string{"Available classification fields and subfields:\n"}
	for _, f := range t.fields {
		lines = append(lines, fmt.Sprintf("\n%s: %s", f.Name, f.Description), "  Subfields:")
		for _, s := range f.Subfields {
			lines = append(lines, "    - "+s)
		}
	}
	return strings.Join(lines, "\n")
}
