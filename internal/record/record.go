// Package record holds the scraped technology record consumed by every
// enrichment stage and a loose accessor over its free-form metadata.
package record

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Record is one technology listing as produced by an upstream scraper.
type Record struct {
	ID          string   `json:"id" yaml:"id" db:"id"`
	University  string   `json:"university,omitempty" yaml:"university,omitempty" db:"university"`
	Title       string   `json:"title" yaml:"title" db:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty" db:"description"`
	URL         string   `json:"url" yaml:"url" db:"url"`
	Metadata    Metadata `json:"raw_data,omitempty" yaml:"raw_data,omitempty" db:"-"`
}

// Metadata is the scraper's raw_data object. Keys are looked up by an
// ordered list of synonyms; absent keys are never an error.
type Metadata map[string]any

// Lookup returns the value of the first key present in m.
func (m Metadata) Lookup(keys ...string) (any, string, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, k, true
		}
	}
	return nil, "", false
}

// String returns the first synonym holding a non-blank scalar, trimmed.
func (m Metadata) String(keys ...string) (string, string, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s, k, true
		}
	}
	return "", "", false
}

// Bool reports the first synonym holding a real boolean.
func (m Metadata) Bool(keys ...string) (value bool, key string, ok bool) {
	for _, k := range keys {
		if b, isBool := m[k].(bool); isBool {
			return b, k, true
		}
	}
	return false, "", false
}

// List returns the first synonym holding a non-empty slice.
func (m Metadata) List(keys ...string) ([]any, string, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		items, err := cast.ToSliceE(v)
		if err != nil || len(items) == 0 {
			continue
		}
		return items, k, true
	}
	return nil, "", false
}

// Has reports whether key holds a truthy value whose text form is not blank.
func (m Metadata) Has(key string) bool {
	v, ok := m[key]
	if !ok || !truthy(v) {
		return false
	}
	return strings.TrimSpace(Format(v)) != ""
}

// Keys returns the metadata keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Format renders a metadata value for prompts and reports. Strings are
// returned as-is, everything else as compact JSON.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return !rv.IsZero()
	}
	return true
}
