package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataStringTriesSynonymsInOrder(t *testing.T) {
	m := Metadata{"patentStatus": "  Pending ", "ip_status": "granted"}

	v, key, ok := m.String("patent_status", "patentStatus", "ip_status")
	require.True(t, ok)
	assert.Equal(t, "Pending", v)
	assert.Equal(t, "patentStatus", key)
}

func TestMetadataStringSkipsBlankAndNonScalar(t *testing.T) {
	m := Metadata{"a": "   ", "b": map[string]any{"x": 1}, "c": 42}

	v, key, ok := m.String("a", "b", "c")
	require.True(t, ok)
	assert.Equal(t, "42", v)
	assert.Equal(t, "c", key)

	_, _, ok = m.String("missing")
	assert.False(t, ok)
}

func TestMetadataBoolRequiresRealBoolean(t *testing.T) {
	m := Metadata{"patent": "yes", "has_patent": true}

	v, key, ok := m.Bool("patent", "has_patent")
	require.True(t, ok)
	assert.True(t, v)
	assert.Equal(t, "has_patent", key)
}

func TestMetadataList(t *testing.T) {
	m := Metadata{"empty": []any{}, "numbers": []any{"US1234567"}}

	items, key, ok := m.List("empty", "numbers")
	require.True(t, ok)
	assert.Equal(t, "numbers", key)
	assert.Len(t, items, 1)
}

func TestMetadataHas(t *testing.T) {
	m := Metadata{
		"applications":       []any{"sensing"},
		"advantages":         "",
		"key_points":         []any{},
		"development_stage":  "   ",
		"publications":       0,
		"market_opportunity": map[string]any{"size": "large"},
		"flag":               false,
	}

	assert.True(t, m.Has("applications"))
	assert.False(t, m.Has("advantages"))
	assert.False(t, m.Has("key_points"))
	assert.False(t, m.Has("development_stage"))
	assert.False(t, m.Has("publications"))
	assert.True(t, m.Has("market_opportunity"))
	assert.False(t, m.Has("flag"))
	assert.False(t, m.Has("absent"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "plain", Format("plain"))
	assert.Equal(t, `["a","b"]`, Format([]any{"a", "b"}))
	assert.Equal(t, "3", Format(3))
	assert.Equal(t, "", Format(nil))
}

func TestKeysSorted(t *testing.T) {
	m := Metadata{"b": 1, "a": 2, "c": 3}
	assert.Equal(t, []string{"a", "b", "c"}, m.Keys())
}
