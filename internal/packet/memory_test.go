package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/avmeta/pkg/types"
)

const ns = "http://example.org/ns/"

func TestMemory_SimpleProperty(t *testing.T) {
	m := New()
	_, ok := m.GetProperty(ns, "A")
	assert.False(t, ok)

	require.NoError(t, m.SetProperty(ns, "A", "one"))
	require.NoError(t, m.SetProperty(ns, "A", "two"))
	v, ok := m.GetProperty(ns, "A")
	require.True(t, ok)
	assert.Equal(t, "two", v)
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.DeleteProperty(ns, "A"))
	require.NoError(t, m.DeleteProperty(ns, "A"))
	assert.Equal(t, 0, m.Len())
}

func TestMemory_InvalidAddress(t *testing.T) {
	m := New()
	assert.ErrorIs(t, m.SetProperty("", "A", "x"), types.ErrInvalidPath)
	assert.ErrorIs(t, m.SetProperty(ns, "", "x"), types.ErrInvalidPath)
	assert.ErrorIs(t, m.AppendArrayItem(ns, "", "x", types.Seq), types.ErrInvalidPath)
	assert.ErrorIs(t, m.SetLocalizedText("", "A", "", "", "x"), types.ErrInvalidPath)
}

func TestMemory_Arrays(t *testing.T) {
	m := New()
	require.NoError(t, m.AppendArrayItem(ns, "S", "a", types.Seq))
	require.NoError(t, m.AppendArrayItem(ns, "S", "b", types.Seq))
	assert.Equal(t, 2, m.CountArrayItems(ns, "S"))

	item, ok := m.GetArrayItem(ns, "S", 1)
	require.True(t, ok)
	assert.Equal(t, "a", item)
	_, ok = m.GetArrayItem(ns, "S", 0)
	assert.False(t, ok)
	_, ok = m.GetArrayItem(ns, "S", 3)
	assert.False(t, ok)

	assert.ErrorIs(t, m.AppendArrayItem(ns, "S", "c", types.Bag), types.ErrPropertyShape)
	assert.ErrorIs(t, m.SetProperty(ns, "S", "scalar"), types.ErrPropertyShape)

	_, ok = m.GetProperty(ns, "S")
	assert.False(t, ok, "arrays are not simple properties")
}

func TestMemory_ReplaceArray(t *testing.T) {
	m := New()
	require.NoError(t, m.SetProperty(ns, "first", "x"))
	require.NoError(t, m.SetProperty(ns, "S", "scalar"))
	require.NoError(t, m.ReplaceArray(ns, "S", types.Bag, []string{"a", "b"}))

	p, ok := m.Lookup(ns, "S")
	require.True(t, ok)
	assert.Equal(t, FormBag, p.Form)
	assert.Equal(t, []string{"a", "b"}, p.Items)
	assert.Equal(t, "S", m.Properties()[1].Path, "replacing keeps the position")

	require.NoError(t, m.ReplaceArray(ns, "S", types.Bag, nil))
	_, ok = m.Lookup(ns, "S")
	assert.False(t, ok)
}

func TestMemory_LocalizedText(t *testing.T) {
	m := New()
	_, ok := m.GetLocalizedText(ns, "T", "", types.DefaultLang)
	assert.False(t, ok)

	require.NoError(t, m.SetLocalizedText(ns, "T", "en", "en-US", "Color"))
	p, _ := m.Lookup(ns, "T")
	assert.Equal(t, []AltText{{types.DefaultLang, "Color"}, {"en-US", "Color"}}, p.Alternatives)

	require.NoError(t, m.SetLocalizedText(ns, "T", "en", "en-GB", "Colour"))
	require.NoError(t, m.SetLocalizedText(ns, "T", "", "", "Default"))

	tests := []struct {
		name     string
		generic  string
		specific string
		want     string
	}{
		{"exact", "en", "en-GB", "Colour"},
		{"exact case-insensitive", "en", "EN-us", "Color"},
		{"generic match", "en", "en-AU", "Color"},
		{"x-default", "fr", "fr-FR", "Default"},
		{"defaults", types.DefaultLang, types.DefaultLang, "Default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.GetLocalizedText(ns, "T", tt.generic, tt.specific)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.ErrorIs(t, m.AppendArrayItem(ns, "T", "x", types.Seq), types.ErrPropertyShape)
	require.NoError(t, m.SetProperty(ns, "plain", "x"))
	assert.ErrorIs(t, m.SetLocalizedText(ns, "plain", "", "", "y"), types.ErrPropertyShape)
}

func TestMemory_LocalizedFallsBackToFirst(t *testing.T) {
	m := New()
	require.NoError(t, m.Put(Property{Namespace: ns, Path: "T", Form: FormAlt, Alternatives: []AltText{{"de", "Titel"}}}))
	got, ok := m.GetLocalizedText(ns, "T", "fr", "fr-FR")
	require.True(t, ok)
	assert.Equal(t, "Titel", got)
}

func TestMemory_CloneIsIndependent(t *testing.T) {
	m := New()
	require.NoError(t, m.ReplaceArray(ns, "S", types.Seq, []string{"a"}))
	c := m.Clone()
	require.NoError(t, c.AppendArrayItem(ns, "S", "b", types.Seq))
	assert.Equal(t, 1, m.CountArrayItems(ns, "S"))
	assert.Equal(t, 2, c.CountArrayItems(ns, "S"))
}

func TestJSON_RoundTrip(t *testing.T) {
	m := New()
	require.NoError(t, m.SetProperty(ns, "empty", ""))
	require.NoError(t, m.ReplaceArray(ns, "S", types.Seq, []string{"a", "b"}))
	require.NoError(t, m.SetLocalizedText(ns, "T", "", "", "Title"))

	data, err := Marshal(m)
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, m.Properties(), got.Properties())
}

func TestJSON_Rejects(t *testing.T) {
	_, err := Unmarshal([]byte(`{"properties":[{"namespace":"n","path":"p","form":"tree"}]}`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`{"properties":[{"namespace":"","path":"p","form":"simple","value":"x"}]}`))
	assert.ErrorIs(t, err, types.ErrInvalidPath)

	_, err = Unmarshal([]byte(`[`))
	assert.Error(t, err)
}
