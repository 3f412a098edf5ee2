package avm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mesh-intelligence/avmeta/internal/packet"
	"github.com/mesh-intelligence/avmeta/pkg/fields"
	"github.com/mesh-intelligence/avmeta/pkg/schema"
	"github.com/mesh-intelligence/avmeta/pkg/types"
)

var fixedNow = time.Date(2010, 1, 2, 15, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func stamped(t *testing.T) *Meta {
	t.Helper()
	return New(WithClock(fixedClock))
}

func TestNew_StampsMetadataDate(t *testing.T) {
	m := stamped(t)
	got, err := m.Get(MetadataDateField)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, 1, 2, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, map[string]any{MetadataDateField: got}, m.Data())
}

func TestNew_NoMetadataDateInSchema(t *testing.T) {
	reg, err := schema.Parse([]byte(`
version = "x"

[[namespace]]
prefix = "t"
uri = "http://example.org/t/"

[[field]]
name = "A"
namespace = "t"
path = "A"
kind = "string"
`))
	require.NoError(t, err)
	m := New(WithRegistry(reg), WithClock(fixedClock))
	assert.Empty(t, m.Data())
}

// representative values, one per kind, in the form Get returns them.
var representative = map[string]any{
	"Headline":           "A headline",
	"ReferenceURL":       "http://www.spacetelescope.org/images/heic0506a/",
	"Contact.Email":      "info@example.org",
	"Title":              "Sample Title",
	"Spatial.Rotation":   -12.5,
	"Date":               time.Date(2009, 5, 27, 0, 0, 0, 0, time.UTC),
	"Type":               "Observation",
	"Subject.Category":   []string{"B.4.2.1", "A.1"},
	"Facility":           []string{"HST", "Spitzer"},
	"Spectral.Band":      []string{"Optical", "X-ray"},
	"Distance":           []float64{3000.0},
	"Temporal.StartTime": []time.Time{time.Date(2004, 3, 9, 10, 15, 30, 0, time.UTC)},
}

func TestMeta_RoundTripPerKind(t *testing.T) {
	kinds := map[fields.Kind]bool{}
	for name, v := range representative {
		t.Run(name, func(t *testing.T) {
			m := stamped(t)
			d, err := m.Registry().Lookup(name)
			require.NoError(t, err)
			kinds[d.Kind()] = true

			require.NoError(t, m.Set(name, v))
			got, err := m.Get(name)
			require.NoError(t, err)
			assert.Equal(t, v, got)

			cached, ok := m.Cached(name)
			require.True(t, ok)
			assert.Equal(t, got, cached)

			require.NoError(t, m.Delete(name))
			got, err = m.Get(name)
			require.NoError(t, err)
			assert.Nil(t, got)
			_, ok = m.Cached(name)
			assert.False(t, ok)
		})
	}
	assert.Len(t, kinds, len(fields.Kinds), "one representative per kind")
}

func TestMeta_StringFields(t *testing.T) {
	m := stamped(t)
	reg := m.Registry()
	for _, name := range reg.Names() {
		d, _ := reg.Lookup(name)
		if d.Kind() != fields.KindString {
			continue
		}
		for _, v := range []string{"plain", "", "naïve ☄"} {
			require.NoError(t, m.Set(name, v), name)
			got, err := m.Get(name)
			require.NoError(t, err)
			assert.Equal(t, v, got, name)
		}
		require.NoError(t, m.Delete(name))
		got, err := m.Get(name)
		require.NoError(t, err)
		assert.Nil(t, got, name)
	}
}

func TestMeta_URLFields(t *testing.T) {
	m := stamped(t)
	for _, name := range namesOfKind(m.Registry(), fields.KindURL) {
		require.NoError(t, m.Set(name, "example.com"))
		got, err := m.Get(name)
		require.NoError(t, err)
		assert.Equal(t, "http://example.com", got)

		err = m.Set(name, "not a url")
		assert.ErrorIs(t, err, types.ErrFormatViolation)
	}
}

func TestMeta_EmailFields(t *testing.T) {
	m := stamped(t)
	for _, name := range namesOfKind(m.Registry(), fields.KindEmail) {
		require.NoError(t, m.Set(name, "a@b.com"))
		assert.ErrorIs(t, m.Set(name, "http://x.com"), types.ErrFormatViolation)
	}
}

func TestMeta_VocabularyFields(t *testing.T) {
	m := stamped(t)
	reg := m.Registry()
	names := append(namesOfKind(reg, fields.KindStringCV), namesOfKind(reg, fields.KindSeqCV)...)
	require.NotEmpty(t, names)

	for _, name := range names {
		d, _ := reg.Lookup(name)
		for _, choice := range d.Vocabulary() {
			var in, want any = choice, choice
			if d.Kind() == fields.KindSeqCV {
				in, want = []string{choice}, []string{choice}
			}
			require.NoError(t, m.Set(name, in), "%s=%s", name, choice)
			got, err := m.Get(name)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}

		var bad any = "NotAChoice"
		if d.Kind() == fields.KindSeqCV {
			bad = []string{"NotAChoice"}
		}
		assert.ErrorIs(t, m.Set(name, bad), types.ErrVocabularyViolation, name)
	}
}

func TestMeta_StrictPairFields(t *testing.T) {
	m := stamped(t)
	for _, name := range []string{"Spatial.ReferenceValue", "Spatial.ReferenceDimension", "Spatial.ReferencePixel", "Spatial.Scale"} {
		require.NoError(t, m.Set(name, []float64{1.0, 2.0}))
		err := m.Set(name, []float64{1.0, 2.0, 3.0, 4.0})
		assert.ErrorIs(t, err, types.ErrLengthViolation)

		got, err := m.Get(name)
		require.NoError(t, err)
		assert.Equal(t, []float64{1.0, 2.0}, got)
	}
}

func TestMeta_ListFieldsRejectScalars(t *testing.T) {
	m := stamped(t)
	for _, name := range m.Registry().Names() {
		d, _ := m.Registry().Lookup(name)
		if !d.Kind().IsList() {
			continue
		}
		assert.ErrorIs(t, m.Set(name, "scalar"), types.ErrTypeMismatch, name)
		assert.ErrorIs(t, m.Set(name, 1.5), types.ErrTypeMismatch, name)
	}
}

func TestMeta_UnknownField(t *testing.T) {
	m := stamped(t)
	assert.ErrorIs(t, m.Set("Bogus", "x"), types.ErrUnknownField)
	_, err := m.Get("Bogus")
	assert.True(t, IsUnknownField(err))
	assert.ErrorIs(t, m.Delete("Bogus"), types.ErrUnknownField)
}

func TestMeta_FailedSetKeepsCache(t *testing.T) {
	m := stamped(t)
	require.NoError(t, m.Set("Type", "Artwork"))
	before := m.Data()

	require.Error(t, m.Set("Type", "Painting"))
	assert.Equal(t, before, m.Data())

	got, err := m.Get("Type")
	require.NoError(t, err)
	assert.Equal(t, "Artwork", got)
}

func TestMeta_SetNilDeletes(t *testing.T) {
	m := stamped(t)
	require.NoError(t, m.Set("Credit", "ESA"))
	require.NoError(t, m.Set("Credit", nil))
	_, ok := m.Cached("Credit")
	assert.False(t, ok)
	got, err := m.Get("Credit")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMeta_CacheReflectsStoredForm(t *testing.T) {
	m := stamped(t)
	require.NoError(t, m.Set("Spectral.Band", []string{"x-ray", "optical"}))
	cached, ok := m.Cached("Spectral.Band")
	require.True(t, ok)
	assert.Equal(t, []string{"X-ray", "Optical"}, cached)

	require.NoError(t, m.Set("Spatial.Rotation", "42"))
	cached, _ = m.Cached("Spatial.Rotation")
	assert.Equal(t, 42.0, cached)
}

func TestFromMap_BestEffort(t *testing.T) {
	values := map[string]any{
		"Unknown.Field":    "ignored",
		"Title":            "Sample Title",
		"Headline":         "Headline",
		"Credit":           "NASA",
		"Distance":         []float64{3000.0},
		"Spectral.Band":    []string{"Optical"},
		"Date":             time.Date(2009, 5, 27, 0, 0, 0, 0, time.UTC),
		"Facility":         []string{"HST"},
		"Spatial.Rotation": 1.5,
		"Type":             "Observation",
	}
	core, logs := observer.New(zapcore.DebugLevel)
	m, applied := FromMap(values, WithClock(fixedClock), WithLogger(zap.New(core)))

	assert.Len(t, applied, 9)
	assert.NotContains(t, applied, "Unknown.Field")
	assert.IsIncreasing(t, applied)

	for name, v := range values {
		if name == "Unknown.Field" {
			_, err := m.Get(name)
			assert.ErrorIs(t, err, types.ErrUnknownField)
			continue
		}
		got, err := m.Get(name)
		require.NoError(t, err)
		assert.Equal(t, v, got, name)
	}

	skipped := logs.FilterMessage("field skipped").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, "Unknown.Field", skipped[0].ContextMap()["field"])
}

func TestFromMap_SkipsInvalidValues(t *testing.T) {
	m, applied := FromMap(map[string]any{
		"Type":          "Painting",
		"Contact.Email": "not-an-email",
		"Distance":      []float64{1, 2, 3},
		"Credit":        "ESO",
	}, WithClock(fixedClock))
	assert.Equal(t, []string{"Credit"}, applied)
	assert.Len(t, m.Data(), 2, "Credit and MetadataDate")
}

func TestFromMap_ValueOverridesStamp(t *testing.T) {
	date := time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC)
	m, _ := FromMap(map[string]any{MetadataDateField: date}, WithClock(fixedClock))
	got, err := m.Get(MetadataDateField)
	require.NoError(t, err)
	assert.Equal(t, date, got)
}

func TestFromPacket_EagerCache(t *testing.T) {
	p := packet.New()
	reg := schema.AVM11()
	title, _ := reg.Lookup("Title")
	require.NoError(t, title.Write(p, "From packet"))
	rot, _ := reg.Lookup("Spatial.Rotation")
	require.NoError(t, p.SetProperty(rot.Namespace(), rot.Path(), "garbage"))

	core, logs := observer.New(zapcore.WarnLevel)
	m := FromPacket(p, WithLogger(zap.New(core)))

	assert.Equal(t, map[string]any{"Title": "From packet"}, m.Data(), "no stamp, unreadable fields omitted")
	assert.Equal(t, 1, logs.Len())

	_, err := m.Get("Spatial.Rotation")
	assert.ErrorIs(t, err, types.ErrTypeMismatch)
	assert.Same(t, p, m.Packet())
}

// garbled hands back unparseable text for one path.
type garbled struct {
	*packet.Memory
	path string
}

func (g garbled) GetProperty(ns, path string) (string, bool) {
	if path == g.path {
		return "garbage", true
	}
	return g.Memory.GetProperty(ns, path)
}

func TestMeta_SetKeepsWriteWhenReadBackFails(t *testing.T) {
	p := garbled{Memory: packet.New(), path: "Spatial.Rotation"}
	core, logs := observer.New(zapcore.WarnLevel)
	m := FromPacket(p, WithLogger(zap.New(core)))

	require.NoError(t, m.Set("Spatial.Rotation", 1.5))

	rot, _ := m.Registry().Lookup("Spatial.Rotation")
	raw, ok := p.Memory.GetProperty(rot.Namespace(), rot.Path())
	require.True(t, ok)
	assert.Equal(t, "1.5", raw, "write reached the packet")
	assert.NotContains(t, m.Data(), "Spatial.Rotation")
	assert.Equal(t, 1, logs.FilterMessage("unreadable field after set").Len())

	_, err := m.Get("Spatial.Rotation")
	assert.ErrorIs(t, err, types.ErrTypeMismatch)
}

func TestEndToEnd(t *testing.T) {
	values := map[string]any{
		"Title":         "Sample Title",
		"Distance":      []float64{3000.0},
		"Spectral.Band": []string{"Optical"},
		"Date":          time.Date(2009, 5, 27, 0, 0, 0, 0, time.UTC),
	}
	m, applied := FromMap(values, WithClock(fixedClock))
	require.Len(t, applied, len(values))

	reloaded := FromPacket(m.Packet())
	for name, want := range values {
		got, err := reloaded.Get(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)

		cached, ok := reloaded.Cached(name)
		require.True(t, ok)
		assert.Equal(t, want, cached, name)
	}
	assert.Equal(t, m.Data(), reloaded.Data())
}

func namesOfKind(reg *schema.Registry, kind fields.Kind) []string {
	var out []string
	for _, name := range reg.Names() {
		d, _ := reg.Lookup(name)
		if d.Kind() == kind {
			out = append(out, name)
		}
	}
	return out
}
