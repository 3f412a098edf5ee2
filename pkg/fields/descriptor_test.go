package fields

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/avmeta/internal/packet"
	"github.com/mesh-intelligence/avmeta/pkg/types"
)

const testNS = "http://example.org/test/1.0/"

func desc(t *testing.T, kind Kind, mod func(*Spec)) *Descriptor {
	t.Helper()
	s := Spec{Name: "F", Namespace: testNS, Path: "F", Kind: kind}
	if mod != nil {
		mod(&s)
	}
	d, err := New(s)
	require.NoError(t, err)
	return d
}

// appendOnly hides ReplaceArray so descriptors fall back to delete+append.
type appendOnly struct{ types.Packet }

// failingPacket rejects every scalar and localized write.
type failingPacket struct{ types.Packet }

func (failingPacket) SetProperty(_, _, _ string) error { return errors.New("packet closed") }

func (failingPacket) SetLocalizedText(_, _, _, _, _ string) error {
	return errors.New("packet closed")
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr error
	}{
		{"plain string", Spec{Namespace: testNS, Path: "A", Kind: KindString}, nil},
		{"unknown kind", Spec{Namespace: testNS, Path: "A", Kind: "blob"}, types.ErrUnknownKind},
		{"missing path", Spec{Namespace: testNS, Kind: KindString}, types.ErrInvalidDescriptor},
		{"controlled without vocabulary", Spec{Namespace: testNS, Path: "A", Kind: KindStringCV}, types.ErrInvalidDescriptor},
		{"vocabulary on plain string", Spec{Namespace: testNS, Path: "A", Kind: KindString, Vocabulary: []string{"x"}}, types.ErrInvalidDescriptor},
		{"length on scalar", Spec{Namespace: testNS, Path: "A", Kind: KindFloat, Length: 2}, types.ErrInvalidDescriptor},
		{"strict without length", Spec{Namespace: testNS, Path: "A", Kind: KindSeq, Strict: true}, types.ErrInvalidDescriptor},
		{"negative length", Spec{Namespace: testNS, Path: "A", Kind: KindSeq, Length: -1}, types.ErrInvalidDescriptor},
		{"languages on seq", Spec{Namespace: testNS, Path: "A", Kind: KindSeq, GenericLang: "en"}, types.ErrInvalidDescriptor},
		{"unknown format", Spec{Namespace: testNS, Path: "A", Kind: KindStringCV, Vocabulary: []string{"A"}, Format: "title"}, types.ErrInvalidDescriptor},
		{
			"vocabulary entry not in format form",
			Spec{Namespace: testNS, Path: "A", Kind: KindStringCV, Vocabulary: []string{"good"}, Format: FormatCapitalize},
			types.ErrInvalidDescriptor,
		},
		{
			"capitalized vocabulary",
			Spec{Namespace: testNS, Path: "A", Kind: KindSeqCV, Vocabulary: []string{"X-ray", "Optical"}, Format: FormatCapitalize},
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.spec)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, d)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.spec.Kind, d.Kind())
		})
	}
}

func TestNew_LocalizedDefaults(t *testing.T) {
	d := desc(t, KindLocalized, nil)
	generic, specific := d.Langs()
	assert.Equal(t, types.DefaultLang, generic)
	assert.Equal(t, types.DefaultLang, specific)
}

func TestDescriptor_StringRoundTrip(t *testing.T) {
	type label string
	d := desc(t, KindString, nil)
	p := packet.New()

	for _, v := range []any{"Sample", "", "café", []byte("bytes"), label("named")} {
		require.NoError(t, d.Write(p, v))
		got, err := d.Read(p)
		require.NoError(t, err)
		want, _ := toText(v)
		assert.Equal(t, want, got)
	}

	require.NoError(t, d.Delete(p))
	got, err := d.Read(p)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting twice is fine.
	require.NoError(t, d.Delete(p))
}

func TestDescriptor_StringNormalizesToNFC(t *testing.T) {
	d := desc(t, KindString, nil)
	v, err := d.Validate("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", v)
}

func TestDescriptor_StringRejects(t *testing.T) {
	d := desc(t, KindString, nil)
	for _, v := range []any{42, 1.5, true, []string{"a"}, []byte{0xff, 0xfe}} {
		_, err := d.Validate(v)
		assert.ErrorIs(t, err, types.ErrTypeMismatch, "%#v", v)
	}
}

func TestDescriptor_WriteNilDeletes(t *testing.T) {
	d := desc(t, KindString, nil)
	p := packet.New()
	require.NoError(t, d.Write(p, "x"))

	var ptr *string
	require.NoError(t, d.Write(p, ptr))
	_, ok := p.GetProperty(testNS, "F")
	assert.False(t, ok)

	require.NoError(t, d.Write(p, "x"))
	require.NoError(t, d.Write(p, nil))
	_, ok = p.GetProperty(testNS, "F")
	assert.False(t, ok)
}

func TestDescriptor_URL(t *testing.T) {
	d := desc(t, KindURL, nil)
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"example.com", "http://example.com", nil},
		{"https://www.spacetelescope.org/images/heic0506a/", "https://www.spacetelescope.org/images/heic0506a/", nil},
		{"http://localhost:8080/x", "http://localhost:8080/x", nil},
		{"http://127.0.0.1", "http://127.0.0.1", nil},
		{"not a url", "", types.ErrFormatViolation},
		{"ftp://example.com", "", types.ErrFormatViolation},
		{"", "", types.ErrFormatViolation},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p := packet.New()
			err := d.Write(p, tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 0, p.Len())
				return
			}
			require.NoError(t, err)
			got, err := d.Read(p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescriptor_Email(t *testing.T) {
	d := desc(t, KindEmail, nil)
	for _, ok := range []string{"a@b.com", "first.last@example.org", "x+tag@sub.domain.museum"} {
		_, err := d.Validate(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"http://x.com", "a@b", "@b.com", "a b@c.com", ""} {
		_, err := d.Validate(bad)
		assert.ErrorIs(t, err, types.ErrFormatViolation, bad)
	}
}

func TestDescriptor_Localized(t *testing.T) {
	d := desc(t, KindLocalized, nil)
	p := packet.New()
	require.NoError(t, d.Write(p, "Sample Title"))
	got, err := d.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "Sample Title", got)

	fr := desc(t, KindLocalized, func(s *Spec) { s.GenericLang = "fr"; s.SpecificLang = "fr-FR" })
	require.NoError(t, fr.Write(p, "Titre"))
	got, err = fr.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "Titre", got)

	got, err = d.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "Sample Title", got)
}

func TestDescriptor_Float(t *testing.T) {
	d := desc(t, KindFloat, nil)
	p := packet.New()
	for _, v := range []any{1.1, float32(2.5), 3, int64(-4), uint8(5), "6.25", " 7 "} {
		require.NoError(t, d.Write(p, v), "%#v", v)
	}
	text, ok := p.GetProperty(testNS, "F")
	require.True(t, ok)
	assert.Equal(t, "7", text)

	got, err := d.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 7.0, got)

	for _, v := range []any{"abc", true, []float64{1}} {
		_, err := d.Validate(v)
		assert.ErrorIs(t, err, types.ErrTypeMismatch, "%#v", v)
	}
}

func TestDescriptor_Date(t *testing.T) {
	d := desc(t, KindDate, nil)
	p := packet.New()
	in := time.Date(2009, 5, 27, 23, 30, 0, 0, time.FixedZone("AEST", 10*3600))
	require.NoError(t, d.Write(p, in))

	text, ok := p.GetProperty(testNS, "F")
	require.True(t, ok)
	assert.Equal(t, "2009-05-27", text)

	got, err := d.Read(p)
	require.NoError(t, err)
	assert.True(t, time.Date(2009, 5, 27, 0, 0, 0, 0, time.UTC).Equal(got.(time.Time)))

	_, err = d.Validate("2009-05-27")
	assert.ErrorIs(t, err, types.ErrTypeMismatch)
}

func TestDescriptor_ReadMalformedStoredText(t *testing.T) {
	p := packet.New()
	require.NoError(t, p.SetProperty(testNS, "F", "yesterday"))

	_, err := desc(t, KindDate, nil).Read(p)
	assert.ErrorIs(t, err, types.ErrTypeMismatch)

	_, err = desc(t, KindFloat, nil).Read(p)
	assert.ErrorIs(t, err, types.ErrTypeMismatch)
}

func TestDescriptor_Vocabulary(t *testing.T) {
	vocab := []string{"Observation", "Artwork", "Photographic"}
	d := desc(t, KindStringCV, func(s *Spec) { s.Vocabulary = vocab; s.Format = FormatCapitalize })
	p := packet.New()

	for _, choice := range vocab {
		require.NoError(t, d.Write(p, choice))
		got, err := d.Read(p)
		require.NoError(t, err)
		assert.Equal(t, choice, got)
	}

	require.NoError(t, d.Write(p, "artWORK"))
	got, err := d.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "Artwork", got)

	err = d.Write(p, "NotAChoice")
	require.ErrorIs(t, err, types.ErrVocabularyViolation)
	got, err = d.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "Artwork", got, "failed write must not change the store")

	assert.NoError(t, d.CheckVocabulary("Observation"))
	assert.ErrorIs(t, d.CheckVocabulary("observation"), types.ErrVocabularyViolation)
	assert.Equal(t, vocab, d.Vocabulary())
}

func TestDescriptor_UpperVocabularyList(t *testing.T) {
	d := desc(t, KindSeqCV, func(s *Spec) {
		s.Vocabulary = []string{"ICRS", "FK5", "GAL"}
		s.Format = FormatUpper
	})
	v, err := d.Validate([]string{"icrs", "gal"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ICRS", "GAL"}, v)

	_, err = d.Validate([]string{"icrs", "ecl"})
	assert.ErrorIs(t, err, types.ErrVocabularyViolation)
}

func TestDescriptor_Bag(t *testing.T) {
	d := desc(t, KindBag, nil)
	p := packet.New()

	require.NoError(t, d.Write(p, []string{"B", "A", "B", "C"}))
	got, err := d.Read(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, got)

	require.NoError(t, d.Write(p, map[string]struct{}{"z": {}, "y": {}}))
	got, err = d.Read(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z"}, got)

	prop, ok := p.Lookup(testNS, "F")
	require.True(t, ok)
	assert.Equal(t, packet.FormBag, prop.Form)
}

func TestDescriptor_SeqReplacesExisting(t *testing.T) {
	for name, p := range map[string]types.Packet{
		"replacer":    packet.New(),
		"append only": appendOnly{packet.New()},
	} {
		t.Run(name, func(t *testing.T) {
			d := desc(t, KindSeq, nil)
			require.NoError(t, d.Write(p, []string{"a", "b", "c"}))
			require.NoError(t, d.Write(p, []any{"x", "y"}))
			assert.Equal(t, 2, p.CountArrayItems(testNS, "F"))

			got, err := d.Read(p)
			require.NoError(t, err)
			assert.Equal(t, []string{"x", "y"}, got)
		})
	}
}

func TestDescriptor_ListRejectsScalar(t *testing.T) {
	for _, kind := range []Kind{KindBag, KindSeq, KindFloatSeq, KindDateTimeSeq} {
		t.Run(string(kind), func(t *testing.T) {
			d := desc(t, kind, nil)
			_, err := d.Validate("single")
			assert.ErrorIs(t, err, types.ErrTypeMismatch)
			_, err = d.Validate(3.0)
			assert.ErrorIs(t, err, types.ErrTypeMismatch)
		})
	}
}

func TestDescriptor_SeqRejectsSet(t *testing.T) {
	d := desc(t, KindSeq, nil)
	_, err := d.Validate(map[string]bool{"a": true})
	assert.ErrorIs(t, err, types.ErrTypeMismatch)
}

func TestDescriptor_Length(t *testing.T) {
	strict := desc(t, KindFloatSeq, func(s *Spec) { s.Length = 2; s.Strict = true })
	upTo := desc(t, KindFloatSeq, func(s *Spec) { s.Length = 2 })
	open := desc(t, KindFloatSeq, nil)

	tests := []struct {
		name string
		d    *Descriptor
		in   []float64
		ok   bool
	}{
		{"strict exact", strict, []float64{1, 2}, true},
		{"strict short", strict, []float64{1}, false},
		{"strict long", strict, []float64{1, 2, 3, 4}, false},
		{"max under", upTo, []float64{1}, true},
		{"max equal", upTo, []float64{1, 2}, true},
		{"max over", upTo, []float64{1, 2, 3}, false},
		{"unconstrained", open, []float64{1, 2, 3, 4, 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := packet.New()
			err := tt.d.Write(p, tt.in)
			if tt.ok {
				require.NoError(t, err)
				got, err := tt.d.Read(p)
				require.NoError(t, err)
				assert.Equal(t, tt.in, got)
				return
			}
			require.ErrorIs(t, err, types.ErrLengthViolation)
			assert.Equal(t, 0, p.Len())
		})
	}

	assert.NoError(t, strict.CheckLength(2))
	assert.ErrorIs(t, strict.CheckLength(3), types.ErrLengthViolation)
	n, isStrict := strict.Length()
	assert.Equal(t, 2, n)
	assert.True(t, isStrict)
}

func TestDescriptor_ListValidatesBeforeWriting(t *testing.T) {
	d := desc(t, KindFloatSeq, nil)
	p := packet.New()
	require.NoError(t, d.Write(p, []float64{1, 2}))

	err := d.Write(p, []any{3.0, "four"})
	require.ErrorIs(t, err, types.ErrTypeMismatch)

	var fe *types.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "F", fe.Field)
	assert.Contains(t, fe.Reason, "item 2")

	got, err := d.Read(p)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, got)
}

func TestDescriptor_DateTimeSeq(t *testing.T) {
	d := desc(t, KindDateTimeSeq, nil)
	p := packet.New()
	first := time.Date(2004, 3, 9, 10, 15, 30, 0, time.UTC)
	second := time.Date(2004, 3, 10, 1, 2, 3, 500, time.FixedZone("", -5*3600))
	require.NoError(t, d.Write(p, []time.Time{first, second}))

	item, ok := p.GetArrayItem(testNS, "F", 1)
	require.True(t, ok)
	assert.Equal(t, "2004-03-09T10:15:30Z", item)

	got, err := d.Read(p)
	require.NoError(t, err)
	times := got.([]time.Time)
	require.Len(t, times, 2)
	assert.True(t, first.Equal(times[0]))
	assert.True(t, second.Equal(times[1]))

	_, err = d.Validate([]any{first, "2004-03-09"})
	assert.ErrorIs(t, err, types.ErrTypeMismatch)
}

func TestDescriptor_StoreWriteFailure(t *testing.T) {
	p := failingPacket{packet.New()}
	for _, kind := range []Kind{KindString, KindLocalized} {
		err := desc(t, kind, nil).Write(p, "x")
		assert.ErrorIs(t, err, types.ErrStoreWrite, string(kind))
	}
}

func TestDescriptor_ParseText(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		in   string
		want any
	}{
		{"string", KindString, " hello ", "hello"},
		{"float", KindFloat, "3000.5", 3000.5},
		{"date", KindDate, "2009-05-27", time.Date(2009, 5, 27, 0, 0, 0, 0, time.UTC)},
		{"seq", KindSeq, "Hubble; Spitzer;;", []any{"Hubble", "Spitzer"}},
		{"float seq", KindFloatSeq, "1.5;2", []any{1.5, 2.0}},
		{"empty list", KindBag, "", []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := desc(t, tt.kind, nil).ParseText(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := desc(t, KindFloatSeq, nil).ParseText("1;two")
	assert.ErrorIs(t, err, types.ErrTypeMismatch)
}

func TestFormat_Apply(t *testing.T) {
	assert.Equal(t, "X-ray", FormatCapitalize.Apply("x-RAY"))
	assert.Equal(t, "", FormatCapitalize.Apply(""))
	assert.Equal(t, "FK5", FormatUpper.Apply("fk5"))
	assert.Equal(t, "as is", FormatNone.Apply("as is"))
}

func TestKind_IsList(t *testing.T) {
	for _, k := range Kinds {
		assert.True(t, IsValidKind(k), k)
	}
	assert.True(t, KindSeqCV.IsList())
	assert.False(t, KindStringCV.IsList())
	assert.False(t, Kind("nope").IsList())
}
