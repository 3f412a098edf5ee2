// Package fields implements field-type descriptors. A Descriptor binds a
// field to a (namespace, path) property of a packet and owns the rules that
// validate, normalize, serialize and deserialize its value.
//
// There is one Descriptor type. The behaviour of each kind comes from a
// strategy selected at construction time, and the optional capabilities
// (vocabulary formatting and membership, list length) come from the
// descriptor's configuration.
//
// Values by kind:
//
//	string, url, email, localized, string-cv   string
//	float                                      float64
//	date                                       time.Time (UTC midnight)
//	bag, seq, seq-cv                           []string
//	float-seq                                  []float64
//	datetime-seq                               []time.Time
//
// Writing nil deletes the property.
package fields

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/avmeta/pkg/types"
)

// Spec holds the construction parameters of a descriptor, matching one row
// of a schema table.
type Spec struct {
	Name         string
	Namespace    string
	Path         string
	Kind         Kind
	Vocabulary   []string
	Format       Format
	Length       int
	Strict       bool
	GenericLang  string
	SpecificLang string
}

// Descriptor is an immutable field-type descriptor.
type Descriptor struct {
	spec     Spec
	strategy strategy
	vocab    map[string]struct{}
}

// New validates spec and builds a descriptor.
func New(spec Spec) (*Descriptor, error) {
	invalidf := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", types.ErrInvalidDescriptor, spec.label(), fmt.Sprintf(format, args...))
	}

	s, ok := strategies[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s: %q", types.ErrUnknownKind, spec.label(), spec.Kind)
	}
	if spec.Namespace == "" || spec.Path == "" {
		return nil, invalidf("namespace and path are required")
	}
	if !IsValidFormat(spec.Format) {
		return nil, invalidf("unknown format %q", spec.Format)
	}
	if spec.Kind.Controlled() != (len(spec.Vocabulary) > 0) {
		if spec.Kind.Controlled() {
			return nil, invalidf("kind %s requires a vocabulary", spec.Kind)
		}
		return nil, invalidf("kind %s does not take a vocabulary", spec.Kind)
	}
	if spec.Format != FormatNone && !spec.Kind.Controlled() {
		return nil, invalidf("kind %s does not take a format", spec.Kind)
	}
	if spec.Length < 0 {
		return nil, invalidf("negative length %d", spec.Length)
	}
	if (spec.Length > 0 || spec.Strict) && !s.shape.isArray() {
		return nil, invalidf("kind %s does not take a length", spec.Kind)
	}
	if spec.Strict && spec.Length == 0 {
		return nil, invalidf("strict length requires a length")
	}
	if (spec.GenericLang != "" || spec.SpecificLang != "") && s.shape != shapeLocalized {
		return nil, invalidf("kind %s does not take languages", spec.Kind)
	}

	d := &Descriptor{spec: spec, strategy: s}
	d.spec.Vocabulary = append([]string(nil), spec.Vocabulary...)
	if s.shape == shapeLocalized {
		if d.spec.GenericLang == "" {
			d.spec.GenericLang = types.DefaultLang
		}
		if d.spec.SpecificLang == "" {
			d.spec.SpecificLang = types.DefaultLang
		}
	}
	if len(spec.Vocabulary) > 0 {
		d.vocab = make(map[string]struct{}, len(spec.Vocabulary))
		for _, v := range spec.Vocabulary {
			if spec.Format.Apply(v) != v {
				return nil, invalidf("vocabulary entry %q is not in %s form", v, spec.Format)
			}
			d.vocab[v] = struct{}{}
		}
	}
	return d, nil
}

func (s Spec) label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Namespace + " " + s.Path
}

// Name returns the field name, possibly empty for standalone descriptors.
func (d *Descriptor) Name() string { return d.spec.Name }

// Namespace returns the namespace URI of the property.
func (d *Descriptor) Namespace() string { return d.spec.Namespace }

// Path returns the property path within the namespace.
func (d *Descriptor) Path() string { return d.spec.Path }

// Kind returns the semantic kind.
func (d *Descriptor) Kind() Kind { return d.spec.Kind }

// Spec returns a copy of the construction parameters.
func (d *Descriptor) Spec() Spec {
	s := d.spec
	s.Vocabulary = append([]string(nil), d.spec.Vocabulary...)
	return s
}

// Vocabulary returns the controlled vocabulary in declaration order, or nil.
func (d *Descriptor) Vocabulary() []string {
	return append([]string(nil), d.spec.Vocabulary...)
}

// Length returns the configured list length and whether it is exact.
func (d *Descriptor) Length() (n int, strict bool) {
	return d.spec.Length, d.spec.Strict
}

// Langs returns the generic and specific languages of a localized field.
func (d *Descriptor) Langs() (generic, specific string) {
	return d.spec.GenericLang, d.spec.SpecificLang
}

// Format applies the descriptor's vocabulary format to s.
func (d *Descriptor) Format(s string) string {
	return d.spec.Format.Apply(s)
}

// CheckVocabulary reports whether s, already formatted, belongs to the
// controlled vocabulary. Descriptors without a vocabulary accept anything.
func (d *Descriptor) CheckVocabulary(s string) error {
	if err := d.checkVocabulary(s); err != nil {
		return d.wrap(err, "")
	}
	return nil
}

func (d *Descriptor) checkVocabulary(s string) error {
	if d.vocab == nil {
		return nil
	}
	if _, ok := d.vocab[s]; !ok {
		return &invalid{kind: types.ErrVocabularyViolation, reason: fmt.Sprintf("%q not in %v", s, d.spec.Vocabulary)}
	}
	return nil
}

// CheckLength enforces the list length constraint: exactly Length items
// when strict, at most Length otherwise, anything when unconfigured.
func (d *Descriptor) CheckLength(n int) error {
	if err := d.checkLength(n); err != nil {
		return d.wrap(err, "")
	}
	return nil
}

func (d *Descriptor) checkLength(n int) error {
	switch {
	case d.spec.Strict && n != d.spec.Length:
		return &invalid{kind: types.ErrLengthViolation, reason: fmt.Sprintf("got %d items, want exactly %d", n, d.spec.Length)}
	case !d.spec.Strict && d.spec.Length > 0 && n > d.spec.Length:
		return &invalid{kind: types.ErrLengthViolation, reason: fmt.Sprintf("got %d items, want at most %d", n, d.spec.Length)}
	}
	return nil
}

// Validate checks raw against the kind and returns the normalized value.
func (d *Descriptor) Validate(raw any) (any, error) {
	v, _, err := d.prepare(raw)
	return v, err
}

// prepare validates raw and returns the normalized value together with the
// text items to store. Nothing is written.
func (d *Descriptor) prepare(raw any) (any, []string, error) {
	s := d.strategy
	if !s.shape.isArray() {
		v, text, err := s.element(d, raw)
		if err != nil {
			return nil, nil, d.wrap(err, "")
		}
		return v, []string{text}, nil
	}

	items, ok := toSlice(raw, s.shape == shapeBag)
	if !ok {
		return nil, nil, d.wrap(mismatch("expected a list, got %T", raw), "")
	}
	vals := make([]any, 0, len(items))
	texts := make([]string, 0, len(items))
	var seen map[string]struct{}
	if s.shape == shapeBag {
		seen = make(map[string]struct{}, len(items))
	}
	for i, item := range items {
		v, text, err := s.element(d, item)
		if err != nil {
			return nil, nil, d.wrap(err, fmt.Sprintf("item %d: ", i+1))
		}
		if seen != nil {
			if _, dup := seen[text]; dup {
				continue
			}
			seen[text] = struct{}{}
		}
		vals = append(vals, v)
		texts = append(texts, text)
	}
	if err := d.checkLength(len(vals)); err != nil {
		return nil, nil, d.wrap(err, "")
	}
	return s.collect(vals), texts, nil
}

// Write validates raw and stores it in p. A nil raw deletes the property.
// Array kinds replace any existing array. Store failures are reported as
// ErrStoreWrite.
func (d *Descriptor) Write(p types.Packet, raw any) error {
	if isAbsent(raw) {
		return d.Delete(p)
	}
	_, texts, err := d.prepare(raw)
	if err != nil {
		return err
	}

	ns, path := d.spec.Namespace, d.spec.Path
	switch d.strategy.shape {
	case shapeScalar:
		err = p.SetProperty(ns, path, texts[0])
	case shapeLocalized:
		err = p.SetLocalizedText(ns, path, d.spec.GenericLang, d.spec.SpecificLang, texts[0])
	default:
		err = d.writeArray(p, texts)
	}
	if err != nil {
		return &types.FieldError{Field: d.label(), Err: types.ErrStoreWrite, Reason: err.Error()}
	}
	return nil
}

func (d *Descriptor) writeArray(p types.Packet, texts []string) error {
	ns, path := d.spec.Namespace, d.spec.Path
	form := types.Bag
	if d.strategy.shape == shapeSeq {
		form = types.Seq
	}
	if r, ok := p.(types.ArrayReplacer); ok {
		return r.ReplaceArray(ns, path, form, texts)
	}
	if err := p.DeleteProperty(ns, path); err != nil {
		return err
	}
	for _, text := range texts {
		if err := p.AppendArrayItem(ns, path, text, form); err != nil {
			return err
		}
	}
	return nil
}

// Read returns the stored value, or nil when the property is absent.
// Stored text that cannot be decoded is reported as ErrTypeMismatch.
func (d *Descriptor) Read(p types.Packet) (any, error) {
	ns, path := d.spec.Namespace, d.spec.Path
	s := d.strategy
	switch s.shape {
	case shapeScalar:
		text, ok := p.GetProperty(ns, path)
		if !ok {
			return nil, nil
		}
		return d.decode(text, "stored ")
	case shapeLocalized:
		text, ok := p.GetLocalizedText(ns, path, d.spec.GenericLang, d.spec.SpecificLang)
		if !ok {
			return nil, nil
		}
		return text, nil
	}

	n := p.CountArrayItems(ns, path)
	if n == 0 {
		return nil, nil
	}
	vals := make([]any, 0, n)
	for i := 1; i <= n; i++ {
		text, ok := p.GetArrayItem(ns, path, i)
		if !ok {
			return nil, d.wrap(mismatch("missing array item %d of %d", i, n), "")
		}
		v, err := d.decode(text, fmt.Sprintf("stored item %d: ", i))
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return s.collect(vals), nil
}

func (d *Descriptor) decode(text, prefix string) (any, error) {
	v, err := d.strategy.decode(text)
	if err != nil {
		return nil, &types.FieldError{Field: d.label(), Err: types.ErrTypeMismatch, Reason: prefix + err.Error()}
	}
	return v, nil
}

// Delete removes the property. Deleting an absent property succeeds.
func (d *Descriptor) Delete(p types.Packet) error {
	if err := p.DeleteProperty(d.spec.Namespace, d.spec.Path); err != nil {
		return &types.FieldError{Field: d.label(), Err: types.ErrStoreWrite, Reason: err.Error()}
	}
	return nil
}

func (d *Descriptor) label() string {
	return d.spec.label()
}

// wrap attaches the field name to a validation failure.
func (d *Descriptor) wrap(err error, prefix string) error {
	var iv *invalid
	if errors.As(err, &iv) {
		return &types.FieldError{Field: d.label(), Err: iv.kind, Reason: prefix + iv.reason}
	}
	return err
}
