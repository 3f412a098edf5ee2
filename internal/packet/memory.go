// Package packet implements an in-memory packet store and its JSON
// serialized form. A Memory packet satisfies types.Packet and
// types.ArrayReplacer, and keeps properties in insertion order so
// serializers produce stable output.
package packet

import (
	"strings"

	"github.com/mesh-intelligence/avmeta/pkg/types"
)

// Form is the shape of a stored property.
type Form string

// Property shapes.
const (
	FormSimple Form = "simple"
	FormBag    Form = "bag"
	FormSeq    Form = "seq"
	FormAlt    Form = "alt"
)

// IsArray reports whether the form holds array items.
func (f Form) IsArray() bool {
	return f == FormBag || f == FormSeq
}

func formFor(af types.ArrayForm) Form {
	if af == types.Seq {
		return FormSeq
	}
	return FormBag
}

// AltText is one language alternative of a localized property.
type AltText struct {
	Lang  string
	Value string
}

// Property is a snapshot of a stored property. Only the member matching
// Form is meaningful.
type Property struct {
	Namespace    string
	Path         string
	Form         Form
	Value        string
	Items        []string
	Alternatives []AltText
}

func (p Property) clone() Property {
	c := p
	if p.Items != nil {
		c.Items = append([]string(nil), p.Items...)
	}
	if p.Alternatives != nil {
		c.Alternatives = append([]AltText(nil), p.Alternatives...)
	}
	return c
}

type key struct {
	ns   string
	path string
}

var _ types.Packet = (*Memory)(nil)
var _ types.ArrayReplacer = (*Memory)(nil)

// Memory is an in-memory packet. The zero value is not usable; call New.
type Memory struct {
	props map[key]*Property
	order []key
}

// New returns an empty packet.
func New() *Memory {
	return &Memory{props: make(map[key]*Property)}
}

// Len returns the number of stored properties.
func (m *Memory) Len() int {
	return len(m.order)
}

// Properties returns a copy of every property in insertion order.
func (m *Memory) Properties() []Property {
	out := make([]Property, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.props[k].clone())
	}
	return out
}

// Lookup returns a copy of the property at (ns, path).
func (m *Memory) Lookup(ns, path string) (Property, bool) {
	p, ok := m.props[key{ns, path}]
	if !ok {
		return Property{}, false
	}
	return p.clone(), true
}

// Put stores p, replacing any property at the same address. Replacing
// keeps the original insertion position.
func (m *Memory) Put(p Property) error {
	if err := checkAddress(p.Namespace, p.Path); err != nil {
		return err
	}
	k := key{p.Namespace, p.Path}
	c := p.clone()
	if _, ok := m.props[k]; !ok {
		m.order = append(m.order, k)
	}
	m.props[k] = &c
	return nil
}

// Clone returns a deep copy of the packet.
func (m *Memory) Clone() *Memory {
	c := New()
	for _, k := range m.order {
		p := m.props[k].clone()
		c.props[k] = &p
		c.order = append(c.order, k)
	}
	return c
}

func checkAddress(ns, path string) error {
	if ns == "" || path == "" {
		return types.ErrInvalidPath
	}
	return nil
}

// GetProperty returns the simple value stored at (ns, path).
func (m *Memory) GetProperty(ns, path string) (string, bool) {
	p, ok := m.props[key{ns, path}]
	if !ok || p.Form != FormSimple {
		return "", false
	}
	return p.Value, true
}

// SetProperty stores a simple value. It fails with ErrPropertyShape when an
// array or localized property already lives at the address.
func (m *Memory) SetProperty(ns, path, value string) error {
	if err := checkAddress(ns, path); err != nil {
		return err
	}
	if p, ok := m.props[key{ns, path}]; ok {
		if p.Form != FormSimple {
			return types.ErrPropertyShape
		}
		p.Value = value
		return nil
	}
	return m.Put(Property{Namespace: ns, Path: path, Form: FormSimple, Value: value})
}

// DeleteProperty removes the property at (ns, path). Idempotent.
func (m *Memory) DeleteProperty(ns, path string) error {
	k := key{ns, path}
	if _, ok := m.props[k]; !ok {
		return nil
	}
	delete(m.props, k)
	for i, o := range m.order {
		if o == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// CountArrayItems returns the number of array items at (ns, path).
func (m *Memory) CountArrayItems(ns, path string) int {
	p, ok := m.props[key{ns, path}]
	if !ok || !p.Form.IsArray() {
		return 0
	}
	return len(p.Items)
}

// AppendArrayItem appends value to the array at (ns, path). Appending to an
// array of the other form, or to a non-array property, fails with
// ErrPropertyShape.
func (m *Memory) AppendArrayItem(ns, path, value string, form types.ArrayForm) error {
	if err := checkAddress(ns, path); err != nil {
		return err
	}
	want := formFor(form)
	if p, ok := m.props[key{ns, path}]; ok {
		if p.Form != want {
			return types.ErrPropertyShape
		}
		p.Items = append(p.Items, value)
		return nil
	}
	return m.Put(Property{Namespace: ns, Path: path, Form: want, Items: []string{value}})
}

// GetArrayItem returns the item at the 1-based index.
func (m *Memory) GetArrayItem(ns, path string, index int) (string, bool) {
	p, ok := m.props[key{ns, path}]
	if !ok || !p.Form.IsArray() || index < 1 || index > len(p.Items) {
		return "", false
	}
	return p.Items[index-1], true
}

// ReplaceArray swaps whatever lives at (ns, path) for an array holding
// items. An empty items slice removes the property.
func (m *Memory) ReplaceArray(ns, path string, form types.ArrayForm, items []string) error {
	if err := checkAddress(ns, path); err != nil {
		return err
	}
	if len(items) == 0 {
		return m.DeleteProperty(ns, path)
	}
	return m.Put(Property{Namespace: ns, Path: path, Form: formFor(form), Items: items})
}

// GetLocalizedText picks the alternative for specificLang, then one whose
// language matches genericLang, then x-default, then the first alternative.
func (m *Memory) GetLocalizedText(ns, path, genericLang, specificLang string) (string, bool) {
	p, ok := m.props[key{ns, path}]
	if !ok || p.Form != FormAlt || len(p.Alternatives) == 0 {
		return "", false
	}
	if i := findLang(p.Alternatives, specificLang); i >= 0 {
		return p.Alternatives[i].Value, true
	}
	if genericLang != "" && !strings.EqualFold(genericLang, types.DefaultLang) {
		for _, alt := range p.Alternatives {
			if langMatches(alt.Lang, genericLang) {
				return alt.Value, true
			}
		}
	}
	if i := findLang(p.Alternatives, types.DefaultLang); i >= 0 {
		return p.Alternatives[i].Value, true
	}
	return p.Alternatives[0].Value, true
}

// SetLocalizedText stores value for specificLang (or genericLang, or
// x-default). The first non-default language set on a property also seeds
// the x-default alternative, which is kept first.
func (m *Memory) SetLocalizedText(ns, path, genericLang, specificLang, value string) error {
	if err := checkAddress(ns, path); err != nil {
		return err
	}
	lang := specificLang
	if lang == "" {
		lang = genericLang
	}
	if lang == "" {
		lang = types.DefaultLang
	}

	p, ok := m.props[key{ns, path}]
	if !ok {
		alts := []AltText{{Lang: lang, Value: value}}
		if !strings.EqualFold(lang, types.DefaultLang) {
			alts = append([]AltText{{Lang: types.DefaultLang, Value: value}}, alts...)
		}
		return m.Put(Property{Namespace: ns, Path: path, Form: FormAlt, Alternatives: alts})
	}
	if p.Form != FormAlt {
		return types.ErrPropertyShape
	}
	if i := findLang(p.Alternatives, lang); i >= 0 {
		p.Alternatives[i].Value = value
		return nil
	}
	p.Alternatives = append(p.Alternatives, AltText{Lang: lang, Value: value})
	return nil
}

func findLang(alts []AltText, lang string) int {
	if lang == "" {
		return -1
	}
	for i, alt := range alts {
		if strings.EqualFold(alt.Lang, lang) {
			return i
		}
	}
	return -1
}

// langMatches reports whether lang equals generic or is a subtag of it
// ("en-GB" matches "en").
func langMatches(lang, generic string) bool {
	if strings.EqualFold(lang, generic) {
		return true
	}
	return len(lang) > len(generic) &&
		strings.EqualFold(lang[:len(generic)], generic) &&
		lang[len(generic)] == '-'
}
