// This file provides the JSON serialized form of a packet.
package packet

import (
	"encoding/json"
	"fmt"
)

// Document is the top-level JSON form of a packet.
type Document struct {
	Properties []Record `json:"properties"`
}

// Record represents one property in the JSON form.
type Record struct {
	Namespace    string      `json:"namespace"`
	Path         string      `json:"path"`
	Form         Form        `json:"form"`
	Value        *string     `json:"value,omitempty"`
	Items        []string    `json:"items,omitempty"`
	Alternatives []AltRecord `json:"alternatives,omitempty"`
}

// AltRecord represents a language alternative.
type AltRecord struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

// ToDocument converts the packet to its JSON document form.
func ToDocument(m *Memory) Document {
	doc := Document{Properties: make([]Record, 0, m.Len())}
	for _, p := range m.Properties() {
		rec := Record{
			Namespace: p.Namespace,
			Path:      p.Path,
			Form:      p.Form,
		}
		switch p.Form {
		case FormSimple:
			v := p.Value
			rec.Value = &v
		case FormBag, FormSeq:
			rec.Items = p.Items
		case FormAlt:
			for _, alt := range p.Alternatives {
				rec.Alternatives = append(rec.Alternatives, AltRecord{Lang: alt.Lang, Value: alt.Value})
			}
		}
		doc.Properties = append(doc.Properties, rec)
	}
	return doc
}

// FromDocument builds a packet from its JSON document form. Records with
// an unknown form or a missing address are rejected.
func FromDocument(doc Document) (*Memory, error) {
	m := New()
	for i, rec := range doc.Properties {
		p := Property{Namespace: rec.Namespace, Path: rec.Path, Form: rec.Form}
		switch rec.Form {
		case FormSimple:
			if rec.Value != nil {
				p.Value = *rec.Value
			}
		case FormBag, FormSeq:
			p.Items = rec.Items
		case FormAlt:
			for _, alt := range rec.Alternatives {
				p.Alternatives = append(p.Alternatives, AltText{Lang: alt.Lang, Value: alt.Value})
			}
		default:
			return nil, fmt.Errorf("property %d (%s %s): unknown form %q", i, rec.Namespace, rec.Path, rec.Form)
		}
		if err := m.Put(p); err != nil {
			return nil, fmt.Errorf("property %d: %w", i, err)
		}
	}
	return m, nil
}

// Marshal encodes the packet as indented JSON.
func Marshal(m *Memory) ([]byte, error) {
	return json.MarshalIndent(ToDocument(m), "", "  ")
}

// Unmarshal decodes a packet from its JSON form.
func Unmarshal(data []byte) (*Memory, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding packet: %w", err)
	}
	return FromDocument(doc)
}
