package xmp

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mesh-intelligence/avmeta/internal/packet"
)

// decoder walks an XMP document. declared records every xmlns declaration
// seen so far (uri to prefix) so struct member paths can be rebuilt.
type decoder struct {
	d         *xml.Decoder
	m         *packet.Memory
	preferred Prefixes
	declared  Prefixes
}

// Unmarshal decodes every rdf:Description in data into one packet.
// Struct member paths are qualified with the prefix preferred gives for
// the member's namespace, falling back to the document's own prefix.
// preferred may be nil.
func Unmarshal(data []byte, preferred Prefixes) (*packet.Memory, error) {
	dec := &decoder{
		d:         xml.NewDecoder(bytes.NewReader(data)),
		m:         packet.New(),
		preferred: preferred,
		declared:  make(Prefixes),
	}
	for {
		tok, err := dec.d.Token()
		if errors.Is(err, io.EOF) {
			return dec.m, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decoding xmp: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		dec.note(se)
		if se.Name.Space == NSRDF && se.Name.Local == "Description" {
			if err := dec.description(se, "", ""); err != nil {
				return nil, err
			}
		}
	}
}

func (dec *decoder) note(se xml.StartElement) {
	for _, a := range se.Attr {
		if a.Name.Space == "xmlns" && a.Value != "" {
			dec.declared[a.Value] = a.Name.Local
		}
	}
}

// description reads the properties of an rdf:Description. Inside a struct,
// ns and base name the enclosing property and members become
// "base/prefix:local" paths of ns.
func (dec *decoder) description(se xml.StartElement, ns, base string) error {
	for _, a := range se.Attr {
		if a.Name.Space == "" || a.Name.Space == "xmlns" || a.Name.Space == NSRDF || a.Name.Space == nsXML {
			continue
		}
		pns, path, err := dec.address(a.Name, ns, base)
		if err != nil {
			return err
		}
		if err := dec.m.Put(packet.Property{Namespace: pns, Path: path, Form: packet.FormSimple, Value: a.Value}); err != nil {
			return err
		}
	}
	for {
		tok, err := dec.d.Token()
		if err != nil {
			return fmt.Errorf("decoding xmp: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			dec.note(t)
			pns, path, err := dec.address(t.Name, ns, base)
			if err != nil {
				return err
			}
			if err := dec.property(t, pns, path); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

// address maps an element name to a property address. Top-level elements
// use their own namespace; struct members are qualified under base.
func (dec *decoder) address(name xml.Name, ns, base string) (string, string, error) {
	if base == "" {
		return name.Space, name.Local, nil
	}
	p, ok := dec.preferred[name.Space]
	if !ok {
		p, ok = dec.declared[name.Space]
	}
	if !ok || p == "" {
		return "", "", fmt.Errorf("decoding xmp: no prefix for namespace %q in %s", name.Space, base)
	}
	return ns, base + "/" + p + ":" + name.Local, nil
}

// property reads one property element whose start tag has been consumed.
func (dec *decoder) property(se xml.StartElement, ns, path string) error {
	for _, a := range se.Attr {
		if a.Name.Space == NSRDF && a.Name.Local == "parseType" && a.Value == "Resource" {
			return dec.description(xml.StartElement{Name: se.Name}, ns, path)
		}
	}

	var text strings.Builder
	nested := false
	for {
		tok, err := dec.d.Token()
		if err != nil {
			return fmt.Errorf("decoding xmp: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			text.Write(t)
		case xml.StartElement:
			dec.note(t)
			nested = true
			switch {
			case t.Name.Space == NSRDF && (t.Name.Local == "Bag" || t.Name.Local == "Seq" || t.Name.Local == "Alt"):
				if err := dec.container(t, ns, path); err != nil {
					return err
				}
			case t.Name.Space == NSRDF && t.Name.Local == "Description":
				if err := dec.description(t, ns, path); err != nil {
					return err
				}
			default:
				mns, mpath, err := dec.address(t.Name, ns, path)
				if err != nil {
					return err
				}
				if err := dec.property(t, mns, mpath); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if nested {
				return nil
			}
			return dec.m.Put(packet.Property{Namespace: ns, Path: path, Form: packet.FormSimple, Value: text.String()})
		}
	}
}

// container reads an rdf:Bag, rdf:Seq or rdf:Alt and stores it at path.
func (dec *decoder) container(se xml.StartElement, ns, path string) error {
	prop := packet.Property{Namespace: ns, Path: path}
	switch se.Name.Local {
	case "Bag":
		prop.Form = packet.FormBag
	case "Seq":
		prop.Form = packet.FormSeq
	default:
		prop.Form = packet.FormAlt
	}
	for {
		tok, err := dec.d.Token()
		if err != nil {
			return fmt.Errorf("decoding xmp: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != NSRDF || t.Name.Local != "li" {
				return fmt.Errorf("decoding xmp: unexpected %s:%s in %s", t.Name.Space, t.Name.Local, path)
			}
			value, err := dec.text()
			if err != nil {
				return err
			}
			if prop.Form == packet.FormAlt {
				lang := ""
				for _, a := range t.Attr {
					if a.Name.Space == nsXML && a.Name.Local == "lang" {
						lang = a.Value
					}
				}
				prop.Alternatives = append(prop.Alternatives, packet.AltText{Lang: lang, Value: value})
				continue
			}
			prop.Items = append(prop.Items, value)
		case xml.EndElement:
			if len(prop.Items) == 0 && len(prop.Alternatives) == 0 {
				return nil
			}
			return dec.m.Put(prop)
		}
	}
}

// text collects character data up to the end of the current element.
func (dec *decoder) text() (string, error) {
	var b strings.Builder
	depth := 0
	for {
		tok, err := dec.d.Token()
		if err != nil {
			return "", fmt.Errorf("decoding xmp: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return b.String(), nil
			}
			depth--
		}
	}
}
