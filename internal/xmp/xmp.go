// Package xmp reads and writes packets in the XMP sidecar form: an
// rdf:RDF document with a single rdf:Description holding one element per
// property. Arrays are rdf:Bag or rdf:Seq, localized text is rdf:Alt with
// xml:lang on each item, and a path of the form "Outer/prefix:Member"
// addresses a member of the structure Outer.
package xmp

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mesh-intelligence/avmeta/internal/packet"
	"github.com/mesh-intelligence/avmeta/pkg/types"
)

// Well-known namespaces.
const (
	NSRDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NSMeta = "adobe:ns:meta/"
	nsXML  = "http://www.w3.org/XML/1998/namespace"
)

const (
	packetHeader  = "<?xpacket begin=\"\ufeff\" id=\"W5M0MpCehiHzreSzNTczkc9d\"?>\n"
	packetTrailer = "<?xpacket end=\"w\"?>\n"
)

var xmlName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._-]*$`)

// Prefixes maps namespace URIs to serialization prefixes.
type Prefixes map[string]string

func (p Prefixes) uri(prefix string) (string, bool) {
	for uri, pre := range p {
		if pre == prefix {
			return uri, true
		}
	}
	return "", false
}

// entry is one top-level element of the description: a property, or a
// structure grouping the members that share an outer name.
type entry struct {
	ns      string
	local   string
	prop    *packet.Property
	members []member
}

type member struct {
	qname string
	prop  packet.Property
}

// Marshal encodes m as an XMP packet. Namespaces missing from prefixes get
// generated prefixes; struct member prefixes must resolve through
// prefixes.
func Marshal(m *packet.Memory, prefixes Prefixes) ([]byte, error) {
	pre := make(Prefixes, len(prefixes))
	for uri, p := range prefixes {
		pre[uri] = p
	}
	used := make(map[string]string) // prefix -> uri
	declare := func(uri string) string {
		p, ok := pre[uri]
		if !ok {
			for i := 1; ; i++ {
				p = fmt.Sprintf("ns%d", i)
				if _, taken := pre.uri(p); !taken {
					break
				}
			}
			pre[uri] = p
		}
		used[p] = uri
		return p
	}

	var entries []*entry
	structs := make(map[[2]string]*entry)
	for _, prop := range m.Properties() {
		outer, qname, isMember := strings.Cut(prop.Path, "/")
		if !xmlName.MatchString(outer) {
			return nil, fmt.Errorf("%w: %q", types.ErrInvalidPath, prop.Path)
		}
		declare(prop.Namespace)
		if !isMember {
			p := prop
			entries = append(entries, &entry{ns: prop.Namespace, local: outer, prop: &p})
			continue
		}

		memberPrefix, local, ok := strings.Cut(qname, ":")
		if !ok || !xmlName.MatchString(memberPrefix) || !xmlName.MatchString(local) {
			return nil, fmt.Errorf("%w: %q", types.ErrInvalidPath, prop.Path)
		}
		uri, ok := pre.uri(memberPrefix)
		if !ok {
			return nil, fmt.Errorf("%w: %q uses undeclared prefix %q", types.ErrInvalidPath, prop.Path, memberPrefix)
		}
		used[memberPrefix] = uri

		key := [2]string{prop.Namespace, outer}
		e, ok := structs[key]
		if !ok {
			e = &entry{ns: prop.Namespace, local: outer}
			structs[key] = e
			entries = append(entries, e)
		}
		e.members = append(e.members, member{qname: qname, prop: prop})
	}

	var b bytes.Buffer
	b.WriteString(packetHeader)
	fmt.Fprintf(&b, "<x:xmpmeta xmlns:x=\"%s\">\n", NSMeta)
	fmt.Fprintf(&b, " <rdf:RDF xmlns:rdf=\"%s\">\n", NSRDF)
	b.WriteString("  <rdf:Description rdf:about=\"\"")
	declared := make([]string, 0, len(used))
	for p := range used {
		declared = append(declared, p)
	}
	sort.Strings(declared)
	for _, p := range declared {
		fmt.Fprintf(&b, "\n    xmlns:%s=\"%s\"", p, escape(used[p]))
	}
	b.WriteString(">\n")

	for _, e := range entries {
		name := pre[e.ns] + ":" + e.local
		if e.prop != nil {
			writeProperty(&b, "   ", name, *e.prop)
			continue
		}
		fmt.Fprintf(&b, "   <%s rdf:parseType=\"Resource\">\n", name)
		for _, mem := range e.members {
			writeProperty(&b, "    ", mem.qname, mem.prop)
		}
		fmt.Fprintf(&b, "   </%s>\n", name)
	}

	b.WriteString("  </rdf:Description>\n")
	b.WriteString(" </rdf:RDF>\n")
	b.WriteString("</x:xmpmeta>\n")
	b.WriteString(packetTrailer)
	return b.Bytes(), nil
}

func writeProperty(b *bytes.Buffer, indent, name string, p packet.Property) {
	switch p.Form {
	case packet.FormSimple:
		fmt.Fprintf(b, "%s<%s>%s</%s>\n", indent, name, escape(p.Value), name)
	case packet.FormBag, packet.FormSeq:
		container := "rdf:Bag"
		if p.Form == packet.FormSeq {
			container = "rdf:Seq"
		}
		fmt.Fprintf(b, "%s<%s>\n%s <%s>\n", indent, name, indent, container)
		for _, item := range p.Items {
			fmt.Fprintf(b, "%s  <rdf:li>%s</rdf:li>\n", indent, escape(item))
		}
		fmt.Fprintf(b, "%s </%s>\n%s</%s>\n", indent, container, indent, name)
	case packet.FormAlt:
		fmt.Fprintf(b, "%s<%s>\n%s <rdf:Alt>\n", indent, name, indent)
		for _, alt := range p.Alternatives {
			fmt.Fprintf(b, "%s  <rdf:li xml:lang=\"%s\">%s</rdf:li>\n", indent, escape(alt.Lang), escape(alt.Value))
		}
		fmt.Fprintf(b, "%s </rdf:Alt>\n%s</%s>\n", indent, indent, name)
	}
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
