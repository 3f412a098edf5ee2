// Package schema holds the field registry: the static mapping from field
// name to field-type descriptor, and the namespace table used when
// serializing packets.
//
// Registries are built from TOML tables. The AVM 1.1 table ships embedded
// and is available through AVM11.
package schema

import (
	"fmt"
	"sort"

	"github.com/mesh-intelligence/avmeta/pkg/fields"
	"github.com/mesh-intelligence/avmeta/pkg/types"
)

// Namespace maps a serialization prefix to a namespace URI.
type Namespace struct {
	Prefix string
	URI    string
}

// Registry is a read-only mapping from field name to descriptor. Field
// names are unique and no two fields share a (namespace, path) property.
type Registry struct {
	version    string
	byName     map[string]*fields.Descriptor
	names      []string
	namespaces []Namespace
}

type property struct {
	ns   string
	path string
}

// NewRegistry builds a registry from descriptors and namespaces. Every
// descriptor must have a name and a namespace listed in namespaces.
func NewRegistry(version string, namespaces []Namespace, descs []*fields.Descriptor) (*Registry, error) {
	r := &Registry{
		version:    version,
		byName:     make(map[string]*fields.Descriptor, len(descs)),
		namespaces: append([]Namespace(nil), namespaces...),
	}

	uris := make(map[string]bool, len(namespaces))
	prefixes := make(map[string]bool, len(namespaces))
	for _, ns := range namespaces {
		if ns.Prefix == "" || ns.URI == "" {
			return nil, fmt.Errorf("%w: namespace needs prefix and uri", types.ErrInvalidDescriptor)
		}
		if prefixes[ns.Prefix] || uris[ns.URI] {
			return nil, fmt.Errorf("%w: namespace %s (%s) declared twice", types.ErrInvalidDescriptor, ns.Prefix, ns.URI)
		}
		prefixes[ns.Prefix] = true
		uris[ns.URI] = true
	}

	seen := make(map[property]string, len(descs))
	for _, d := range descs {
		name := d.Name()
		if name == "" {
			return nil, fmt.Errorf("%w: descriptor for %s %s has no name", types.ErrInvalidDescriptor, d.Namespace(), d.Path())
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("%w: %s", types.ErrDuplicateField, name)
		}
		if !uris[d.Namespace()] {
			return nil, fmt.Errorf("%w: field %s uses %s", types.ErrUnknownNamespace, name, d.Namespace())
		}
		key := property{d.Namespace(), d.Path()}
		if other, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s and %s both map to %s %s", types.ErrDuplicateProperty, other, name, key.ns, key.path)
		}
		seen[key] = name
		r.byName[name] = d
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Version returns the schema version string, such as "1.1".
func (r *Registry) Version() string { return r.version }

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*fields.Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, &types.FieldError{Field: name, Err: types.ErrUnknownField}
	}
	return d, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Names returns every field name in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of registered fields.
func (r *Registry) Len() int { return len(r.names) }

// Namespaces returns the namespace table in declaration order.
func (r *Registry) Namespaces() []Namespace {
	return append([]Namespace(nil), r.namespaces...)
}

// Prefix returns the serialization prefix of a namespace URI.
func (r *Registry) Prefix(uri string) (string, bool) {
	for _, ns := range r.namespaces {
		if ns.URI == uri {
			return ns.Prefix, true
		}
	}
	return "", false
}
