package schema

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/mesh-intelligence/avmeta/pkg/fields"
	"github.com/mesh-intelligence/avmeta/pkg/types"
)

//go:embed avm11.toml
var avm11Table []byte

// tableFile is the TOML document layout. Field rows name their namespace
// by prefix.
type tableFile struct {
	Version    string         `toml:"version"`
	Namespaces []namespaceRow `toml:"namespace"`
	Fields     []fieldRow     `toml:"field"`
}

type namespaceRow struct {
	Prefix string `toml:"prefix"`
	URI    string `toml:"uri"`
}

type fieldRow struct {
	Name         string   `toml:"name"`
	Namespace    string   `toml:"namespace"`
	Path         string   `toml:"path"`
	Kind         string   `toml:"kind"`
	Vocabulary   []string `toml:"vocabulary"`
	Format       string   `toml:"format"`
	Length       int      `toml:"length"`
	Strict       bool     `toml:"strict"`
	GenericLang  string   `toml:"generic_lang"`
	SpecificLang string   `toml:"specific_lang"`
}

var (
	avm11Once sync.Once
	avm11Reg  *Registry
)

// AVM11 returns the registry of the Astronomy Visualization Metadata 1.1
// standard. The embedded table is parsed once.
func AVM11() *Registry {
	avm11Once.Do(func() {
		r, err := Parse(avm11Table)
		if err != nil {
			panic(fmt.Sprintf("schema: embedded AVM 1.1 table: %v", err))
		}
		avm11Reg = r
	})
	return avm11Reg
}

// AVM11Table returns the embedded AVM 1.1 table source.
func AVM11Table() []byte {
	return append([]byte(nil), avm11Table...)
}

// Load reads and parses a TOML schema table from path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema load failed (%s): %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema parse failed (%s): %w", path, err)
	}
	return r, nil
}

// Parse builds a registry from a TOML schema table. Unknown keys are
// rejected so typos do not silently drop constraints.
func Parse(data []byte) (*Registry, error) {
	var tf tableFile
	meta, err := toml.Decode(string(data), &tf)
	if err != nil {
		return nil, fmt.Errorf("decoding schema table: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys %s", types.ErrInvalidDescriptor, strings.Join(keys, ", "))
	}

	namespaces := make([]Namespace, 0, len(tf.Namespaces))
	uriByPrefix := make(map[string]string, len(tf.Namespaces))
	for _, row := range tf.Namespaces {
		namespaces = append(namespaces, Namespace{Prefix: row.Prefix, URI: row.URI})
		uriByPrefix[row.Prefix] = row.URI
	}

	descs := make([]*fields.Descriptor, 0, len(tf.Fields))
	for i, row := range tf.Fields {
		if row.Name == "" {
			return nil, fmt.Errorf("%w: field %d has no name", types.ErrInvalidDescriptor, i+1)
		}
		uri, ok := uriByPrefix[row.Namespace]
		if !ok {
			return nil, fmt.Errorf("%w: field %s uses prefix %q", types.ErrUnknownNamespace, row.Name, row.Namespace)
		}
		d, err := fields.New(fields.Spec{
			Name:         row.Name,
			Namespace:    uri,
			Path:         row.Path,
			Kind:         fields.Kind(row.Kind),
			Vocabulary:   row.Vocabulary,
			Format:       fields.Format(row.Format),
			Length:       row.Length,
			Strict:       row.Strict,
			GenericLang:  row.GenericLang,
			SpecificLang: row.SpecificLang,
		})
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return NewRegistry(tf.Version, namespaces, descs)
}
