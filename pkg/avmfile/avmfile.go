// Package avmfile reads and writes metadata files. A file holds one packet,
// either as an XMP sidecar (.xmp) or in the JSON packet form (.json).
package avmfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/avmeta/internal/packet"
	"github.com/mesh-intelligence/avmeta/internal/xmp"
	"github.com/mesh-intelligence/avmeta/pkg/avm"
	"github.com/mesh-intelligence/avmeta/pkg/schema"
	"github.com/mesh-intelligence/avmeta/pkg/types"
)

// Format is a file serialization.
type Format string

// Supported formats.
const (
	FormatXMP  Format = "xmp"
	FormatJSON Format = "json"
)

// FormatFor picks the format from the file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xmp":
		return FormatXMP, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, path)
}

// Snapshotter is implemented by packets that are not held in memory, such
// as catalog packets, so they can be serialized.
type Snapshotter interface {
	Snapshot() (*packet.Memory, error)
}

func prefixes(reg *schema.Registry) xmp.Prefixes {
	out := make(xmp.Prefixes)
	for _, ns := range reg.Namespaces() {
		out[ns.URI] = ns.Prefix
	}
	return out
}

// Encode serializes a packet.
func Encode(p types.Packet, f Format, reg *schema.Registry) ([]byte, error) {
	m, err := memoryOf(p)
	if err != nil {
		return nil, err
	}
	switch f {
	case FormatXMP:
		return xmp.Marshal(m, prefixes(registry(reg)))
	case FormatJSON:
		return packet.Marshal(m)
	}
	return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedFormat, f)
}

// Decode parses a serialized packet.
func Decode(data []byte, f Format, reg *schema.Registry) (*packet.Memory, error) {
	switch f {
	case FormatXMP:
		return xmp.Unmarshal(data, prefixes(registry(reg)))
	case FormatJSON:
		return packet.Unmarshal(data)
	}
	return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedFormat, f)
}

func memoryOf(p types.Packet) (*packet.Memory, error) {
	switch t := p.(type) {
	case *packet.Memory:
		return t, nil
	case Snapshotter:
		return t.Snapshot()
	}
	return nil, fmt.Errorf("%w: cannot serialize %T", types.ErrUnsupportedFormat, p)
}

func registry(reg *schema.Registry) *schema.Registry {
	if reg == nil {
		return schema.AVM11()
	}
	return reg
}

// ReadPacket loads the packet stored in path.
func ReadPacket(path string, reg *schema.Registry) (*packet.Memory, error) {
	f, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	m, err := Decode(data, f, reg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// WritePacket stores p in path using the temp-file, fsync, rename pattern.
func WritePacket(path string, p types.Packet, reg *schema.Registry) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}
	data, err := Encode(p, f, reg)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".avmeta-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	if _, err := w.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing packet: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Open builds a façade over the packet stored in path.
func Open(path string, reg *schema.Registry, opts ...avm.Option) (*avm.Meta, error) {
	m, err := ReadPacket(path, reg)
	if err != nil {
		return nil, err
	}
	return avm.FromPacket(m, withRegistry(reg, opts)...), nil
}

// Save writes the façade's packet to path.
func Save(path string, meta *avm.Meta) error {
	return WritePacket(path, meta.Packet(), meta.Registry())
}

func withRegistry(reg *schema.Registry, opts []avm.Option) []avm.Option {
	return append([]avm.Option{avm.WithRegistry(registry(reg))}, opts...)
}

// FromFile returns the field values held in path. When the file cannot be
// read or parsed the mapping is empty and the error says why.
func FromFile(path string, reg *schema.Registry, opts ...avm.Option) (map[string]any, error) {
	meta, err := Open(path, reg, opts...)
	if err != nil {
		return map[string]any{}, err
	}
	return meta.Data(), nil
}

// ToFile merges values into the packet stored in path, keeping the fields
// values does not mention, and writes the result back. A missing file is
// created. Values are applied best effort; the applied field names are
// returned.
func ToFile(path string, reg *schema.Registry, values map[string]any, opts ...avm.Option) ([]string, error) {
	if _, err := FormatFor(path); err != nil {
		return nil, err
	}
	var meta *avm.Meta
	switch _, err := os.Stat(path); {
	case err == nil:
		meta, err = Open(path, reg, opts...)
		if err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		meta = avm.New(withRegistry(reg, opts)...)
	default:
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	applied := meta.Apply(values)
	if err := Save(path, meta); err != nil {
		return nil, err
	}
	return applied, nil
}
