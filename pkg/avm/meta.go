// Package avm provides the metadata façade: a mapping-like view over one
// packet, keyed by the field names of a schema registry.
//
// Writes go through the field's descriptor and the cache entry is refreshed
// by reading the value back, so the cache always matches what the packet
// holds. Reads always go to the packet.
//
// A Meta is not safe for concurrent use. It owns its packet exclusively.
package avm

import (
	"errors"
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/avmeta/internal/packet"
	"github.com/mesh-intelligence/avmeta/pkg/schema"
	"github.com/mesh-intelligence/avmeta/pkg/types"
)

// MetadataDateField is stamped with the clock's date when New builds an
// empty packet.
const MetadataDateField = "MetadataDate"

// Meta is the metadata façade.
type Meta struct {
	reg    *schema.Registry
	packet types.Packet
	cache  map[string]any
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Meta.
type Option func(*Meta)

// WithRegistry selects the schema. The default is schema.AVM11().
func WithRegistry(r *schema.Registry) Option {
	return func(m *Meta) {
		if r != nil {
			m.reg = r
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(m *Meta) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock sets the time source used for MetadataDate. The default is
// time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Meta) {
		if now != nil {
			m.now = now
		}
	}
}

func newMeta(p types.Packet, opts []Option) *Meta {
	m := &Meta{
		reg:    schema.AVM11(),
		packet: p,
		cache:  make(map[string]any),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// New returns a façade over a fresh in-memory packet. When the registry
// declares MetadataDate it is set to the clock's current date.
func New(opts ...Option) *Meta {
	m := newMeta(packet.New(), opts)
	m.stamp()
	return m
}

// FromPacket returns a façade over an existing packet and eagerly caches
// every registered field that the packet holds. Fields whose stored text
// cannot be decoded are left out of the cache; Get reports their error.
func FromPacket(p types.Packet, opts ...Option) *Meta {
	m := newMeta(p, opts)
	for _, name := range m.reg.Names() {
		d, _ := m.reg.Lookup(name)
		v, err := d.Read(p)
		if err != nil {
			m.logger.Warn("unreadable field", zap.String("field", name), zap.Error(err))
			continue
		}
		if v != nil {
			m.cache[name] = v
		}
	}
	return m
}

// FromMap returns a façade over a fresh packet with values applied best
// effort. It returns the names of the fields that were applied.
func FromMap(values map[string]any, opts ...Option) (*Meta, []string) {
	m := New(opts...)
	return m, m.Apply(values)
}

func (m *Meta) stamp() {
	if !m.reg.Has(MetadataDateField) {
		return
	}
	if err := m.Set(MetadataDateField, m.now()); err != nil {
		m.logger.Warn("stamping metadata date", zap.Error(err))
	}
}

// Set validates value and writes it to the packet. A nil value deletes the
// field. On failure the packet and the cache are left as they were. When
// the written value cannot be read back the write still stands; the field
// leaves the cache and Get reports the decode error.
func (m *Meta) Set(name string, value any) error {
	d, err := m.reg.Lookup(name)
	if err != nil {
		return err
	}
	if err := d.Write(m.packet, value); err != nil {
		return err
	}
	stored, err := d.Read(m.packet)
	if err != nil {
		delete(m.cache, name)
		m.logger.Warn("unreadable field after set", zap.String("field", name), zap.Error(err))
		return nil
	}
	if stored == nil {
		delete(m.cache, name)
	} else {
		m.cache[name] = stored
	}
	m.logger.Debug("field set", zap.String("field", name), zap.Any("value", stored))
	return nil
}

// Get reads the field from the packet. An absent field returns nil.
func (m *Meta) Get(name string) (any, error) {
	d, err := m.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	return d.Read(m.packet)
}

// Delete removes the field from the packet and the cache. Deleting an
// absent field succeeds.
func (m *Meta) Delete(name string) error {
	d, err := m.reg.Lookup(name)
	if err != nil {
		return err
	}
	if err := d.Delete(m.packet); err != nil {
		return err
	}
	delete(m.cache, name)
	m.logger.Debug("field deleted", zap.String("field", name))
	return nil
}

// Apply sets every entry of values in field-name order, skipping unknown
// fields and values that fail validation. It returns the names of the
// fields that were applied, sorted.
func (m *Meta) Apply(values map[string]any) []string {
	applied := make([]string, 0, len(values))
	for _, name := range slices.Sorted(maps.Keys(values)) {
		if err := m.Set(name, values[name]); err != nil {
			m.logger.Debug("field skipped", zap.String("field", name), zap.Error(err))
			continue
		}
		applied = append(applied, name)
	}
	return applied
}

// Data returns a copy of the cache: every field known to hold a value.
func (m *Meta) Data() map[string]any {
	return maps.Clone(m.cache)
}

// Cached returns the cached value of a field without touching the packet.
func (m *Meta) Cached(name string) (any, bool) {
	v, ok := m.cache[name]
	return v, ok
}

// Packet returns the packet the façade owns.
func (m *Meta) Packet() types.Packet { return m.packet }

// Registry returns the schema in use.
func (m *Meta) Registry() *schema.Registry { return m.reg }

// IsUnknownField reports whether err means a field name is not registered.
func IsUnknownField(err error) bool {
	return errors.Is(err, types.ErrUnknownField)
}
