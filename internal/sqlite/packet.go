package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/avmeta/internal/packet"
	"github.com/mesh-intelligence/avmeta/pkg/types"
)

var _ types.StoredPacket = (*storedPacket)(nil)

// storedPacket is a catalog packet. Reads are served from memory; each
// mutation is applied in memory, then the affected property's rows are
// rewritten in one transaction. A failed write restores the in-memory
// property.
type storedPacket struct {
	b   *Backend
	id  string
	mem *packet.Memory
}

func (p *storedPacket) ID() string { return p.id }

// Snapshot returns a copy of the packet's properties.
func (p *storedPacket) Snapshot() (*packet.Memory, error) {
	return p.mem.Clone(), nil
}

func (p *storedPacket) GetProperty(ns, path string) (string, bool) {
	return p.mem.GetProperty(ns, path)
}

func (p *storedPacket) CountArrayItems(ns, path string) int {
	return p.mem.CountArrayItems(ns, path)
}

func (p *storedPacket) GetArrayItem(ns, path string, index int) (string, bool) {
	return p.mem.GetArrayItem(ns, path, index)
}

func (p *storedPacket) GetLocalizedText(ns, path, genericLang, specificLang string) (string, bool) {
	return p.mem.GetLocalizedText(ns, path, genericLang, specificLang)
}

func (p *storedPacket) SetProperty(ns, path, value string) error {
	return p.mutate(ns, path, func() error { return p.mem.SetProperty(ns, path, value) })
}

func (p *storedPacket) DeleteProperty(ns, path string) error {
	if _, ok := p.mem.Lookup(ns, path); !ok {
		return nil
	}
	return p.mutate(ns, path, func() error { return p.mem.DeleteProperty(ns, path) })
}

func (p *storedPacket) AppendArrayItem(ns, path, value string, form types.ArrayForm) error {
	return p.mutate(ns, path, func() error { return p.mem.AppendArrayItem(ns, path, value, form) })
}

func (p *storedPacket) ReplaceArray(ns, path string, form types.ArrayForm, items []string) error {
	return p.mutate(ns, path, func() error { return p.mem.ReplaceArray(ns, path, form, items) })
}

func (p *storedPacket) SetLocalizedText(ns, path, genericLang, specificLang, value string) error {
	return p.mutate(ns, path, func() error {
		return p.mem.SetLocalizedText(ns, path, genericLang, specificLang, value)
	})
}

func (p *storedPacket) mutate(ns, path string, apply func() error) error {
	p.b.mu.RLock()
	defer p.b.mu.RUnlock()
	if !p.b.attached {
		return types.ErrCatalogDetached
	}

	prior, had := p.mem.Lookup(ns, path)
	if err := apply(); err != nil {
		return err
	}
	now := p.b.now().UTC().Format(timeFormat)
	err := p.b.inTx(func(tx *sql.Tx) error {
		return persistProperty(tx, p.id, p.mem, ns, path, now)
	})
	if err != nil {
		if had {
			_ = p.mem.Put(prior)
		} else {
			_ = p.mem.DeleteProperty(ns, path)
		}
		return fmt.Errorf("persisting %s %s: %w", ns, path, err)
	}
	return nil
}

// persistProperty rewrites the rows of one property, keeping its place in
// the packet's property order.
func persistProperty(tx *sql.Tx, id string, mem *packet.Memory, ns, path, now string) error {
	res, err := tx.Exec(`UPDATE packets SET updated_at = ? WHERE packet_id = ?`, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrPacketNotFound
	}

	var seq int
	err = tx.QueryRow(`SELECT seq FROM properties WHERE packet_id = ? AND namespace = ? AND path = ? LIMIT 1`,
		id, ns, path).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM properties WHERE packet_id = ?`, id).Scan(&seq)
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM properties WHERE packet_id = ? AND namespace = ? AND path = ?`, id, ns, path); err != nil {
		return err
	}
	if prop, ok := mem.Lookup(ns, path); ok {
		if err := insertRows(tx, id, prop, seq); err != nil {
			return err
		}
	}
	return nil
}

// insertProperties writes every property of mem in order.
func insertProperties(tx *sql.Tx, id string, mem *packet.Memory) error {
	for i, prop := range mem.Properties() {
		if err := insertRows(tx, id, prop, i+1); err != nil {
			return err
		}
	}
	return nil
}

func insertRows(tx *sql.Tx, id string, prop packet.Property, seq int) error {
	const insert = `INSERT INTO properties (packet_id, namespace, path, form, seq, position, lang, value)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	switch prop.Form {
	case packet.FormSimple:
		_, err := tx.Exec(insert, id, prop.Namespace, prop.Path, prop.Form, seq, 0, "", prop.Value)
		return err
	case packet.FormBag, packet.FormSeq:
		for i, item := range prop.Items {
			if _, err := tx.Exec(insert, id, prop.Namespace, prop.Path, prop.Form, seq, i+1, "", item); err != nil {
				return err
			}
		}
	case packet.FormAlt:
		for i, alt := range prop.Alternatives {
			if _, err := tx.Exec(insert, id, prop.Namespace, prop.Path, prop.Form, seq, i+1, alt.Lang, alt.Value); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown form %q", prop.Form)
	}
	return nil
}

// loadProperties rebuilds a packet from its rows.
func loadProperties(db *sql.DB, id string) (*packet.Memory, error) {
	rows, err := db.Query(`SELECT namespace, path, form, lang, value FROM properties
WHERE packet_id = ? ORDER BY seq, position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mem := packet.New()
	var cur *packet.Property
	flush := func() error {
		if cur == nil {
			return nil
		}
		return mem.Put(*cur)
	}
	for rows.Next() {
		var ns, path, form, lang, value string
		if err := rows.Scan(&ns, &path, &form, &lang, &value); err != nil {
			return nil, err
		}
		if cur == nil || cur.Namespace != ns || cur.Path != path {
			if err := flush(); err != nil {
				return nil, err
			}
			cur = &packet.Property{Namespace: ns, Path: path, Form: packet.Form(form)}
		}
		switch cur.Form {
		case packet.FormSimple:
			cur.Value = value
		case packet.FormBag, packet.FormSeq:
			cur.Items = append(cur.Items, value)
		case packet.FormAlt:
			cur.Alternatives = append(cur.Alternatives, packet.AltText{Lang: lang, Value: value})
		default:
			return nil, fmt.Errorf("property %s %s: unknown form %q", ns, path, form)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return mem, nil
}
