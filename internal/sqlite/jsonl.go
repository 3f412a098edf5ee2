// This file provides JSONL dump and load of the whole catalog with atomic
// persistence.
package sqlite

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/avmeta/internal/packet"
	"github.com/mesh-intelligence/avmeta/pkg/types"
)

// dumpRecord is one line of a catalog dump.
type dumpRecord struct {
	PacketID   string          `json:"packet_id"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
	Properties []packet.Record `json:"properties"`
}

// Dump writes every packet as one JSON line to path, replacing the file
// atomically. It returns the number of packets written.
func (b *Backend) Dump(path string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return 0, types.ErrCatalogDetached
	}

	rows, err := b.db.Query(`SELECT packet_id, created_at, updated_at FROM packets ORDER BY created_at, packet_id`)
	if err != nil {
		return 0, err
	}
	var recs []dumpRecord
	for rows.Next() {
		var rec dumpRecord
		if err := rows.Scan(&rec.PacketID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			rows.Close()
			return 0, err
		}
		recs = append(recs, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	lines := make([]json.RawMessage, 0, len(recs))
	for _, rec := range recs {
		mem, err := loadProperties(b.db, rec.PacketID)
		if err != nil {
			return 0, fmt.Errorf("loading packet %s: %w", rec.PacketID, err)
		}
		rec.Properties = packet.ToDocument(mem).Properties
		line, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("encoding packet %s: %w", rec.PacketID, err)
		}
		lines = append(lines, line)
	}
	if err := writeJSONL(path, lines); err != nil {
		return 0, err
	}
	b.logger.Info("catalog dumped", zap.String("path", path), zap.Int("packets", len(lines)))
	return len(lines), nil
}

// Load reads a dump written by Dump. Each packet keeps its ID and
// timestamps; a packet already in the catalog is replaced. Malformed lines
// and records with a bad ID or property are skipped. It returns the number
// of packets loaded.
func (b *Backend) Load(path string) (int, error) {
	lines, err := readJSONL(path)
	if err != nil {
		return 0, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return 0, types.ErrCatalogDetached
	}

	loaded := 0
	for i, line := range lines {
		var rec dumpRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			b.logger.Warn("dump record skipped", zap.Int("line", i+1), zap.Error(err))
			continue
		}
		if _, err := uuid.Parse(rec.PacketID); err != nil {
			b.logger.Warn("dump record skipped", zap.Int("line", i+1), zap.Error(types.ErrInvalidID))
			continue
		}
		mem, err := packet.FromDocument(packet.Document{Properties: rec.Properties})
		if err != nil {
			b.logger.Warn("dump record skipped", zap.Int("line", i+1), zap.Error(err))
			continue
		}
		now := b.now().UTC().Format(timeFormat)
		if rec.CreatedAt == "" {
			rec.CreatedAt = now
		}
		if rec.UpdatedAt == "" {
			rec.UpdatedAt = rec.CreatedAt
		}
		err = b.inTx(func(tx *sql.Tx) error {
			if _, err := tx.Exec(`DELETE FROM properties WHERE packet_id = ?`, rec.PacketID); err != nil {
				return err
			}
			if _, err := tx.Exec(`INSERT INTO packets (packet_id, created_at, updated_at) VALUES (?, ?, ?)
ON CONFLICT(packet_id) DO UPDATE SET created_at = excluded.created_at, updated_at = excluded.updated_at`,
				rec.PacketID, rec.CreatedAt, rec.UpdatedAt); err != nil {
				return err
			}
			return insertProperties(tx, rec.PacketID, mem)
		})
		if err != nil {
			return loaded, fmt.Errorf("loading packet %s: %w", rec.PacketID, err)
		}
		loaded++
	}
	b.logger.Info("catalog loaded", zap.String("path", path), zap.Int("packets", loaded))
	return loaded, nil
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(step string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%s: %w", step, err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file", err)
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
