package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/avmeta/internal/packet"
	"github.com/mesh-intelligence/avmeta/pkg/types"
)

// DBFile is the catalog database file name inside the data directory.
const DBFile = "catalog.db"

// timeFormat is the text form of timestamps in the database.
const timeFormat = time.RFC3339Nano

var _ types.Catalog = (*Backend)(nil)

// Backend implements types.Catalog using SQLite. Every packet it hands out
// keeps its properties in memory and writes each change through to the
// database.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the backend logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClock sets the time source for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach opens (creating if needed) the catalog database in DataDir.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	dbPath := filepath.Join(dataDir, DBFile)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	// A single connection keeps PRAGMA foreign_keys in effect for every
	// statement.
	db.SetMaxOpenConns(1)
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("initializing schema: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.attached = true
	b.logger.Info("catalog attached", zap.String("path", dbPath))
	return nil
}

// Detach closes the database. After Detach every operation, including
// writes through packets obtained earlier, returns ErrCatalogDetached.
// Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	b.logger.Info("catalog detached", zap.String("data_dir", b.config.DataDir))
	return nil
}

// Create allocates an empty packet with a fresh ID.
func (b *Backend) Create() (types.StoredPacket, error) {
	return b.Import(packet.New())
}

// Import stores a copy of m as a new packet.
func (b *Backend) Import(m *packet.Memory) (types.StoredPacket, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrCatalogDetached
	}

	id := generateUUID()
	now := b.now().UTC().Format(timeFormat)
	mem := m.Clone()

	err := b.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO packets (packet_id, created_at, updated_at) VALUES (?, ?, ?)`, id, now, now); err != nil {
			return err
		}
		return insertProperties(tx, id, mem)
	})
	if err != nil {
		return nil, fmt.Errorf("creating packet: %w", err)
	}
	return &storedPacket{b: b, id: id, mem: mem}, nil
}

// Open loads the packet with the given ID.
func (b *Backend) Open(id string) (types.StoredPacket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, types.ErrInvalidID
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrCatalogDetached
	}

	var exists int
	err := b.db.QueryRow(`SELECT 1 FROM packets WHERE packet_id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrPacketNotFound
	}
	if err != nil {
		return nil, err
	}

	mem, err := loadProperties(b.db, id)
	if err != nil {
		return nil, fmt.Errorf("loading packet %s: %w", id, err)
	}
	return &storedPacket{b: b, id: id, mem: mem}, nil
}

// List returns every packet ordered by creation time.
func (b *Backend) List() ([]types.PacketInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrCatalogDetached
	}

	rows, err := b.db.Query(`
SELECT p.packet_id, p.created_at, p.updated_at,
       (SELECT COUNT(DISTINCT namespace || ' ' || path) FROM properties WHERE packet_id = p.packet_id)
FROM packets p
ORDER BY p.created_at, p.packet_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.PacketInfo
	for rows.Next() {
		var info types.PacketInfo
		var created, updated string
		if err := rows.Scan(&info.PacketID, &created, &updated, &info.Properties); err != nil {
			return nil, err
		}
		if info.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
			return nil, fmt.Errorf("packet %s: created_at: %w", info.PacketID, err)
		}
		if info.UpdatedAt, err = time.Parse(timeFormat, updated); err != nil {
			return nil, fmt.Errorf("packet %s: updated_at: %w", info.PacketID, err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Remove deletes a packet and all of its properties.
func (b *Backend) Remove(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return types.ErrInvalidID
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrCatalogDetached
	}

	return b.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM properties WHERE packet_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.Exec(`DELETE FROM packets WHERE packet_id = ?`, id)
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
		return nil
	})
}

// inTx runs fn in a transaction, committing on success. Callers hold b.mu.
func (b *Backend) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := b.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// generateUUID generates a new UUID v7 for packet IDs.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}
