package types

import "time"

// StoredPacket is a packet persisted in a catalog under a stable ID.
// Array rewrites go to the database as one change.
type StoredPacket interface {
	Packet
	ArrayReplacer
	ID() string
}

// PacketInfo describes a catalog entry without loading its properties.
type PacketInfo struct {
	PacketID   string    `json:"packet_id" yaml:"packet_id"`
	Properties int       `json:"properties" yaml:"properties"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}

// Catalog stores many packets behind one backend. Callers attach to a
// backend, create or open packets by ID, and detach when done.
type Catalog interface {
	// Attach connects the catalog to the backend described by config.
	// Returns ErrAlreadyAttached if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent.
	Detach() error

	// Create allocates a new empty packet with a generated ID.
	Create() (StoredPacket, error)

	// Open loads the packet with the given ID.
	// Returns ErrPacketNotFound if no packet exists with that ID.
	Open(id string) (StoredPacket, error)

	// List returns every packet ordered by creation time.
	List() ([]PacketInfo, error)

	// Remove deletes a packet and all of its properties.
	// Returns ErrPacketNotFound if no packet exists with that ID.
	Remove(id string) error
}
