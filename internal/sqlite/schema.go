// Package sqlite implements the packet catalog on SQLite.
// This file holds the schema DDL.
package sqlite

// Schema DDL. Statements are idempotent so an existing catalog is reused.
const (
	createPackets = `CREATE TABLE IF NOT EXISTS packets (
    packet_id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	// One row per simple value, array item or language alternative.
	// seq orders properties within a packet; position orders items.
	createProperties = `CREATE TABLE IF NOT EXISTS properties (
    packet_id TEXT NOT NULL,
    namespace TEXT NOT NULL,
    path TEXT NOT NULL,
    form TEXT NOT NULL,
    seq INTEGER NOT NULL,
    position INTEGER NOT NULL,
    lang TEXT NOT NULL DEFAULT '',
    value TEXT NOT NULL,
    PRIMARY KEY (packet_id, namespace, path, position),
    FOREIGN KEY (packet_id) REFERENCES packets(packet_id) ON DELETE CASCADE
);`

	createPropertiesIndex = `CREATE INDEX IF NOT EXISTS idx_properties_packet_seq ON properties(packet_id, seq, position);`
)

var schemaStatements = []string{
	`PRAGMA foreign_keys = ON;`,
	createPackets,
	createProperties,
	createPropertiesIndex,
}
