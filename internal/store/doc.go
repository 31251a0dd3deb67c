// Package store provides the SQLite-backed record.Store, the default backend
// of roomstore, and OpenBackend, which selects a backend from configuration.
//
// The SQLite store keeps three tables, one per record kind:
//   - messages:          PRIMARY KEY (room, target)
//   - variables:         PRIMARY KEY (room, name, target)
//   - project_variables: PRIMARY KEY (project_id, name)
//
// Broadcast records use the empty string as target. Writes are
// INSERT ... ON CONFLICT DO UPDATE, so every key holds the last value written.
// Values and origins are stored as TEXT produced by a record.Codec.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - Single open connection: SQLite allows one writer at a time
//
// Fetch queries order by key so CLI and golden output stays stable, although
// callers must not rely on any order.
package store
