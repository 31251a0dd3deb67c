// Package replay selects the persisted records a client should receive when
// it connects, subscribes to a room, or joins a project.
//
// # Connect replay
//
// ConnectReplay walks every message and variable stored for a room and
// keeps the broadcast records plus the private records addressed to the
// requesting user. Private records for anyone else are never emitted. Each
// record kind can be switched off independently through Flags.
//
// # Project replay
//
// ProjectReplay merges the persisted project variables with the live
// variable map of a running room. Live values always win: a persisted name
// already present in the live map is skipped. A missing name is copied into
// the live map when the room is live, and a "set" event is emitted for it
// either way. The live map is only ever added to.
//
// Rooms denied by the policy are not read at all.
package replay
