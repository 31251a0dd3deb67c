// Package record defines the persisted record kinds of roomstore and the
// contract every storage backend implements.
//
// This package contains type definitions, the value codec and the error
// taxonomy only. Every other internal package imports record; record imports
// nothing internal.
//
// Three independent key spaces exist:
//   - MessageRecord:   (room, target)
//   - VariableRecord:  (room, name, target)
//   - ProjectVariable: (project_id, name)
//
// An empty Target means broadcast; a non-empty Target is the username of the
// single recipient of a private record. Every key holds at most one record:
// writes are upserts and the last committed write wins.
//
// Values are opaque to the store. They cross the storage edge through a
// Codec, so nothing above the store depends on a particular encoding.
package record
