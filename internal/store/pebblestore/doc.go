// Package pebblestore implements record.Store on a Pebble key-value database.
//
// Keyspace (byte-wise, every component length-prefixed with a uvarint):
//   - m/{room}{target}          message records
//   - v/{room}{name}{target}    variable records
//   - p/{project}{name}         project variables
//
// Message and variable values are JSON envelopes holding the codec text of
// the value and the origin snapshot. Project variables store the codec text
// directly. A rename is one Pebble batch: the delete of the old key and the
// set of the new key commit together or not at all.
//
// Usage:
//
//	s, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeAlways,
//	})
//	if err != nil { /* handle */ }
//	defer s.Close()
package pebblestore
