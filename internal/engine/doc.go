// Package engine turns inbound client events into record store writes and
// replay deliveries.
//
// Every event goes through Engine.Handle, which:
//
//  1. normalizes room, project, target and variable names to NFC,
//  2. drops the event if its room or project is denied by the policy, or
//     if its record kind is switched off,
//  3. upserts, renames or deletes records for writes, or builds a replay
//     and hands each outbound event to the Sender for connect, subscribe
//     and handshake events.
//
// Each handled event is tagged with a UUIDv7 correlation id that appears
// on every log line it produces.
//
// The engine keeps no state of its own. Handle is safe to call from many
// goroutines; ordering between concurrent writes to the same key is decided
// by the record store (last commit wins).
//
// The engine never locks the live variable table of a room. Registries
// whose handshakes can race must make LiveVariables safe for concurrent
// use.
package engine
