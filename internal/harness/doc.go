// Package harness runs scripted sessions against the engine and checks what
// each client receives.
//
// A scenario declares clients, room membership and live rooms, then a list
// of inbound events. Every step goes through engine.Handle backed by a fresh
// in-memory SQLite store, an in-memory registry and a recording sender, so
// the trace is exactly what real clients would have been sent.
//
// # Scenario Format
//
//	name: lobby_last_value
//	description: "A late joiner sees only the last broadcast"
//	config:
//	  disabled_room_patterns: ["secret-.*"]
//	clients: [alice, bob, carol]
//	rooms:
//	  lobby: [alice, bob, carol]
//	live:
//	  proj1: { x: 1 }
//	steps:
//	  - client: alice
//	    event: gmsg
//	    room: lobby
//	    value: hi
//	  - client: carol
//	    event: subscribe
//	    rooms: [lobby]
//	assertions:
//	  - type: delivered
//	    to: carol
//	    packet: { cmd: gmsg, val: hi, rooms: lobby }
//
// Assertion types:
//   - delivered: a packet containing the given fields reached the client
//   - not_delivered: no such packet reached the client
//   - delivery_count: the client received exactly count packets
//   - live_variable: a live room holds name with the given value at the end
//
// # Golden Traces
//
// MarshalSnapshot renders a run as stable JSON. The package tests compare
// it against testdata/golden/{name}.golden. Correlation ids are fixed (evt-001,
// evt-002, ...) so traces are reproducible. Regenerate with:
//
//	go test ./internal/harness -update
package harness
