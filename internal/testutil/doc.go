// Package testutil provides in-memory stand-ins for the collaborators the
// engine talks to: connected clients, the room registry, the packet sender
// and a call-recording record store.
package testutil
