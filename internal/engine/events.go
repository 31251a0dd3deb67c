package engine

// Event is an inbound client event. The set of events is closed: only the
// types in this file implement it.
type Event interface {
	eventName() string
}

// ClientIdentified is raised once a client has completed the protocol
// handshake. It triggers a replay of the default room.
type ClientIdentified struct{}

// SubscribeToRooms is raised when a client links to one or more rooms.
type SubscribeToRooms struct {
	Rooms []string
}

// BroadcastMessage is a message sent to everyone in a room.
type BroadcastMessage struct {
	Room  string
	Value any
}

// PrivateMessage is a message aimed at the members of Room matching Target.
type PrivateMessage struct {
	Room   string
	Target string
	Value  any
}

// BroadcastVariableSet sets a room-wide variable.
type BroadcastVariableSet struct {
	Room  string
	Name  string
	Value any
}

// PrivateVariableSet sets a variable visible only to the members of Room
// matching Target.
type PrivateVariableSet struct {
	Room   string
	Target string
	Name   string
	Value  any
}

// ProjectHandshake is raised when a client joins a project.
type ProjectHandshake struct {
	ProjectID string
}

type ProjectVariableCreate struct {
	ProjectID string
	Name      string
	Value     any
}

type ProjectVariableSet struct {
	ProjectID string
	Name      string
	Value     any
}

type ProjectVariableRename struct {
	ProjectID string
	Name      string
	NewName   string
}

type ProjectVariableDelete struct {
	ProjectID string
	Name      string
}

func (ClientIdentified) eventName() string      { return "client_identified" }
func (SubscribeToRooms) eventName() string      { return "subscribe" }
func (BroadcastMessage) eventName() string      { return "gmsg" }
func (PrivateMessage) eventName() string        { return "pmsg" }
func (BroadcastVariableSet) eventName() string  { return "gvar" }
func (PrivateVariableSet) eventName() string    { return "pvar" }
func (ProjectHandshake) eventName() string      { return "handshake" }
func (ProjectVariableCreate) eventName() string { return "create" }
func (ProjectVariableSet) eventName() string    { return "set" }
func (ProjectVariableRename) eventName() string { return "rename" }
func (ProjectVariableDelete) eventName() string { return "delete" }

// EventName returns the protocol command name of ev.
func EventName(ev Event) string {
	if ev == nil {
		return ""
	}
	return ev.eventName()
}
