package record

import "fmt"

// Identity is the snapshot of a sender attached to private records.
// It mirrors the user object the wire protocol puts in "origin".
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	UUID     string `json:"uuid"`
}

// MessageRecord is the last message sent to a room, either broadcast
// (Target empty) or aimed at one recipient.
type MessageRecord struct {
	Room   string
	Target string
	Value  any
	Origin *Identity
}

// IsPrivate reports whether the record is addressed to a single recipient.
func (r MessageRecord) IsPrivate() bool { return r.Target != "" }

// Key renders the record key within its room, for error context and logs.
func (r MessageRecord) Key() string { return targetKey(r.Target) }

// VariableRecord is the last value of a named room variable, either global
// (Target empty) or private to one recipient.
type VariableRecord struct {
	Room   string
	Name   string
	Target string
	Value  any
	Origin *Identity
}

// IsPrivate reports whether the record is addressed to a single recipient.
func (r VariableRecord) IsPrivate() bool { return r.Target != "" }

// Key renders the record key within its room.
func (r VariableRecord) Key() string {
	return fmt.Sprintf("%s/%s", r.Name, targetKey(r.Target))
}

// ProjectVariable is one entry of a project's flat variable table.
type ProjectVariable struct {
	ProjectID string
	Name      string
	Value     any
}

func targetKey(target string) string {
	if target == "" {
		return "broadcast"
	}
	return "private:" + target
}
