package engine

import "golang.org/x/text/unicode/norm"

// Normalize puts an identifier in Unicode NFC so visually identical room,
// user and variable names map to the same record key. Callers reading the
// store outside Handle must normalize their keys the same way.
func Normalize(s string) string {
	return norm.NFC.String(s)
}

// normalizeEvent returns ev with every identifier normalized. Values are
// left untouched.
func normalizeEvent(ev Event) Event {
	switch ev := ev.(type) {
	case SubscribeToRooms:
		rooms := make([]string, len(ev.Rooms))
		for i, r := range ev.Rooms {
			rooms[i] = Normalize(r)
		}
		return SubscribeToRooms{Rooms: rooms}
	case BroadcastMessage:
		ev.Room = Normalize(ev.Room)
		return ev
	case PrivateMessage:
		ev.Room = Normalize(ev.Room)
		ev.Target = Normalize(ev.Target)
		return ev
	case BroadcastVariableSet:
		ev.Room = Normalize(ev.Room)
		ev.Name = Normalize(ev.Name)
		return ev
	case PrivateVariableSet:
		ev.Room = Normalize(ev.Room)
		ev.Target = Normalize(ev.Target)
		ev.Name = Normalize(ev.Name)
		return ev
	case ProjectHandshake:
		ev.ProjectID = Normalize(ev.ProjectID)
		return ev
	case ProjectVariableCreate:
		ev.ProjectID = Normalize(ev.ProjectID)
		ev.Name = Normalize(ev.Name)
		return ev
	case ProjectVariableSet:
		ev.ProjectID = Normalize(ev.ProjectID)
		ev.Name = Normalize(ev.Name)
		return ev
	case ProjectVariableRename:
		ev.ProjectID = Normalize(ev.ProjectID)
		ev.Name = Normalize(ev.Name)
		ev.NewName = Normalize(ev.NewName)
		return ev
	case ProjectVariableDelete:
		ev.ProjectID = Normalize(ev.ProjectID)
		ev.Name = Normalize(ev.Name)
		return ev
	default:
		return ev
	}
}
