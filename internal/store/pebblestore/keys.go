package pebblestore

import (
	"encoding/binary"
	"errors"
)

var (
	messagePrefix  = []byte("m/")
	variablePrefix = []byte("v/")
	projectPrefix  = []byte("p/")
)

var errMalformedKey = errors.New("pebble: malformed key")

// appendComponent appends a uvarint length followed by s. Length prefixes
// keep "a" and "ab" from sharing a scan prefix.
func appendComponent(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

// readComponent consumes one component from key.
func readComponent(key []byte) (string, []byte, error) {
	n, w := binary.Uvarint(key)
	if w <= 0 || uint64(len(key)-w) < n {
		return "", nil, errMalformedKey
	}
	key = key[w:]
	return string(key[:n]), key[n:], nil
}

func keyMessageScope(room string) []byte {
	k := make([]byte, 0, len(messagePrefix)+len(room)+4)
	k = append(k, messagePrefix...)
	return appendComponent(k, room)
}

func keyMessage(room, target string) []byte {
	return appendComponent(keyMessageScope(room), target)
}

func keyVariableScope(room string) []byte {
	k := make([]byte, 0, len(variablePrefix)+len(room)+4)
	k = append(k, variablePrefix...)
	return appendComponent(k, room)
}

func keyVariable(room, name, target string) []byte {
	return appendComponent(appendComponent(keyVariableScope(room), name), target)
}

func keyProjectScope(projectID string) []byte {
	k := make([]byte, 0, len(projectPrefix)+len(projectID)+4)
	k = append(k, projectPrefix...)
	return appendComponent(k, projectID)
}

func keyProject(projectID, name string) []byte {
	return appendComponent(keyProjectScope(projectID), name)
}

// splitSuffix decodes the components that follow scope in key and requires
// that nothing is left over.
func splitSuffix(key, scope []byte, count int) ([]string, error) {
	if len(key) < len(scope) {
		return nil, errMalformedKey
	}
	rest := key[len(scope):]
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		var s string
		var err error
		s, rest, err = readComponent(rest)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if len(rest) != 0 {
		return nil, errMalformedKey
	}
	return out, nil
}

// prefixEnd returns the smallest key greater than every key with prefix,
// or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
