package store

import (
	"github.com/roach88/roomstore/internal/record"
)

// encodeValue renders a record value through the store's codec.
func (s *Store) encodeValue(op, scope, key string, v any) (string, error) {
	data, err := s.codec.Encode(v)
	if err != nil {
		return "", record.SerializationError(op, scope, key, err)
	}
	return data, nil
}

// encodeRecord renders a value and its origin snapshot.
func (s *Store) encodeRecord(op, scope, key string, v any, origin *record.Identity) (string, string, error) {
	valueText, err := s.encodeValue(op, scope, key, v)
	if err != nil {
		return "", "", err
	}
	originText, err := record.EncodeOrigin(origin)
	if err != nil {
		return "", "", record.SerializationError(op, scope, key, err)
	}
	return valueText, originText, nil
}

// decodeRecord parses a stored value and origin. Failures come back as
// SERIALIZATION errors so callers can skip the single record.
func (s *Store) decodeRecord(op, scope, key, valueText, originText string) (any, *record.Identity, error) {
	v, err := s.codec.Decode(valueText)
	if err != nil {
		return nil, nil, record.SerializationError(op, scope, key, err)
	}
	origin, err := record.DecodeOrigin(originText)
	if err != nil {
		return nil, nil, record.SerializationError(op, scope, key, err)
	}
	return v, origin, nil
}
