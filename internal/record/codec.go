package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Codec converts record values to and from their stored text form.
// Implementations must be safe for concurrent use.
type Codec interface {
	Encode(v any) (string, error)
	Decode(data string) (any, error)
}

// JSONCodec stores values as compact JSON.
//
// Numbers decode as json.Number so integers beyond 2^53 survive a round trip.
// HTML escaping is disabled so stored text matches what clients sent.
type JSONCodec struct{}

// Encode implements Codec.
func (JSONCodec) Encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode value: %w", err)
	}
	// Encoder adds a trailing newline
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Decode implements Codec.
func (JSONCodec) Decode(data string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode value: trailing data after JSON value")
	}
	return v, nil
}

// EncodeOrigin renders an origin snapshot for storage. A nil origin is
// stored as the JSON literal null.
func EncodeOrigin(o *Identity) (string, error) {
	if o == nil {
		return "null", nil
	}
	data, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("encode origin: %w", err)
	}
	return string(data), nil
}

// DecodeOrigin parses a stored origin snapshot. Empty text and null both
// decode to nil.
func DecodeOrigin(data string) (*Identity, error) {
	if data == "" || data == "null" {
		return nil, nil
	}
	var o Identity
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		return nil, fmt.Errorf("decode origin: %w", err)
	}
	return &o, nil
}
