package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/tokenflow/internal/ir"
)

// marshalValue converts a record value to canonical JSON TEXT for storage.
//
// The value is first encoded with encoding/json (HTML escaping disabled),
// then decoded with json.Number and re-encoded per RFC 8785 so that equal
// values always produce equal bytes.
func marshalValue(v ir.RecordValue) (string, error) {
	if v == nil {
		return "null", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal %s value: %w", v.ValueType(), err)
	}

	dec := json.NewDecoder(&buf)
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("marshal %s value: %w", v.ValueType(), err)
	}
	irv, err := ir.FromNative(generic)
	if err != nil {
		return "", fmt.Errorf("marshal %s value: %w", v.ValueType(), err)
	}
	data, err := ir.MarshalCanonical(irv)
	if err != nil {
		return "", fmt.Errorf("marshal %s value: %w", v.ValueType(), err)
	}
	return string(data), nil
}

// unmarshalValue parses stored JSON TEXT into the concrete value type.
func unmarshalValue(vt ir.ValueType, data string) (ir.RecordValue, error) {
	v, err := ir.DecodeValue(vt, json.RawMessage(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s value: %w", vt, err)
	}
	return v, nil
}
