// Package canonical builds the deterministic pipe-delimited strings the
// payment gateway signs and verifies. Field order is significant everywhere:
// a request is signed over its fields in insertion order, a response is
// verified over the exact order the gateway documents for it.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Value is the closed set of types that may occur in signable data.
// Encoding is by exhaustive switch; there is no reflective fallback.
type Value interface {
	isValue()
}

type String string

type Int int64

type Float float64

type Bool bool

// Null renders as an empty positional segment, same as an empty string.
type Null struct{}

// List is an ordered sequence; its elements are spliced into the parent's
// segment stream in place.
type List []Value

// Field is one key/value pair of a Map.
type Field struct {
	Key   string
	Value Value
}

// Map is an insertion-ordered mapping. Go's built-in map cannot be used
// anywhere near the signature base because it loses key order.
type Map []Field

func (String) isValue() {}
func (Int) isValue()    {}
func (Float) isValue()  {}
func (Bool) isValue()   {}
func (Null) isValue()   {}
func (List) isValue()   {}
func (Map) isValue()    {}

// Get returns the value stored under key and whether it was present.
func (m Map) Get(key string) (Value, bool) {
	for _, f := range m {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// GetString returns the value under key when it is a non-empty string.
func (m Map) GetString(key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(String)
	if !ok || s == "" {
		return "", false
	}
	return string(s), true
}

// Set replaces the value under key, or appends the field when absent.
func (m Map) Set(key string, v Value) Map {
	for i, f := range m {
		if f.Key == key {
			m[i].Value = v
			return m
		}
	}
	return append(m, Field{Key: key, Value: v})
}

// Without returns a copy of the map with the given key removed.
func (m Map) Without(key string) Map {
	out := make(Map, 0, len(m))
	for _, f := range m {
		if f.Key != key {
			out = append(out, f)
		}
	}
	return out
}

// MarshalJSON renders the map as a JSON object in field order.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeJSON(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeJSON(buf *bytes.Buffer, v Value) error {
	switch t := v.(type) {
	case String:
		b, err := json.Marshal(string(t))
		if err != nil {
			return err
		}
		buf.Write(b)
	case Int:
		fmt.Fprintf(buf, "%d", int64(t))
	case Float:
		b, err := json.Marshal(float64(t))
		if err != nil {
			return err
		}
		buf.Write(b)
	case Bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Null:
		buf.WriteString("null")
	case List:
		buf.WriteByte('[')
		for i, el := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeJSON(buf, el); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Map:
		buf.WriteByte('{')
		for i, f := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := encodeJSON(buf, f.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
	return nil
}

// DecodeJSON decodes a JSON object into a Map, preserving the key order of
// the wire payload. Response sub-blocks are re-linearized for signature
// verification, so the order the gateway sent must survive decoding.
func DecodeJSON(data []byte) (Map, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected json object, got %v", tok)
	}

	m, err := decodeObject(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}
	return m, nil
}

func decodeObject(dec *json.Decoder) (Map, error) {
	var m Map
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", keyTok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		m = append(m, Field{Key: key, Value: v})
	}
	// consume closing brace
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeArray(dec *json.Decoder) (List, error) {
	var l List
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		l = append(l, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return l, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case string:
		return String(t), nil
	case json.Number:
		if strings.ContainsAny(t.String(), ".eE") {
			f, err := t.Float64()
			if err != nil {
				return nil, err
			}
			return Float(f), nil
		}
		i, err := t.Int64()
		if err != nil {
			return nil, err
		}
		return Int(i), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null{}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}
