package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxValueDepth bounds nesting when decoding untrusted JSON.
const MaxValueDepth = 64

var ErrValueTooDeep = errors.New("value nesting exceeds maximum depth")

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

// Member is one key/value pair of a map Value. Maps keep source order.
type Member struct {
	Key   string
	Value Value
}

// Value is a closed recursive representation of untrusted structured input:
// null, bool, number, string, list or map.
type Value struct {
	kind    Kind
	boolean bool
	number  json.Number
	str     string
	list    []Value
	members []Member
}

func Null() Value { return Value{kind: KindNull} }
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }
func Number(n json.Number) Value { return Value{kind: KindNumber, number: n} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }
func Map(members ...Member) Value { return Value{kind: KindMap, members: members} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) Str() string { return v.str }
func (v Value) Items() []Value { return v.list }
func (v Value) Members() []Member { return v.members }
func (v Value) BoolValue() bool { return v.boolean }
func (v Value) NumberValue() string { return v.number.String() }

// Get returns the last member named key, matching encoding/json semantics
// for duplicate keys.
func (v Value) Get(key string) (Value, bool) {
	for i := len(v.members) - 1; i >= 0; i-- {
		if v.members[i].Key == key {
			return v.members[i].Value, true
		}
	}
	return Value{}, false
}

// ParseJSON decodes a single JSON document into a Value.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder, depth int) (Value, error) {
	if depth > MaxValueDepth {
		return Value{}, ErrValueTooDeep
	}

	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := decodeValue(dec, depth+1)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return List(items...), nil
		case '{':
			members := []Member{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("invalid object key %v", keyTok)
				}
				val, err := decodeValue(dec, depth+1)
				if err != nil {
					return Value{}, err
				}
				members = append(members, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Map(members...), nil
		}
	}

	return Value{}, fmt.Errorf("unexpected JSON token %v", tok)
}

// MarshalJSON encodes the value, preserving map member order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.boolean {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		buf.WriteString(v.number.String())
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown value kind %d", v.kind)
	}
	return nil
}
