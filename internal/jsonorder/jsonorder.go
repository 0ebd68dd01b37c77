// ABOUTME: Order-preserving JSON tree with byte offsets for every value
// ABOUTME: Parses via encoding/json tokens; re-serializes with a fixed indent string

package jsonorder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Kind is the JSON type of a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

// Member is one key/value pair of an object, in document order.
type Member struct {
	Key   string
	Value *Value
}

// Value is a node of the parsed document.
// Start and End are byte offsets into the source (End exclusive); for
// strings they include the quotes.
type Value struct {
	Kind    Kind
	Members []Member // Object
	Items   []*Value // Array
	Str     string   // String
	Literal string   // Number, Bool, Null: the source text

	Start int64
	End   int64
}

// Parse decodes data into an ordered tree.
func Parse(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec, data)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, fmt.Errorf("unexpected data after top-level value at offset %d", dec.InputOffset())
		}
		return nil, err
	}
	return v, nil
}

func parseValue(dec *json.Decoder, data []byte) (*Value, error) {
	start := skipSeparators(data, dec.InputOffset())
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	v := &Value{Start: start}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			v.Kind = Object
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key at offset %d is not a string", dec.InputOffset())
				}
				child, err := parseValue(dec, data)
				if err != nil {
					return nil, err
				}
				v.Members = append(v.Members, Member{Key: key, Value: child})
			}
		case '[':
			v.Kind = Array
			for dec.More() {
				child, err := parseValue(dec, data)
				if err != nil {
					return nil, err
				}
				v.Items = append(v.Items, child)
			}
		default:
			return nil, fmt.Errorf("unexpected delimiter %q at offset %d", t, dec.InputOffset())
		}
		// closing delimiter
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
	case string:
		v.Kind = String
		v.Str = t
	case json.Number:
		v.Kind = Number
	case bool:
		v.Kind = Bool
	case nil:
		v.Kind = Null
	}

	v.End = dec.InputOffset()
	if v.Kind == Number || v.Kind == Bool || v.Kind == Null {
		v.Literal = string(data[v.Start:v.End])
	}
	return v, nil
}

// skipSeparators advances past whitespace, ':' and ',' so that the offset
// lands on the first byte of the next value.
func skipSeparators(data []byte, off int64) int64 {
	for off < int64(len(data)) {
		switch data[off] {
		case ' ', '\t', '\n', '\r', ':', ',':
			off++
		default:
			return off
		}
	}
	return off
}

// Get returns the value of key in an object, or nil.
// With duplicate keys the last one wins, as in JSON.parse.
func (v *Value) Get(key string) *Value {
	if v == nil || v.Kind != Object {
		return nil
	}
	for i := len(v.Members) - 1; i >= 0; i-- {
		if v.Members[i].Key == key {
			return v.Members[i].Value
		}
	}
	return nil
}

// Keys returns the object's keys in document order.
func (v *Value) Keys() []string {
	if v == nil || v.Kind != Object {
		return nil
	}
	keys := make([]string, len(v.Members))
	for i, m := range v.Members {
		keys[i] = m.Key
	}
	return keys
}

// Delete removes every member named key. Returns true if one was removed.
func (v *Value) Delete(key string) bool {
	if v == nil || v.Kind != Object {
		return false
	}
	kept := v.Members[:0]
	removed := false
	for _, m := range v.Members {
		if m.Key == key {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	v.Members = kept
	return removed
}

// StringValue returns the string content and true for String values.
func (v *Value) StringValue() (string, bool) {
	if v == nil || v.Kind != String {
		return "", false
	}
	return v.Str, true
}

// Marshal re-serializes the tree with one indent per nesting level.
// Empty objects and arrays are written as {} and [].
func (v *Value) Marshal(indent string) ([]byte, error) {
	var buf bytes.Buffer
	if err := v.write(&buf, indent, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) write(buf *bytes.Buffer, indent string, depth int) error {
	switch v.Kind {
	case Object:
		if len(v.Members) == 0 {
			buf.WriteString("{}")
			return nil
		}
		buf.WriteString("{\n")
		for i, m := range v.Members {
			writeIndent(buf, indent, depth+1)
			if err := writeString(buf, m.Key); err != nil {
				return err
			}
			buf.WriteString(": ")
			if err := m.Value.write(buf, indent, depth+1); err != nil {
				return err
			}
			if i < len(v.Members)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		writeIndent(buf, indent, depth)
		buf.WriteByte('}')
	case Array:
		if len(v.Items) == 0 {
			buf.WriteString("[]")
			return nil
		}
		buf.WriteString("[\n")
		for i, item := range v.Items {
			writeIndent(buf, indent, depth+1)
			if err := item.write(buf, indent, depth+1); err != nil {
				return err
			}
			if i < len(v.Items)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		writeIndent(buf, indent, depth)
		buf.WriteByte(']')
	case String:
		return writeString(buf, v.Str)
	default:
		buf.WriteString(v.Literal)
	}
	return nil
}

func writeIndent(buf *bytes.Buffer, indent string, depth int) {
	for range depth {
		buf.WriteString(indent)
	}
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
