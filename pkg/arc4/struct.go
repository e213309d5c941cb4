package arc4

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// NamedValue is one decoded struct field
type NamedValue struct {
	Name  string
	Value interface{}
}

// Struct is a decoded ARC-56 struct with fields in declaration order
type Struct struct {
	Name   string
	Fields []NamedValue
}

func newStruct(t *Type, values []interface{}) *Struct {
	s := &Struct{Name: t.Name, Fields: make([]NamedValue, len(values))}
	for i, v := range values {
		s.Fields[i] = NamedValue{Name: t.Fields[i].Name, Value: v}
	}
	return s
}

// Get returns a field value by name
func (s *Struct) Get(name string) (interface{}, bool) {
	if s == nil {
		return nil, false
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Uint returns an integer field, or 0 when it is missing or does not fit in 64 bits
func (s *Struct) Uint(name string) uint64 {
	v, _ := s.Get(name)
	n, _ := asUint(v)
	return n
}

// Uints returns an integer array field
func (s *Struct) Uints(name string) []uint64 {
	v, _ := s.Get(name)
	switch list := v.(type) {
	case []byte:
		out := make([]uint64, len(list))
		for i, b := range list {
			out[i] = uint64(b)
		}
		return out
	case []interface{}:
		out := make([]uint64, 0, len(list))
		for _, item := range list {
			if n, ok := asUint(item); ok {
				out = append(out, n)
			}
		}
		return out
	}
	return []uint64{}
}

// String returns a string field
func (s *Struct) String(name string) string {
	v, _ := s.Get(name)
	str, _ := v.(string)
	return str
}

// Strings returns a string array field
func (s *Struct) Strings(name string) []string {
	v, _ := s.Get(name)
	list, _ := v.([]interface{})
	out := make([]string, 0, len(list))
	for _, item := range list {
		if str, ok := item.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// Address returns an address field
func (s *Struct) Address(name string) types.Address {
	v, _ := s.Get(name)
	addr, _ := v.(types.Address)
	return addr
}

// Map returns the fields keyed by name
func (s *Struct) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = f.Value
	}
	return out
}

// Plain returns the fields as a JSON-shaped document: addresses become
// strings, wide integers json.Number and byte arrays integer lists.
func (s *Struct) Plain() map[string]interface{} {
	out := make(map[string]interface{}, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = plain(f.Value)
	}
	return out
}

func plain(v interface{}) interface{} {
	switch tv := v.(type) {
	case *Struct:
		return tv.Plain()
	case []interface{}:
		out := make([]interface{}, len(tv))
		for i, item := range tv {
			out[i] = plain(item)
		}
		return out
	case []byte:
		out := make([]interface{}, len(tv))
		for i, b := range tv {
			out[i] = uint64(b)
		}
		return out
	case byte:
		return uint64(tv)
	case *big.Int:
		if tv == nil {
			return uint64(0)
		}
		if tv.IsUint64() {
			return tv.Uint64()
		}
		return json.Number(tv.String())
	case types.Address:
		return tv.String()
	}
	return v
}

func asUint(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case byte:
		return uint64(n), true
	case *big.Int:
		if n != nil && n.IsUint64() {
			return n.Uint64(), true
		}
	}
	return 0, false
}

// structValues lines up v with the struct fields. Missing fields encode as zero.
func structValues(t *Type, v interface{}) ([]interface{}, error) {
	var lookup func(string) (interface{}, bool)
	switch s := v.(type) {
	case *Struct:
		lookup = s.Get
	case Struct:
		lookup = s.Get
	case map[string]interface{}:
		lookup = func(name string) (interface{}, bool) {
			val, ok := s[name]
			return val, ok
		}
	case []interface{}:
		if len(s) != len(t.Fields) {
			return nil, fmt.Errorf("arc4: struct %s expects %d fields, got %d", t.Name, len(t.Fields), len(s))
		}
		return s, nil
	default:
		return nil, fmt.Errorf("arc4: struct %s expects *Struct or map, got %T", t.Name, v)
	}

	values := make([]interface{}, len(t.Fields))
	for i, f := range t.Fields {
		if val, ok := lookup(f.Name); ok && val != nil {
			values[i] = val
		} else {
			values[i] = Zero(f.Type)
		}
	}
	return values, nil
}
