// Package arc4 implements the ARC-4 ABI encoding used by Algorand contract
// box storage, with ARC-56 named struct resolution.
package arc4

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned when bytes do not match the declared type
var ErrMalformed = errors.New("arc4: malformed value")

// Kind enumerates ARC-4 types
type Kind int

const (
	KindUint Kind = iota
	KindByte
	KindBool
	KindAddress
	KindString
	KindStaticArray
	KindDynamicArray
	KindTuple
	KindStruct
)

// Type is a parsed ARC-4 type. Struct types are tuples with field names.
type Type struct {
	Kind   Kind
	Bits   int
	Elem   *Type
	Length int
	Fields []Field
	Name   string
}

// Field is a tuple or struct member
type Field struct {
	Name string
	Type *Type
}

// String renders the type in ABI notation. Structs render by name.
func (t *Type) String() string {
	switch t.Kind {
	case KindUint:
		return "uint" + strconv.Itoa(t.Bits)
	case KindByte:
		return "byte"
	case KindBool:
		return "bool"
	case KindAddress:
		return "address"
	case KindString:
		return "string"
	case KindStaticArray:
		return fmt.Sprintf("%s[%d]", t.Elem.String(), t.Length)
	case KindDynamicArray:
		return t.Elem.String() + "[]"
	case KindStruct:
		return t.Name
	default:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.Type.String()
		}
		return "(" + strings.Join(parts, ",") + ")"
	}
}

// IsDynamic reports whether the encoding length depends on the value
func (t *Type) IsDynamic() bool {
	switch t.Kind {
	case KindString, KindDynamicArray:
		return true
	case KindStaticArray:
		return t.Elem.IsDynamic()
	case KindTuple, KindStruct:
		for _, f := range t.Fields {
			if f.Type.IsDynamic() {
				return true
			}
		}
	}
	return false
}

// staticSize is the encoded length of a static type
func (t *Type) staticSize() int {
	switch t.Kind {
	case KindUint:
		return t.Bits / 8
	case KindByte, KindBool:
		return 1
	case KindAddress:
		return 32
	case KindStaticArray:
		if t.Elem.Kind == KindBool {
			return (t.Length + 7) / 8
		}
		return t.Length * t.Elem.staticSize()
	case KindTuple, KindStruct:
		size := 0
		for i := 0; i < len(t.Fields); i++ {
			if t.Fields[i].Type.Kind == KindBool {
				run := boolRun(t.Fields, i)
				size += (run + 7) / 8
				i += run - 1
				continue
			}
			size += t.Fields[i].Type.staticSize()
		}
		return size
	}
	return 0
}

// boolRun counts consecutive bool fields starting at i
func boolRun(fields []Field, i int) int {
	n := 0
	for i+n < len(fields) && fields[i+n].Type.Kind == KindBool {
		n++
	}
	return n
}

// ParseType parses an ABI type string. Names that are not built-in types are
// resolved as structs through schema, which may be nil.
func ParseType(s string, schema *Schema) (*Type, error) {
	return parseType(strings.TrimSpace(s), schema, nil)
}

func parseType(s string, schema *Schema, resolving []string) (*Type, error) {
	if s == "" {
		return nil, fmt.Errorf("arc4: empty type")
	}

	if strings.HasSuffix(s, "]") {
		open := matchingOpen(s)
		if open <= 0 {
			return nil, fmt.Errorf("arc4: invalid array type %q", s)
		}
		elem, err := parseType(s[:open], schema, resolving)
		if err != nil {
			return nil, err
		}
		inner := s[open+1 : len(s)-1]
		if inner == "" {
			return &Type{Kind: KindDynamicArray, Elem: elem}, nil
		}
		n, err := strconv.Atoi(inner)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("arc4: invalid array length in %q", s)
		}
		return &Type{Kind: KindStaticArray, Elem: elem, Length: n}, nil
	}

	if strings.HasPrefix(s, "(") {
		if !strings.HasSuffix(s, ")") {
			return nil, fmt.Errorf("arc4: unterminated tuple %q", s)
		}
		parts, err := splitTuple(s[1 : len(s)-1])
		if err != nil {
			return nil, fmt.Errorf("arc4: %w in %q", err, s)
		}
		fields := make([]Field, 0, len(parts))
		for _, part := range parts {
			ft, err := parseType(part, schema, resolving)
			if err != nil {
				return nil, err
			}
			fields = append(fields, Field{Type: ft})
		}
		return &Type{Kind: KindTuple, Fields: fields}, nil
	}

	switch s {
	case "byte":
		return &Type{Kind: KindByte}, nil
	case "bool":
		return &Type{Kind: KindBool}, nil
	case "address":
		return &Type{Kind: KindAddress}, nil
	case "string":
		return &Type{Kind: KindString}, nil
	}

	if strings.HasPrefix(s, "uint") {
		if bits, err := strconv.Atoi(s[4:]); err == nil {
			if bits < 8 || bits > 512 || bits%8 != 0 {
				return nil, fmt.Errorf("arc4: invalid uint width %d", bits)
			}
			return &Type{Kind: KindUint, Bits: bits}, nil
		}
	}

	if schema != nil {
		return schema.resolve(s, resolving)
	}
	return nil, fmt.Errorf("arc4: unknown type %q", s)
}

// matchingOpen finds the '[' that opens the trailing array suffix
func matchingOpen(s string) int {
	depth := 0
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case ']':
			depth++
		case '[':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitTuple(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses")
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses")
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("empty tuple element")
		}
	}
	return parts, nil
}
