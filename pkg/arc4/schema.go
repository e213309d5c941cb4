package arc4

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

//go:embed schemas/*.arc56.json
var embeddedSpecs embed.FS

type structField struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

type appSpec struct {
	Name    string                   `json:"name"`
	Structs map[string][]structField `json:"structs"`
}

// Schema resolves ARC-56 named structs. It is read-only once built.
type Schema struct {
	defs  map[string][]structField
	types map[string]*Type
}

// ParseSchema builds a schema from ARC-56 app spec documents. A struct
// defined in a later document replaces one of the same name.
func ParseSchema(docs ...[]byte) (*Schema, error) {
	s := &Schema{
		defs:  make(map[string][]structField),
		types: make(map[string]*Type),
	}
	for i, doc := range docs {
		var spec appSpec
		if err := json.Unmarshal(doc, &spec); err != nil {
			return nil, fmt.Errorf("invalid app spec #%d: %w", i, err)
		}
		for name, fields := range spec.Structs {
			s.defs[name] = fields
		}
	}

	for _, name := range s.Names() {
		if _, err := s.resolve(name, nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// DefaultSchema returns the embedded registry and draw contract structs
func DefaultSchema() (*Schema, error) {
	docs, err := embeddedDocs()
	if err != nil {
		return nil, err
	}
	return ParseSchema(docs...)
}

// LoadSchema returns the embedded structs overridden by the app spec at path.
// An empty path yields the embedded defaults.
func LoadSchema(path string) (*Schema, error) {
	docs, err := embeddedDocs()
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read app spec: %w", err)
		}
		docs = append(docs, data)
	}
	return ParseSchema(docs...)
}

func embeddedDocs() ([][]byte, error) {
	entries, err := embeddedSpecs.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded app specs: %w", err)
	}
	docs := make([][]byte, 0, len(entries))
	for _, entry := range entries {
		data, err := embeddedSpecs.ReadFile("schemas/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded app spec %s: %w", entry.Name(), err)
		}
		docs = append(docs, data)
	}
	return docs, nil
}

// Names lists the defined struct names, sorted
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.defs))
	for name := range s.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Struct returns the resolved type of a named struct
func (s *Schema) Struct(name string) (*Type, error) {
	t, ok := s.types[name]
	if !ok {
		return nil, fmt.Errorf("arc4: unknown struct %q", name)
	}
	return t, nil
}

// DecodeStruct decodes a box value as the named struct. Empty input yields
// the zero-valued struct.
func (s *Schema) DecodeStruct(name string, data []byte) (*Struct, error) {
	t, err := s.Struct(name)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return Zero(t).(*Struct), nil
	}
	v, err := Decode(t, data)
	if err != nil {
		return nil, err
	}
	return v.(*Struct), nil
}

// EncodeStruct encodes v (a *Struct or map keyed by field name) as the named struct
func (s *Schema) EncodeStruct(name string, v interface{}) ([]byte, error) {
	t, err := s.Struct(name)
	if err != nil {
		return nil, err
	}
	return Encode(t, v)
}

func (s *Schema) resolve(name string, resolving []string) (*Type, error) {
	if t, ok := s.types[name]; ok {
		return t, nil
	}
	fields, ok := s.defs[name]
	if !ok {
		return nil, fmt.Errorf("arc4: unknown type %q", name)
	}
	for _, r := range resolving {
		if r == name {
			return nil, fmt.Errorf("arc4: struct cycle %s -> %s", strings.Join(resolving, " -> "), name)
		}
	}
	resolving = append(resolving, name)

	t, err := s.buildStruct(name, fields, resolving)
	if err != nil {
		return nil, err
	}
	s.types[name] = t
	return t, nil
}

func (s *Schema) buildStruct(name string, fields []structField, resolving []string) (*Type, error) {
	t := &Type{Kind: KindStruct, Name: name, Fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		ft, err := s.fieldType(name, f, resolving)
		if err != nil {
			return nil, fmt.Errorf("struct %s field %s: %w", name, f.Name, err)
		}
		t.Fields = append(t.Fields, Field{Name: f.Name, Type: ft})
	}
	return t, nil
}

// fieldType handles both a type string and an inline struct definition
func (s *Schema) fieldType(parent string, f structField, resolving []string) (*Type, error) {
	var typ string
	if err := json.Unmarshal(f.Type, &typ); err == nil {
		return parseType(strings.TrimSpace(typ), s, resolving)
	}

	var inline []structField
	if err := json.Unmarshal(f.Type, &inline); err != nil {
		return nil, fmt.Errorf("type must be a string or a field list")
	}
	return s.buildStruct(parent+"."+f.Name, inline, resolving)
}
