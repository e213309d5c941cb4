package arc4

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"reflect"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

const maxOffset = 1<<16 - 1

// Encode encodes v as t.
//
// Accepted Go values: unsigned and signed integers or *big.Int for uintN,
// byte for byte, bool, types.Address / [32]byte / 32-byte slice / address
// string for address, string, []byte or any slice for arrays, []interface{}
// for tuples and *Struct or map[string]interface{} for structs.
func Encode(t *Type, v interface{}) ([]byte, error) {
	switch t.Kind {
	case KindUint:
		return encodeUint(t.Bits, v)
	case KindByte:
		return encodeUint(8, v)
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("arc4: bool expects bool, got %T", v)
		}
		if b {
			return []byte{0x80}, nil
		}
		return []byte{0x00}, nil
	case KindAddress:
		addr, err := toAddress(v)
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), addr[:]...), nil
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("arc4: string expects string, got %T", v)
		}
		if len(s) > maxOffset {
			return nil, fmt.Errorf("arc4: string too long (%d bytes)", len(s))
		}
		out := make([]byte, 2, 2+len(s))
		binary.BigEndian.PutUint16(out, uint16(len(s)))
		return append(out, s...), nil
	case KindStaticArray:
		elems, err := toSlice(v)
		if err != nil {
			return nil, err
		}
		if len(elems) != t.Length {
			return nil, fmt.Errorf("arc4: %s expects %d elements, got %d", t, t.Length, len(elems))
		}
		return encodeTuple(repeatField(t.Elem, t.Length), elems)
	case KindDynamicArray:
		elems, err := toSlice(v)
		if err != nil {
			return nil, err
		}
		if len(elems) > maxOffset {
			return nil, fmt.Errorf("arc4: array too long (%d elements)", len(elems))
		}
		body, err := encodeTuple(repeatField(t.Elem, len(elems)), elems)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 2, 2+len(body))
		binary.BigEndian.PutUint16(out, uint16(len(elems)))
		return append(out, body...), nil
	case KindTuple:
		elems, err := toSlice(v)
		if err != nil {
			return nil, err
		}
		if len(elems) != len(t.Fields) {
			return nil, fmt.Errorf("arc4: %s expects %d elements, got %d", t, len(t.Fields), len(elems))
		}
		return encodeTuple(t.Fields, elems)
	case KindStruct:
		elems, err := structValues(t, v)
		if err != nil {
			return nil, err
		}
		return encodeTuple(t.Fields, elems)
	}
	return nil, fmt.Errorf("arc4: cannot encode kind %d", t.Kind)
}

func encodeTuple(fields []Field, values []interface{}) ([]byte, error) {
	heads := make([][]byte, 0, len(fields))
	tails := make([][]byte, 0, len(fields))
	dynamic := make([]bool, 0, len(fields))

	for i := 0; i < len(fields); {
		ft := fields[i].Type
		if ft.Kind == KindBool {
			run := boolRun(fields, i)
			packed := make([]byte, (run+7)/8)
			for j := 0; j < run; j++ {
				b, ok := values[i+j].(bool)
				if !ok {
					return nil, fmt.Errorf("arc4: bool expects bool, got %T", values[i+j])
				}
				if b {
					packed[j/8] |= 0x80 >> (j % 8)
				}
			}
			heads = append(heads, packed)
			tails = append(tails, nil)
			dynamic = append(dynamic, false)
			i += run
			continue
		}

		enc, err := Encode(ft, values[i])
		if err != nil {
			if fields[i].Name != "" {
				return nil, fmt.Errorf("field %s: %w", fields[i].Name, err)
			}
			return nil, err
		}
		if ft.IsDynamic() {
			heads = append(heads, make([]byte, 2))
			tails = append(tails, enc)
			dynamic = append(dynamic, true)
		} else {
			heads = append(heads, enc)
			tails = append(tails, nil)
			dynamic = append(dynamic, false)
		}
		i++
	}

	headLen := 0
	for _, h := range heads {
		headLen += len(h)
	}
	offset := headLen
	for k := range heads {
		if !dynamic[k] {
			continue
		}
		if offset > maxOffset {
			return nil, fmt.Errorf("arc4: encoding exceeds 16-bit offsets")
		}
		binary.BigEndian.PutUint16(heads[k], uint16(offset))
		offset += len(tails[k])
	}

	out := make([]byte, 0, offset)
	for _, h := range heads {
		out = append(out, h...)
	}
	for _, tl := range tails {
		out = append(out, tl...)
	}
	return out, nil
}

// Decode decodes data as t. uintN up to 64 bits decode to uint64, wider
// ones to *big.Int; byte to byte; byte arrays to []byte; other arrays and
// tuples to []interface{}; structs to *Struct; address to types.Address.
func Decode(t *Type, data []byte) (interface{}, error) {
	if !t.IsDynamic() && len(data) != t.staticSize() {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrMalformed, t, t.staticSize(), len(data))
	}

	switch t.Kind {
	case KindUint:
		if t.Bits <= 64 {
			var n uint64
			for _, b := range data {
				n = n<<8 | uint64(b)
			}
			return n, nil
		}
		return new(big.Int).SetBytes(data), nil
	case KindByte:
		return data[0], nil
	case KindBool:
		switch data[0] {
		case 0x00:
			return false, nil
		case 0x80:
			return true, nil
		}
		return nil, fmt.Errorf("%w: invalid bool byte 0x%02x", ErrMalformed, data[0])
	case KindAddress:
		var addr types.Address
		copy(addr[:], data)
		return addr, nil
	case KindString:
		n, body, err := lengthPrefix(data)
		if err != nil {
			return nil, err
		}
		if len(body) != n {
			return nil, fmt.Errorf("%w: string declares %d bytes, has %d", ErrMalformed, n, len(body))
		}
		return string(body), nil
	case KindStaticArray:
		return decodeArray(t.Elem, t.Length, data)
	case KindDynamicArray:
		n, body, err := lengthPrefix(data)
		if err != nil {
			return nil, err
		}
		return decodeArray(t.Elem, n, body)
	case KindTuple:
		return decodeTuple(t.Fields, data)
	case KindStruct:
		values, err := decodeTuple(t.Fields, data)
		if err != nil {
			return nil, fmt.Errorf("struct %s: %w", t.Name, err)
		}
		return newStruct(t, values), nil
	}
	return nil, fmt.Errorf("arc4: cannot decode kind %d", t.Kind)
}

func decodeArray(elem *Type, n int, data []byte) (interface{}, error) {
	if elem.Kind == KindByte {
		if len(data) != n {
			return nil, fmt.Errorf("%w: byte array declares %d bytes, has %d", ErrMalformed, n, len(data))
		}
		return append([]byte{}, data...), nil
	}
	values, err := decodeTuple(repeatField(elem, n), data)
	if err != nil {
		return nil, err
	}
	return values, nil
}

func decodeTuple(fields []Field, data []byte) ([]interface{}, error) {
	values := make([]interface{}, len(fields))
	var dynIdx []int
	var offsets []int

	pos := 0
	for i := 0; i < len(fields); {
		ft := fields[i].Type
		if ft.Kind == KindBool {
			run := boolRun(fields, i)
			size := (run + 7) / 8
			if pos+size > len(data) {
				return nil, fmt.Errorf("%w: truncated bool run", ErrMalformed)
			}
			for j := 0; j < run; j++ {
				values[i+j] = data[pos+j/8]&(0x80>>(j%8)) != 0
			}
			pos += size
			i += run
			continue
		}

		if ft.IsDynamic() {
			if pos+2 > len(data) {
				return nil, fmt.Errorf("%w: truncated offset", ErrMalformed)
			}
			dynIdx = append(dynIdx, i)
			offsets = append(offsets, int(binary.BigEndian.Uint16(data[pos:])))
			pos += 2
		} else {
			size := ft.staticSize()
			if pos+size > len(data) {
				return nil, fmt.Errorf("%w: truncated %s", ErrMalformed, ft)
			}
			v, err := Decode(ft, data[pos:pos+size])
			if err != nil {
				return nil, err
			}
			values[i] = v
			pos += size
		}
		i++
	}

	if len(dynIdx) == 0 {
		if pos != len(data) {
			return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(data)-pos)
		}
		return values, nil
	}

	for k, idx := range dynIdx {
		start := offsets[k]
		end := len(data)
		if k+1 < len(offsets) {
			end = offsets[k+1]
		}
		if start < pos || start > end || end > len(data) {
			return nil, fmt.Errorf("%w: invalid offset %d", ErrMalformed, start)
		}
		if k == 0 && start != pos {
			return nil, fmt.Errorf("%w: first dynamic offset %d does not follow head (%d)", ErrMalformed, start, pos)
		}
		v, err := Decode(fields[idx].Type, data[start:end])
		if err != nil {
			return nil, err
		}
		values[idx] = v
	}
	return values, nil
}

func lengthPrefix(data []byte) (int, []byte, error) {
	if len(data) < 2 {
		return 0, nil, fmt.Errorf("%w: missing length prefix", ErrMalformed)
	}
	return int(binary.BigEndian.Uint16(data)), data[2:], nil
}

func repeatField(t *Type, n int) []Field {
	fields := make([]Field, n)
	for i := range fields {
		fields[i] = Field{Type: t}
	}
	return fields
}

// Zero returns the value an empty box decodes to
func Zero(t *Type) interface{} {
	switch t.Kind {
	case KindUint:
		if t.Bits <= 64 {
			return uint64(0)
		}
		return new(big.Int)
	case KindByte:
		return byte(0)
	case KindBool:
		return false
	case KindAddress:
		return types.Address{}
	case KindString:
		return ""
	case KindStaticArray:
		if t.Elem.Kind == KindByte {
			return make([]byte, t.Length)
		}
		values := make([]interface{}, t.Length)
		for i := range values {
			values[i] = Zero(t.Elem)
		}
		return values
	case KindDynamicArray:
		if t.Elem.Kind == KindByte {
			return []byte{}
		}
		return []interface{}{}
	case KindTuple:
		values := make([]interface{}, len(t.Fields))
		for i, f := range t.Fields {
			values[i] = Zero(f.Type)
		}
		return values
	case KindStruct:
		values := make([]interface{}, len(t.Fields))
		for i, f := range t.Fields {
			values[i] = Zero(f.Type)
		}
		return newStruct(t, values)
	}
	return nil
}

func encodeUint(bits int, v interface{}) ([]byte, error) {
	n, err := toBig(v)
	if err != nil {
		return nil, err
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("arc4: uint%d cannot hold negative value %s", bits, n)
	}
	if n.BitLen() > bits {
		return nil, fmt.Errorf("arc4: value %s overflows uint%d", n, bits)
	}
	return n.FillBytes(make([]byte, bits/8)), nil
}

func toBig(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return new(big.Int), nil
		}
		return n, nil
	case big.Int:
		return &n, nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case int32:
		return big.NewInt(int64(n)), nil
	}
	return nil, fmt.Errorf("arc4: uint expects an integer, got %T", v)
}

func toAddress(v interface{}) (types.Address, error) {
	switch a := v.(type) {
	case types.Address:
		return a, nil
	case [32]byte:
		return types.Address(a), nil
	case []byte:
		if len(a) != 32 {
			return types.Address{}, fmt.Errorf("arc4: address expects 32 bytes, got %d", len(a))
		}
		var addr types.Address
		copy(addr[:], a)
		return addr, nil
	case string:
		addr, err := types.DecodeAddress(a)
		if err != nil {
			return types.Address{}, fmt.Errorf("arc4: invalid address: %w", err)
		}
		return addr, nil
	}
	return types.Address{}, fmt.Errorf("arc4: address expects an address, got %T", v)
}

// toSlice turns any slice or array into []interface{}
func toSlice(v interface{}) ([]interface{}, error) {
	switch s := v.(type) {
	case []interface{}:
		return s, nil
	case nil:
		return nil, nil
	case string:
		return nil, fmt.Errorf("arc4: array expects a slice, got string")
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("arc4: array expects a slice, got %T", v)
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}
