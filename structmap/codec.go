package structmap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"

	"github.com/TheLegendszs/v4l4j/errors"
	"github.com/TheLegendszs/v4l4j/structmap/internal/abi"
)

// FieldCodec reads and writes one field at a fixed byte offset of a struct
// buffer. Byte order and fixed-point scaling are applied here and nowhere
// else.
//
// Decoded values are int32 (float64 when Scale is set) for KindInt32,
// uint32 for KindUInt32, int32 for KindEnum, string for KindFixedString, and
// []int32, []uint32 or []byte for KindFixedArray.
type FieldCodec struct {
	Order  binary.ByteOrder
	Cases  map[string]int32 // enum case names, read-only once part of a layout
	Name   string
	Scale  float64 // fixed-point divisor for KindInt32, 0 for plain integers
	Offset uint32
	Length uint32
	Count  uint32 // element count of a fixed array
	Kind   Kind
	Elem   Kind // element kind of a fixed array
}

func (f *FieldCodec) order() binary.ByteOrder {
	if f.Order == nil {
		return binary.LittleEndian
	}
	return f.Order
}

// TypeName describes the native type of the field, e.g. "int32" or "char[32]".
func (f *FieldCodec) TypeName() string {
	switch f.Kind {
	case KindInt32:
		if f.Scale != 0 {
			return fmt.Sprintf("int32/%g", f.Scale)
		}
		return "int32"
	case KindFixedString:
		return fmt.Sprintf("char[%d]", f.Length)
	case KindFixedArray:
		return fmt.Sprintf("%s[%d]", f.Elem, f.Count)
	default:
		return f.Kind.String()
	}
}

// CaseName returns the enum case name for v, if declared.
func (f *FieldCodec) CaseName(v int32) (string, bool) {
	for name, c := range f.Cases {
		if c == v {
			return name, true
		}
	}
	return "", false
}

func (f *FieldCodec) validate() error {
	if err := validateFieldName(f.Name); err != nil {
		return err
	}
	switch f.Kind {
	case KindInt32, KindUInt32, KindEnum:
		if f.Length != 4 {
			return fmt.Errorf("field %q: %s is 4 bytes, got %d", f.Name, f.Kind, f.Length)
		}
	case KindFixedString:
		if f.Length == 0 {
			return fmt.Errorf("field %q: empty fixed string", f.Name)
		}
	case KindFixedArray:
		size := f.Elem.elemSize()
		if size == 0 {
			return fmt.Errorf("field %q: invalid array element kind %s", f.Name, f.Elem)
		}
		if n, ok := abi.SafeMulU32(f.Count, size); !ok || n != f.Length {
			return fmt.Errorf("field %q: %d x %s does not fill %d bytes", f.Name, f.Count, f.Elem, f.Length)
		}
	default:
		return fmt.Errorf("field %q: invalid kind %s", f.Name, f.Kind)
	}
	if f.Scale != 0 && (f.Kind != KindInt32 || f.Scale < 0 || math.IsNaN(f.Scale) || math.IsInf(f.Scale, 0)) {
		return fmt.Errorf("field %q: scale %g only applies to positive int32 fixed-point", f.Name, f.Scale)
	}
	if len(f.Cases) > 0 && f.Kind != KindEnum {
		return fmt.Errorf("field %q: enum cases on %s field", f.Name, f.Kind)
	}
	return nil
}

func validateFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("empty field name")
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return fmt.Errorf("field name %q has an empty path segment", name)
		}
	}
	return nil
}

func (f *FieldCodec) slot(buf []byte, phase errors.Phase) ([]byte, error) {
	end := uint64(f.Offset) + uint64(f.Length)
	if uint64(len(buf)) < end {
		return nil, errors.New(phase, errors.KindBufferSizeMismatch).
			Path(f.Name).
			Detail("field needs bytes [%d, %d), buffer is %d bytes", f.Offset, end, len(buf)).
			Build()
	}
	return buf[f.Offset:end], nil
}

// Decode reads the field from buf.
func (f *FieldCodec) Decode(buf []byte) (any, error) {
	b, err := f.slot(buf, errors.PhaseDecode)
	if err != nil {
		return nil, err
	}
	return f.decode(b), nil
}

func (f *FieldCodec) decode(b []byte) any {
	o := f.order()
	switch f.Kind {
	case KindInt32:
		raw := int32(o.Uint32(b))
		if f.Scale != 0 {
			return float64(raw) / f.Scale
		}
		return raw
	case KindUInt32:
		return o.Uint32(b)
	case KindEnum:
		return int32(o.Uint32(b))
	case KindFixedString:
		if i := bytes.IndexByte(b, 0); i >= 0 {
			return string(b[:i])
		}
		return string(b)
	case KindFixedArray:
		return f.decodeArray(b)
	}
	panic("structmap: field " + f.Name + " has invalid kind " + f.Kind.String())
}

func (f *FieldCodec) decodeArray(b []byte) any {
	o := f.order()
	switch f.Elem {
	case KindInt32, KindEnum:
		out := make([]int32, f.Count)
		for i := range out {
			out[i] = int32(o.Uint32(b[i*4:]))
		}
		return out
	case KindUInt32:
		out := make([]uint32, f.Count)
		for i := range out {
			out[i] = o.Uint32(b[i*4:])
		}
		return out
	default:
		out := make([]byte, f.Count)
		copy(out, b)
		return out
	}
}

// Coerce converts value to the canonical decoded representation of the
// field without touching any buffer. It fails with a type mismatch when the
// value cannot be represented.
func (f *FieldCodec) Coerce(value any) (any, error) {
	switch f.Kind {
	case KindInt32:
		if f.Scale != 0 {
			v, ok := abi.CoerceToFloat64(value)
			if !ok {
				return nil, f.mismatch(value, "")
			}
			raw := math.Round(v * f.Scale)
			if raw < math.MinInt32 || raw > math.MaxInt32 {
				return nil, f.mismatch(value, "value %v out of fixed-point range", v)
			}
			return float64(int32(raw)) / f.Scale, nil
		}
		v, ok := abi.CoerceToInt32(value)
		if !ok {
			return nil, f.mismatch(value, "")
		}
		return v, nil

	case KindUInt32:
		v, ok := abi.CoerceToUint32(value)
		if !ok {
			return nil, f.mismatch(value, "")
		}
		return v, nil

	case KindEnum:
		if s, ok := value.(string); ok {
			v, found := f.Cases[s]
			if !found {
				return nil, f.mismatch(value, "unknown enum case %q", s)
			}
			return v, nil
		}
		// Raw values outside the case table are kept: devices report
		// vendor extensions the table does not name.
		v, ok := abi.CoerceToInt32(value)
		if !ok {
			return nil, f.mismatch(value, "")
		}
		return v, nil

	case KindFixedString:
		s, ok := value.(string)
		if !ok {
			return nil, f.mismatch(value, "")
		}
		if uint32(len(s)) > f.Length {
			return nil, f.mismatch(value, "string of %d bytes exceeds %d", len(s), f.Length)
		}
		if strings.IndexByte(s, 0) >= 0 {
			return nil, f.mismatch(value, "string contains NUL")
		}
		return s, nil

	case KindFixedArray:
		return f.coerceArray(value)
	}
	return nil, f.mismatch(value, "invalid field kind")
}

func (f *FieldCodec) coerceArray(value any) (any, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, f.mismatch(value, "")
	}
	if uint32(rv.Len()) != f.Count {
		return nil, f.mismatch(value, "array of %d elements, field holds %d", rv.Len(), f.Count)
	}

	switch f.Elem {
	case KindInt32, KindEnum:
		out := make([]int32, f.Count)
		for i := range out {
			v, ok := abi.CoerceToInt32(rv.Index(i).Interface())
			if !ok {
				return nil, f.mismatch(value, "element %d", i)
			}
			out[i] = v
		}
		return out, nil
	case KindUInt32:
		out := make([]uint32, f.Count)
		for i := range out {
			v, ok := abi.CoerceToUint32(rv.Index(i).Interface())
			if !ok {
				return nil, f.mismatch(value, "element %d", i)
			}
			out[i] = v
		}
		return out, nil
	default:
		out := make([]byte, f.Count)
		for i := range out {
			v, ok := abi.CoerceToUint8(rv.Index(i).Interface())
			if !ok {
				return nil, f.mismatch(value, "element %d", i)
			}
			out[i] = v
		}
		return out, nil
	}
}

func (f *FieldCodec) mismatch(value any, detail string, args ...any) error {
	b := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
		Path(f.Name).
		GoType(abi.TypeName(value)).
		FieldType(f.TypeName()).
		Value(value)
	if detail != "" {
		b.Detail(detail, args...)
	}
	return b.Build()
}

// Encode coerces value and writes it into buf. A value equal to the one
// already stored leaves the bytes untouched, so encoding an unmodified
// decoded value is always byte-for-byte identity.
func (f *FieldCodec) Encode(value any, buf []byte) error {
	b, err := f.slot(buf, errors.PhaseEncode)
	if err != nil {
		return err
	}
	canon, err := f.Coerce(value)
	if err != nil {
		return err
	}
	f.write(canon, b)
	return nil
}

// write stores an already coerced value.
func (f *FieldCodec) write(canon any, b []byte) {
	if equalValues(f.decode(b), canon) {
		return
	}
	o := f.order()
	switch f.Kind {
	case KindInt32:
		if f.Scale != 0 {
			o.PutUint32(b, uint32(int32(math.Round(canon.(float64)*f.Scale))))
			return
		}
		o.PutUint32(b, uint32(canon.(int32)))
	case KindUInt32:
		o.PutUint32(b, canon.(uint32))
	case KindEnum:
		o.PutUint32(b, uint32(canon.(int32)))
	case KindFixedString:
		n := copy(b, canon.(string))
		clear(b[n:])
	case KindFixedArray:
		switch vals := canon.(type) {
		case []int32:
			for i, v := range vals {
				o.PutUint32(b[i*4:], uint32(v))
			}
		case []uint32:
			for i, v := range vals {
				o.PutUint32(b[i*4:], v)
			}
		case []byte:
			copy(b, vals)
		}
	}
}

func equalValues(a, b any) bool {
	switch x := a.(type) {
	case []int32:
		y, ok := b.([]int32)
		return ok && slices.Equal(x, y)
	case []uint32:
		y, ok := b.([]uint32)
		return ok && slices.Equal(x, y)
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	default:
		return a == b
	}
}
