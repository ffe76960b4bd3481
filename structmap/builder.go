package structmap

import (
	"encoding/binary"
	"fmt"
	"maps"
	"slices"

	"github.com/TheLegendszs/v4l4j/errors"
	"github.com/TheLegendszs/v4l4j/structmap/internal/abi"
)

// FieldOption customizes a field added through a Builder.
type FieldOption func(*FieldCodec)

// WithOrder sets the byte order of a field. Fields default to little-endian.
func WithOrder(o binary.ByteOrder) FieldOption {
	return func(f *FieldCodec) { f.Order = o }
}

// BigEndian is WithOrder(binary.BigEndian).
func BigEndian() FieldOption {
	return WithOrder(binary.BigEndian)
}

// WithScale makes an int32 field fixed-point with the given divisor,
// e.g. 65536 for Q16 values.
func WithScale(divisor float64) FieldOption {
	return func(f *FieldCodec) { f.Scale = divisor }
}

// Builder lays out a record the way a C compiler would: each field is
// placed at the next offset aligned to its natural alignment, unless At pins
// the offset explicitly.
//
//	layout, err := structmap.NewBuilder("portdef").
//		UInt32("size").
//		Enum("domain", map[string]int32{"audio": 0, "video": 1}).
//		String("mime", 32).
//		Nested("video", videoLayout).
//		Build()
type Builder struct {
	err    error
	name   string
	fields []FieldCodec
	cursor uint32
	size   uint32
	align  uint32
	pinned bool
}

// NewBuilder starts a layout for the named record kind.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, align: 1}
}

func (b *Builder) fail(format string, args ...any) *Builder {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
	return b
}

func (b *Builder) place(f FieldCodec, align uint32, opts []FieldOption) *Builder {
	if b.err != nil {
		return b
	}
	for _, opt := range opts {
		opt(&f)
	}
	if !b.pinned {
		b.cursor = abi.AlignTo(b.cursor, align)
	}
	b.pinned = false
	f.Offset = b.cursor
	end, ok := abi.SafeAddU32(f.Offset, f.Length)
	if !ok {
		return b.fail("field %q overflows the record", f.Name)
	}
	if align > b.align {
		b.align = align
	}
	b.cursor = end
	b.fields = append(b.fields, f)
	return b
}

// Int32 adds a signed 32-bit field.
func (b *Builder) Int32(name string, opts ...FieldOption) *Builder {
	return b.place(FieldCodec{Name: name, Kind: KindInt32, Length: 4}, 4, opts)
}

// UInt32 adds an unsigned 32-bit field.
func (b *Builder) UInt32(name string, opts ...FieldOption) *Builder {
	return b.place(FieldCodec{Name: name, Kind: KindUInt32, Length: 4}, 4, opts)
}

// Enum adds a 32-bit enumeration with named cases. A nil case table accepts
// any int32.
func (b *Builder) Enum(name string, cases map[string]int32, opts ...FieldOption) *Builder {
	return b.place(FieldCodec{Name: name, Kind: KindEnum, Length: 4, Cases: maps.Clone(cases)}, 4, opts)
}

// String adds a NUL-padded fixed-size character array.
func (b *Builder) String(name string, length uint32, opts ...FieldOption) *Builder {
	return b.place(FieldCodec{Name: name, Kind: KindFixedString, Length: length}, 1, opts)
}

// Array adds a fixed-size array of int32, uint32 or uint8 elements.
func (b *Builder) Array(name string, elem Kind, count uint32, opts ...FieldOption) *Builder {
	size := elem.elemSize()
	if size == 0 {
		return b.fail("field %q: invalid array element kind %s", name, elem)
	}
	length, ok := abi.SafeMulU32(count, size)
	if !ok {
		return b.fail("field %q: array too large", name)
	}
	return b.place(FieldCodec{Name: name, Kind: KindFixedArray, Elem: elem, Count: count, Length: length}, size, opts)
}

// Bytes adds a fixed-size byte array.
func (b *Builder) Bytes(name string, count uint32) *Builder {
	return b.Array(name, KindUInt8, count)
}

// Pad skips n bytes.
func (b *Builder) Pad(n uint32) *Builder {
	end, ok := abi.SafeAddU32(b.cursor, n)
	if !ok {
		return b.fail("padding overflows the record")
	}
	b.cursor = end
	return b
}

// At places the next field at exactly offset.
func (b *Builder) At(offset uint32) *Builder {
	b.cursor = offset
	b.pinned = true
	return b
}

// Field adds a fully specified codec at its own offset.
func (b *Builder) Field(f FieldCodec) *Builder {
	b.At(f.Offset)
	return b.place(f, 1, nil)
}

// Nested inlines every field of sub under "name." at the next offset
// aligned for sub.
func (b *Builder) Nested(name string, sub *Layout) *Builder {
	if b.err != nil {
		return b
	}
	if sub == nil {
		return b.fail("nested layout %q is nil", name)
	}
	if !b.pinned {
		b.cursor = abi.AlignTo(b.cursor, sub.align)
	}
	b.pinned = false
	base := b.cursor
	end, ok := abi.SafeAddU32(base, sub.size)
	if !ok {
		return b.fail("nested layout %q overflows the record", name)
	}
	for _, f := range sub.fields {
		offset, ok := abi.SafeAddU32(f.Offset, base)
		if !ok {
			return b.fail("field %q overflows the record", name+"."+f.Name)
		}
		f.Name = name + "." + f.Name
		f.Offset = offset
		f.Cases = maps.Clone(f.Cases)
		b.fields = append(b.fields, f)
	}
	if sub.align > b.align {
		b.align = sub.align
	}
	b.cursor = end
	return b
}

// Size forces the total record size, e.g. to account for trailing reserved
// bytes. It must cover every field.
func (b *Builder) Size(n uint32) *Builder {
	b.size = n
	return b
}

// Build validates the fields and returns the immutable layout.
func (b *Builder) Build() (*Layout, error) {
	if b.err != nil {
		return nil, errors.InvalidLayout(b.name, b.err.Error())
	}
	if len(b.fields) == 0 {
		return nil, errors.InvalidLayout(b.name, "layout has no fields")
	}

	index := make(map[string]int, len(b.fields))
	end := uint32(0)
	for i := range b.fields {
		f := &b.fields[i]
		if err := f.validate(); err != nil {
			return nil, errors.InvalidLayout(b.name, err.Error())
		}
		if _, dup := index[f.Name]; dup {
			return nil, errors.InvalidLayout(b.name, fmt.Sprintf("duplicate field %q", f.Name))
		}
		index[f.Name] = i
		e, ok := abi.SafeAddU32(f.Offset, f.Length)
		if !ok || e > abi.MaxRecordSize {
			return nil, errors.InvalidLayout(b.name, fmt.Sprintf("field %q ends beyond %d bytes", f.Name, abi.MaxRecordSize))
		}
		if e > end {
			end = e
		}
	}

	size := abi.AlignTo(end, b.align)
	if b.size != 0 {
		if b.size < end {
			return nil, errors.InvalidLayout(b.name, fmt.Sprintf("size %d does not cover fields ending at %d", b.size, end))
		}
		size = b.size
	}
	if size > abi.MaxRecordSize {
		return nil, errors.InvalidLayout(b.name, fmt.Sprintf("record of %d bytes exceeds %d", size, abi.MaxRecordSize))
	}

	byOffset := slices.Clone(b.fields)
	slices.SortFunc(byOffset, func(x, y FieldCodec) int {
		return int(x.Offset) - int(y.Offset)
	})
	for i := 1; i < len(byOffset); i++ {
		prev, cur := byOffset[i-1], byOffset[i]
		if prev.Offset+prev.Length > cur.Offset {
			return nil, errors.InvalidLayout(b.name, fmt.Sprintf("field %q overlaps %q", cur.Name, prev.Name))
		}
	}

	return &Layout{
		name:   b.name,
		fields: slices.Clone(b.fields),
		index:  index,
		size:   size,
		align:  b.align,
	}, nil
}
