package structmap

import (
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/TheLegendszs/v4l4j/errors"
)

// FromWIT derives a layout from a WIT record type definition, so a control
// record can be declared once in an interface file and shared with the
// firmware side.
//
// Mapping:
//
//	s32                  KindInt32
//	u32                  KindUInt32
//	enum                 KindEnum, 32-bit, cases numbered in declaration order
//	record               nested layout under "field."
//	tuple<T, T, ...>     KindFixedArray of s32, u32 or u8
//
// Strings, lists and every other WIT type have no fixed native size and are
// rejected as unsupported.
func FromWIT(td *wit.TypeDef) (*Layout, error) {
	if td == nil {
		return nil, errors.InvalidLayout("", "nil WIT type definition")
	}
	name := "record"
	if td.Name != nil {
		name = *td.Name
	}
	rec, ok := td.Kind.(*wit.Record)
	if !ok {
		return nil, errors.Unsupported(errors.PhaseLayout, fmt.Sprintf("WIT %T %q as a record layout", td.Kind, name))
	}
	b := NewBuilder(name)
	for _, f := range rec.Fields {
		if err := addWITField(b, f.Name, f.Type); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

func addWITField(b *Builder, name string, t wit.Type) error {
	switch t := t.(type) {
	case wit.S32:
		b.Int32(name)
	case wit.U32:
		b.UInt32(name)
	case *wit.TypeDef:
		switch k := t.Kind.(type) {
		case *wit.Record:
			sub, err := FromWIT(t)
			if err != nil {
				return err
			}
			b.Nested(name, sub)
		case *wit.Enum:
			cases := make(map[string]int32, len(k.Cases))
			for i, c := range k.Cases {
				cases[c.Name] = int32(i)
			}
			b.Enum(name, cases)
		case *wit.Tuple:
			elem, err := tupleElem(name, k)
			if err != nil {
				return err
			}
			b.Array(name, elem, uint32(len(k.Types)))
		default:
			return errors.Unsupported(errors.PhaseLayout, fmt.Sprintf("WIT %T for field %q", t.Kind, name))
		}
	default:
		return errors.Unsupported(errors.PhaseLayout, fmt.Sprintf("WIT %T for field %q", t, name))
	}
	return nil
}

func tupleElem(name string, t *wit.Tuple) (Kind, error) {
	if len(t.Types) == 0 {
		return 0, errors.InvalidLayout(name, "empty tuple")
	}
	var elem Kind
	for i, et := range t.Types {
		var k Kind
		switch et.(type) {
		case wit.S32:
			k = KindInt32
		case wit.U32:
			k = KindUInt32
		case wit.U8:
			k = KindUInt8
		default:
			return 0, errors.Unsupported(errors.PhaseLayout, fmt.Sprintf("WIT tuple element %T in field %q", et, name))
		}
		if i > 0 && k != elem {
			return 0, errors.InvalidLayout(name, "tuple elements must share one type")
		}
		elem = k
	}
	return elem, nil
}
