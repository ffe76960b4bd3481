package structmap

import (
	"slices"
	"sort"

	"github.com/TheLegendszs/v4l4j/errors"
)

// Layout describes one native record kind: an ordered set of named fields
// and the record's total size. A Layout is immutable and safe for
// concurrent use; every View of the record kind shares it.
type Layout struct {
	index  map[string]int
	name   string
	fields []FieldCodec
	size   uint32
	align  uint32
}

// Name returns the record kind name.
func (l *Layout) Name() string { return l.name }

// Size returns the total record size in bytes.
func (l *Layout) Size() int { return int(l.size) }

// Fields returns the field codecs in declaration order.
func (l *Layout) Fields() []FieldCodec {
	return slices.Clone(l.fields)
}

// Names returns the field names in declaration order.
func (l *Layout) Names() []string {
	names := make([]string, len(l.fields))
	for i := range l.fields {
		names[i] = l.fields[i].Name
	}
	return names
}

// Field returns the codec for name.
func (l *Layout) Field(name string) (FieldCodec, bool) {
	i, ok := l.index[name]
	if !ok {
		return FieldCodec{}, false
	}
	return l.fields[i], true
}

// Has reports whether name is a field of the layout.
func (l *Layout) Has(name string) bool {
	_, ok := l.index[name]
	return ok
}

func (l *Layout) codec(name string, phase errors.Phase) (*FieldCodec, error) {
	i, ok := l.index[name]
	if !ok {
		return nil, errors.FieldNotFound(phase, l.name, name)
	}
	return &l.fields[i], nil
}

func (l *Layout) checkSize(buf []byte, phase errors.Phase) error {
	if len(buf) != int(l.size) {
		return errors.BufferSizeMismatch(phase, l.name, int(l.size), len(buf))
	}
	return nil
}

// Coerce validates value against the named field and returns its canonical form.
func (l *Layout) Coerce(name string, value any) (any, error) {
	f, err := l.codec(name, errors.PhaseEncode)
	if err != nil {
		return nil, err
	}
	return f.Coerce(value)
}

// Decode decodes every field of buf.
func (l *Layout) Decode(buf []byte) (Values, error) {
	if err := l.checkSize(buf, errors.PhaseDecode); err != nil {
		return nil, err
	}
	out := make(Values, len(l.fields))
	for i := range l.fields {
		f := &l.fields[i]
		out[f.Name] = f.decode(buf[f.Offset : f.Offset+f.Length])
	}
	return out, nil
}

// Encode writes values into buf. Every value is validated before the first
// byte is written, so a failed Encode leaves buf unchanged.
func (l *Layout) Encode(values Values, buf []byte) error {
	if err := l.checkSize(buf, errors.PhaseEncode); err != nil {
		return err
	}
	type pending struct {
		f     *FieldCodec
		canon any
	}
	staged := make([]pending, 0, len(values))
	for _, name := range sortedNames(values) {
		f, err := l.codec(name, errors.PhaseEncode)
		if err != nil {
			return err
		}
		canon, err := f.Coerce(values[name])
		if err != nil {
			return err
		}
		staged = append(staged, pending{f: f, canon: canon})
	}
	for _, p := range staged {
		p.f.write(p.canon, buf[p.f.Offset:p.f.Offset+p.f.Length])
	}
	return nil
}

func sortedNames(values map[string]any) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
