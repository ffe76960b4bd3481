package structmap

import (
	"github.com/TheLegendszs/v4l4j/errors"
)

// View pairs a shared Layout with a buffer it owns exclusively. Buffers come
// from a pool and go back to it on Release; after Release every operation
// fails with a released error.
//
// A View is not safe for concurrent use.
type View struct {
	layout *Layout
	buf    *[]byte
}

// NewView returns a view over a zeroed buffer of the layout's size.
func (l *Layout) NewView() *View {
	return &View{layout: l, buf: getBuf(int(l.size))}
}

// ViewOf returns a view holding a copy of buf, which must be exactly the
// layout's size.
func ViewOf(l *Layout, buf []byte) (*View, error) {
	if err := l.checkSize(buf, errors.PhaseDecode); err != nil {
		return nil, err
	}
	v := l.NewView()
	copy(*v.buf, buf)
	return v, nil
}

// Layout returns the shared layout.
func (v *View) Layout() *Layout { return v.layout }

func (v *View) bytes() ([]byte, error) {
	if v.buf == nil {
		return nil, errors.Released(v.layout.name)
	}
	return *v.buf, nil
}

// Get decodes the named field.
func (v *View) Get(name string) (any, error) {
	b, err := v.bytes()
	if err != nil {
		return nil, err
	}
	f, err := v.layout.codec(name, errors.PhaseDecode)
	if err != nil {
		return nil, err
	}
	return f.decode(b[f.Offset : f.Offset+f.Length]), nil
}

// Put encodes value into the named field. On error the buffer is unchanged.
func (v *View) Put(name string, value any) error {
	b, err := v.bytes()
	if err != nil {
		return err
	}
	f, err := v.layout.codec(name, errors.PhaseEncode)
	if err != nil {
		return err
	}
	canon, err := f.Coerce(value)
	if err != nil {
		return err
	}
	f.write(canon, b[f.Offset:f.Offset+f.Length])
	return nil
}

// PutAll puts every entry in sorted name order and stops at the first
// failure. Entries before the failing one stay applied, so on error the
// buffer may hold a mix of old and new values. Use Layout.Encode or validate
// with Layout.Coerce first when that matters.
func (v *View) PutAll(values map[string]any) error {
	for _, name := range sortedNames(values) {
		if err := v.Put(name, values[name]); err != nil {
			return err
		}
	}
	return nil
}

// AsMap decodes every field.
func (v *View) AsMap() (Values, error) {
	b, err := v.bytes()
	if err != nil {
		return nil, err
	}
	return v.layout.Decode(b)
}

// Bytes returns a copy of the buffer.
func (v *View) Bytes() ([]byte, error) {
	b, err := v.bytes()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Load replaces the buffer contents with buf, which must be exactly the
// layout's size.
func (v *View) Load(buf []byte) error {
	b, err := v.bytes()
	if err != nil {
		return err
	}
	if err := v.layout.checkSize(buf, errors.PhaseDecode); err != nil {
		return err
	}
	copy(b, buf)
	return nil
}

// Release returns the buffer to the pool. It is safe to call more than once.
func (v *View) Release() {
	if v.buf == nil {
		return
	}
	putBuf(v.buf)
	v.buf = nil
}
