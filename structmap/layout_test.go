package structmap

import (
	"bytes"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/TheLegendszs/v4l4j/errors"
)

func mustBuild(t *testing.T, b *Builder) *Layout {
	t.Helper()
	l, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return l
}

func offsets(l *Layout) map[string]uint32 {
	out := make(map[string]uint32)
	for _, f := range l.Fields() {
		out[f.Name] = f.Offset
	}
	return out
}

func TestBuilder_NaturalAlignment(t *testing.T) {
	l := mustBuild(t, NewBuilder("port").
		UInt32("size").
		String("mime", 3).
		Int32("bitrate").
		Bytes("tag", 2))

	want := map[string]uint32{"size": 0, "mime": 4, "bitrate": 8, "tag": 12}
	got := offsets(l)
	for name, off := range want {
		if got[name] != off {
			t.Errorf("%s offset = %d, want %d", name, got[name], off)
		}
	}
	if l.Size() != 16 {
		t.Errorf("Size = %d, want 16 (trailing padding to 4)", l.Size())
	}
	if !slices.Equal(l.Names(), []string{"size", "mime", "bitrate", "tag"}) {
		t.Errorf("Names = %v, want declaration order", l.Names())
	}
}

func TestBuilder_ByteOnlyRecord(t *testing.T) {
	l := mustBuild(t, NewBuilder("name").String("card", 5))
	if l.Size() != 5 {
		t.Errorf("Size = %d, want 5", l.Size())
	}
}

func TestBuilder_AtAndPad(t *testing.T) {
	l := mustBuild(t, NewBuilder("reg").
		Int32("a").
		Pad(8).
		Int32("b").
		At(40).Int32("c").
		Size(64))

	want := map[string]uint32{"a": 0, "b": 12, "c": 40}
	got := offsets(l)
	for name, off := range want {
		if got[name] != off {
			t.Errorf("%s offset = %d, want %d", name, got[name], off)
		}
	}
	if l.Size() != 64 {
		t.Errorf("Size = %d, want 64", l.Size())
	}
}

func TestBuilder_Nested(t *testing.T) {
	size := mustBuild(t, NewBuilder("size").Int32("width").Int32("height"))
	l := mustBuild(t, NewBuilder("format").
		Bytes("flags", 1).
		Nested("frame", size).
		Enum("pixel", map[string]int32{"yuyv": 1}))

	want := map[string]uint32{"flags": 0, "frame.width": 4, "frame.height": 8, "pixel": 12}
	got := offsets(l)
	for name, off := range want {
		if got[name] != off {
			t.Errorf("%s offset = %d, want %d", name, got[name], off)
		}
	}
	if l.Size() != 16 {
		t.Errorf("Size = %d, want 16", l.Size())
	}
	if size.Has("frame.width") {
		t.Error("nesting mutated the sub layout")
	}
}

func TestBuilder_Errors(t *testing.T) {
	pair := mustBuild(t, NewBuilder("pair").Int32("a").Int32("b"))

	tests := []struct {
		name string
		b    *Builder
	}{
		{"no fields", NewBuilder("x")},
		{"duplicate", NewBuilder("x").Int32("a").UInt32("a")},
		{"overlap", NewBuilder("x").Int32("a").At(2).Int32("b")},
		{"size too small", NewBuilder("x").Int32("a").Int32("b").Size(6)},
		{"empty name", NewBuilder("x").Int32("")},
		{"empty segment", NewBuilder("x").Int32("a..b")},
		{"empty string", NewBuilder("x").String("s", 0)},
		{"bad element", NewBuilder("x").Array("arr", KindFixedString, 2)},
		{"scale on uint", NewBuilder("x").UInt32("u", WithScale(10))},
		{"negative scale", NewBuilder("x").Int32("i", WithScale(-1))},
		{"too large", NewBuilder("x").Bytes("blob", 1<<17)},
		{"nil nested", NewBuilder("x").Nested("sub", nil)},
		{"bad field length", NewBuilder("x").Field(FieldCodec{Name: "a", Kind: KindInt32, Length: 2})},
		{"nested wraps", NewBuilder("x").At(0xFFFFFFFC).Nested("n", pair)},
		{"nested beyond max", NewBuilder("x").At(0xFFFFFF00).Nested("n", pair)},
		{"field wraps", NewBuilder("x").At(0xFFFFFFFE).Int32("a")},
		{"field beyond max", NewBuilder("x").At(1 << 20).Int32("a")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.b.Build()
			if !errors.Is(err, errors.ErrInvalidLayout) {
				t.Errorf("Build: got %v, want invalid layout", err)
			}
		})
	}
}

func TestLayout_Decode(t *testing.T) {
	l := mustBuild(t, NewBuilder("format").Int32("width").Int32("height"))

	got, err := l.Decode([]byte{160, 0, 0, 0, 120, 0, 0, 0})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if w, _ := got.Int32("width"); w != 160 {
		t.Errorf("width = %d, want 160", w)
	}
	if h, _ := got.Int32("height"); h != 120 {
		t.Errorf("height = %d, want 120", h)
	}

	for _, n := range []int{0, 7, 9} {
		if _, err := l.Decode(make([]byte, n)); !errors.Is(err, errors.ErrBufferSizeMismatch) {
			t.Errorf("Decode(%d bytes): got %v, want buffer size mismatch", n, err)
		}
	}
}

func TestLayout_EncodeValidatesFirst(t *testing.T) {
	l := mustBuild(t, NewBuilder("format").Int32("width").Int32("height"))
	buf := []byte{160, 0, 0, 0, 120, 0, 0, 0}
	orig := slices.Clone(buf)

	err := l.Encode(Values{"height": 240, "width": "wide"}, buf)
	if !errors.Is(err, errors.ErrTypeMismatch) {
		t.Fatalf("Encode: got %v, want type mismatch", err)
	}
	if !bytes.Equal(buf, orig) {
		t.Errorf("failed Encode mutated the buffer: %v", buf)
	}

	err = l.Encode(Values{"height": 240, "depth": 8}, buf)
	if !errors.Is(err, errors.ErrFieldNotFound) {
		t.Fatalf("Encode: got %v, want field not found", err)
	}
	if !bytes.Equal(buf, orig) {
		t.Errorf("failed Encode mutated the buffer: %v", buf)
	}

	if err := l.Encode(Values{"height": 240}, buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(buf, []byte{160, 0, 0, 0, 240, 0, 0, 0}) {
		t.Errorf("buffer = %v", buf)
	}
}

func TestLayout_RoundTrip(t *testing.T) {
	sub := mustBuild(t, NewBuilder("rect").Int32("left").Int32("top"))
	l := mustBuild(t, NewBuilder("everything").
		Int32("i").
		UInt32("u").
		Int32("q16", WithScale(65536)).
		Int32("milli", WithScale(1000)).
		UInt32("be", BigEndian()).
		Enum("mode", map[string]int32{"off": 0, "on": 1}).
		String("name", 11).
		Array("gains", KindInt32, 3).
		Array("masks", KindUInt32, 2).
		Bytes("raw", 5).
		Nested("crop", sub).
		Size(96))

	rng := rand.New(rand.NewPCG(1, 2))
	for i := range 200 {
		buf := make([]byte, l.Size())
		for j := range buf {
			buf[j] = byte(rng.UintN(256))
		}
		// Half the runs use printable strings with NUL padding.
		if i%2 == 0 {
			copy(buf[24:], "mjpeg\x00junk!")
		}
		orig := slices.Clone(buf)

		m, err := l.Decode(buf)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if err := l.Encode(m, buf); err != nil {
			t.Fatalf("run %d: Encode of decoded values: %v", i, err)
		}
		if !bytes.Equal(buf, orig) {
			t.Fatalf("run %d: round trip changed bytes\n got %v\nwant %v", i, buf, orig)
		}
	}
}

func TestLayout_FieldLookup(t *testing.T) {
	l := mustBuild(t, NewBuilder("format").Int32("width"))

	if !l.Has("width") || l.Has("height") {
		t.Error("Has disagrees with the declared fields")
	}
	f, ok := l.Field("width")
	if !ok || f.Kind != KindInt32 || f.Offset != 0 {
		t.Errorf("Field(width) = %+v, %v", f, ok)
	}
	if _, err := l.Coerce("height", 1); !errors.Is(err, errors.ErrFieldNotFound) {
		t.Errorf("Coerce(height): got %v, want field not found", err)
	}

	fields := l.Fields()
	fields[0].Name = "mutated"
	if !l.Has("width") {
		t.Error("Fields exposed internal state")
	}
}
