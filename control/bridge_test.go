package control

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/TheLegendszs/v4l4j/structmap"
)

type exchangeCall struct {
	sent    []byte
	id      int32
	doRead  bool
	doWrite bool
}

// regBridge is a component holding one register per query ID. Exchanges
// are serialized.
type regBridge struct {
	fail  error
	regs  map[int32][]byte
	calls []exchangeCall
	reply func(id int32) []byte
	delay time.Duration
	mu    sync.Mutex
}

func newRegBridge() *regBridge {
	return &regBridge{regs: make(map[int32][]byte)}
}

func (b *regBridge) Exchange(ctx context.Context, id int32, buf []byte, doRead, doWrite bool) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, exchangeCall{sent: slices.Clone(buf), id: id, doRead: doRead, doWrite: doWrite})
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.fail != nil {
		return nil, b.fail
	}
	if b.reply != nil {
		return b.reply(id), nil
	}
	reg := b.regs[id]
	if doWrite {
		copy(reg, buf)
	}
	if doRead {
		return slices.Clone(reg), nil
	}
	return nil, nil
}

func (b *regBridge) reg(id int32) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.regs[id])
}

func (b *regBridge) history() []exchangeCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

func mustLayout(t *testing.T, b *structmap.Builder) *structmap.Layout {
	t.Helper()
	l, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return l
}

// formatControl returns the control tree of a width/height record holding
// 160x120, registered as query 7.
func formatControl(t *testing.T) (*Composite, *regBridge) {
	t.Helper()
	layout := mustLayout(t, structmap.NewBuilder("format").Int32("width").Int32("height"))
	bridge := newRegBridge()
	bridge.regs[7] = []byte{160, 0, 0, 0, 120, 0, 0, 0}
	q, err := NewQuery("format", 7, layout, bridge)
	if err != nil {
		t.Fatalf("NewQuery: %v", err)
	}
	root, err := NewQueryControl("format", q)
	if err != nil {
		t.Fatalf("NewQueryControl: %v", err)
	}
	return root, bridge
}

// cropControl returns a record with nested crop fields, registered as query 3.
func cropControl(t *testing.T) (*Composite, *regBridge) {
	t.Helper()
	layout := mustLayout(t, structmap.NewBuilder("selection").
		Enum("target", map[string]int32{"crop": 0, "compose": 256}).
		Int32("crop.left").
		Int32("crop.top").
		UInt32("crop.width").
		UInt32("crop.height"))
	bridge := newRegBridge()
	bridge.regs[3] = make([]byte, layout.Size())
	q, err := NewQuery("selection", 3, layout, bridge)
	if err != nil {
		t.Fatalf("NewQuery: %v", err)
	}
	root, err := NewQueryControl("selection", q)
	if err != nil {
		t.Fatalf("NewQueryControl: %v", err)
	}
	return root, bridge
}
