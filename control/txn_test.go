package control

import (
	"bytes"
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/TheLegendszs/v4l4j/errors"
	"github.com/TheLegendszs/v4l4j/structmap"
)

func double(v any) (any, error) {
	return v.(int32) * 2, nil
}

func TestTransaction_UpdateDoublesWidth(t *testing.T) {
	root, bridge := formatControl(t)

	if err := root.Get().Update("width", double).Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got, want := bridge.reg(7), []byte{64, 1, 0, 0, 120, 0, 0, 0}; !bytes.Equal(got, want) {
		t.Errorf("register = %v, want %v", got, want)
	}

	calls := bridge.history()
	if len(calls) != 2 {
		t.Fatalf("%d exchanges, want fetch and commit", len(calls))
	}
	if !calls[0].doRead || calls[0].doWrite {
		t.Errorf("fetch flags = read:%v write:%v", calls[0].doRead, calls[0].doWrite)
	}
	if calls[1].doRead || !calls[1].doWrite {
		t.Errorf("commit flags = read:%v write:%v", calls[1].doRead, calls[1].doWrite)
	}
}

func TestTransaction_LastWriteWins(t *testing.T) {
	root, bridge := formatControl(t)

	err := root.Get().Write("width", 1).Write("width", 2).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := bridge.reg(7)[0]; got != 2 {
		t.Errorf("width = %d, want 2", got)
	}
	if n := len(bridge.history()); n != 2 {
		t.Errorf("%d exchanges, want 2", n)
	}
}

func TestTransaction_UpdateSeesEarlierWrite(t *testing.T) {
	root, bridge := formatControl(t)

	err := root.Get().
		Write("width", 10).
		Update("width", func(v any) (any, error) { return v.(int32) + 1, nil }).
		Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := bridge.reg(7)[0]; got != 11 {
		t.Errorf("width = %d, want 11", got)
	}
}

func TestTransaction_ReadsAfterCommit(t *testing.T) {
	root, bridge := formatControl(t)

	var (
		seen   structmap.Values
		height any
		order  []string
	)
	err := root.Get().
		Write("height", 480).
		Read(func(v structmap.Values) {
			seen = v
			order = append(order, "read")
		}).
		ReadField("height", func(v any) {
			height = v
			order = append(order, "field")
		}).
		Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if h, _ := seen.Int32("height"); h != 480 {
		t.Errorf("Read saw height %d, want 480", h)
	}
	if height != int32(480) {
		t.Errorf("ReadField saw %v, want 480", height)
	}
	if len(order) != 2 || order[0] != "read" || order[1] != "field" {
		t.Errorf("callback order = %v", order)
	}
	calls := bridge.history()
	if len(calls) != 2 || !calls[1].doRead || !calls[1].doWrite {
		t.Errorf("commit with pending reads must read back: %+v", calls)
	}
}

func TestTransaction_ReadOnly(t *testing.T) {
	root, bridge := formatControl(t)

	values, err := root.Get().Call(context.Background())
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if w, _ := values.Int32("width"); w != 160 {
		t.Errorf("width = %d, want 160", w)
	}
	if n := len(bridge.history()); n != 1 {
		t.Errorf("%d exchanges, want a single fetch", n)
	}
}

func TestTransaction_TypeMismatchDoesNotCommit(t *testing.T) {
	root, bridge := formatControl(t)
	before := bridge.reg(7)

	err := root.Get().
		Write("height", 240).
		Write("width", "not a number").
		Execute(context.Background())
	if !errors.Is(err, errors.ErrTypeMismatch) {
		t.Fatalf("Execute: got %v, want type mismatch", err)
	}
	if !bytes.Equal(bridge.reg(7), before) {
		t.Errorf("register changed: %v", bridge.reg(7))
	}
	for _, c := range bridge.history() {
		if c.doWrite {
			t.Error("a write reached the component")
		}
	}
}

func TestTransaction_UnknownFieldFailsBeforeExchange(t *testing.T) {
	root, bridge := formatControl(t)

	err := root.Get().Write("depth", 8).ReadField("stride", func(any) {}).Execute(context.Background())
	if !errors.Is(err, errors.ErrFieldNotFound) {
		t.Fatalf("Execute: got %v, want field not found", err)
	}
	if n := len(multierr.Errors(err)); n != 2 {
		t.Errorf("%d errors reported, want one per unknown field", n)
	}
	if n := len(bridge.history()); n != 0 {
		t.Errorf("%d exchanges, want none", n)
	}
}

func TestTransaction_AggregatesValueErrors(t *testing.T) {
	root, _ := formatControl(t)
	boom := stderrors.New("sensor busy")

	err := root.Get().
		Write("width", -1.5).
		Update("height", func(any) (any, error) { return nil, boom }).
		Execute(context.Background())
	if !errors.Is(err, errors.ErrTypeMismatch) || !errors.Is(err, boom) {
		t.Fatalf("Execute: got %v, want both failures", err)
	}
}

func TestTransaction_Persistent(t *testing.T) {
	root, bridge := formatControl(t)
	ctx := context.Background()

	base := root.Get().Write("width", 1)
	wide := base.Write("width", 2)
	tall := base.Write("height", 3)

	if err := wide.Execute(ctx); err != nil {
		t.Fatalf("wide: %v", err)
	}
	if got := bridge.reg(7)[0]; got != 2 {
		t.Errorf("after wide: width = %d, want 2", got)
	}
	if err := tall.Execute(ctx); err != nil {
		t.Fatalf("tall: %v", err)
	}
	if reg := bridge.reg(7); reg[0] != 1 || reg[4] != 3 {
		t.Errorf("after tall: register = %v, want width 1 height 3", reg)
	}
	if err := base.Execute(ctx); err != nil {
		t.Fatalf("base: %v", err)
	}
	if reg := bridge.reg(7); reg[0] != 1 || reg[4] != 3 {
		t.Errorf("after base: register = %v", reg)
	}
}

func TestTransaction_State(t *testing.T) {
	root, _ := formatControl(t)

	g := root.Get()
	tests := []struct {
		name string
		got  State
		want State
	}{
		{"accessor", root.Access().State(), Unbound},
		{"get", g.State(), Unbound},
		{"read", g.Read(func(structmap.Values) {}).State(), Readable},
		{"write", g.Write("width", 1).State(), Writable},
		{"write func", g.WriteFunc("width", func() any { return 1 }).State(), Writable},
		{"update", g.Update("width", double).State(), Mergeable},
		{"read after write", g.Write("width", 1).Read(func(structmap.Values) {}).State(), Readable},
		{"timeout keeps state", g.Update("width", double).SetTimeout(time.Second).State(), Mergeable},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("%s: state %s, want %s", tc.name, tc.got, tc.want)
		}
	}
}

func TestTransaction_AccessorIsNoop(t *testing.T) {
	root, bridge := formatControl(t)

	a := root.Access().SetTimeout(time.Second)
	if a.Timeout() != time.Second {
		t.Errorf("Timeout = %v", a.Timeout())
	}
	if err := a.Execute(context.Background()); err != nil {
		t.Errorf("Execute: %v", err)
	}
	if v, err := a.Call(context.Background()); v != nil || err != nil {
		t.Errorf("Call = %v, %v; want nil, nil", v, err)
	}
	if n := len(bridge.history()); n != 0 {
		t.Errorf("%d exchanges, want none", n)
	}
	if a.Get().Timeout() != time.Second {
		t.Error("Get dropped the accessor's timeout")
	}
}

func TestTransaction_Timeout(t *testing.T) {
	root, bridge := formatControl(t)
	bridge.delay = time.Second

	start := time.Now()
	err := root.Get().SetTimeout(20 * time.Millisecond).Write("width", 1).Execute(context.Background())
	if !errors.Is(err, errors.ErrTimeout) {
		t.Fatalf("Execute: got %v, want timeout", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("timeout took %v", time.Since(start))
	}
	if reg := bridge.reg(7); reg[0] != 160 {
		t.Errorf("timed out transaction wrote width %d", reg[0])
	}
}

func TestTransaction_TimeoutWaitingForQuery(t *testing.T) {
	root, bridge := formatControl(t)
	q := root.Query()

	if err := q.acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer q.release()

	err := root.Get().SetTimeout(10 * time.Millisecond).Execute(context.Background())
	if !errors.Is(err, errors.ErrTimeout) {
		t.Fatalf("Execute: got %v, want timeout", err)
	}
	if n := len(bridge.history()); n != 0 {
		t.Errorf("%d exchanges while the query was held", n)
	}
}

func TestTransaction_ExchangeFailed(t *testing.T) {
	root, bridge := formatControl(t)
	cause := stderrors.New("ioctl: ENODEV")
	bridge.fail = cause

	err := root.Get().Execute(context.Background())
	if !errors.Is(err, errors.ErrExchangeFailed) {
		t.Fatalf("Execute: got %v, want exchange failed", err)
	}
	if !errors.Is(err, cause) {
		t.Error("exchange failure does not wrap the bridge error")
	}
}

func TestTransaction_ShortReply(t *testing.T) {
	root, bridge := formatControl(t)
	bridge.reply = func(int32) []byte { return []byte{1, 2, 3} }

	err := root.Get().Execute(context.Background())
	if !errors.Is(err, errors.ErrBufferSizeMismatch) {
		t.Fatalf("Execute: got %v, want buffer size mismatch", err)
	}
}

func TestTransaction_ConcurrentUpdates(t *testing.T) {
	layout := mustLayout(t, structmap.NewBuilder("stats").UInt32("counter"))
	bridge := newRegBridge()
	bridge.regs[9] = make([]byte, 4)
	q, _ := NewQuery("stats", 9, layout, bridge)
	root, err := NewQueryControl("stats", q)
	if err != nil {
		t.Fatalf("NewQueryControl: %v", err)
	}

	inc := root.Get().Update("counter", func(v any) (any, error) {
		return v.(uint32) + 1, nil
	})

	const workers, rounds = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, workers*rounds)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				if err := inc.Execute(context.Background()); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Execute: %v", err)
	}

	values, err := root.Get().Call(context.Background())
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got, _ := values.UInt32("counter"); got != workers*rounds {
		t.Errorf("counter = %d, want %d", got, workers*rounds)
	}
}

func TestTransaction_SubComposite(t *testing.T) {
	root, bridge := cropControl(t)
	crop, _ := root.Composite("crop")

	var seen structmap.Values
	err := crop.Get().
		Write("left", 16).
		Write("width", uint32(640)).
		Read(func(v structmap.Values) { seen = v }).
		Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(seen) != 4 {
		t.Errorf("read saw %v, want the four crop fields", seen)
	}
	if l, _ := seen.Int32("left"); l != 16 {
		t.Errorf("left = %d, want 16", l)
	}
	if reg := bridge.reg(3); reg[4] != 16 || reg[12] != 0x80 || reg[13] != 2 {
		t.Errorf("register = %v", reg)
	}

	if err := crop.Get().Write("target", "compose").Execute(context.Background()); !errors.Is(err, errors.ErrFieldNotFound) {
		t.Errorf("write outside the composite: got %v, want field not found", err)
	}

	if _, err := crop.Get().UpdateAll(nil); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("UpdateAll: got %v, want unsupported", err)
	}
}

func TestTransaction_GroupingCompositeHasNoQuery(t *testing.T) {
	group, _ := NewComposite("group")
	if err := group.Get().Execute(context.Background()); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("Execute: got %v, want unsupported", err)
	}
}

func TestFieldGetter(t *testing.T) {
	root, bridge := formatControl(t)
	width, err := root.Leaf("width")
	if err != nil {
		t.Fatalf("Leaf: %v", err)
	}
	ctx := context.Background()

	v, err := width.Get().Update(func(v any) (any, error) { return v.(int32) + 1, nil }).Value(ctx)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != int32(161) {
		t.Errorf("Value = %v, want 161", v)
	}

	var read any
	if err := width.Get().Write(320).Read(func(v any) { read = v }).Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if read != int32(320) || bridge.reg(7)[1] != 1 {
		t.Errorf("read %v, register %v", read, bridge.reg(7))
	}

	if err := width.Get().Write("wide").Execute(ctx); !errors.Is(err, errors.ErrTypeMismatch) {
		t.Errorf("Write: got %v, want type mismatch", err)
	}

	if err := width.Access().Execute(ctx); err != nil {
		t.Errorf("unbound leaf Execute: %v", err)
	}
	if width.Access().Get().State() != Unbound {
		t.Error("fresh field getter is not unbound")
	}
	if c := width.Codec(); c.Kind != structmap.KindInt32 {
		t.Errorf("Codec kind = %s", c.Kind)
	}
}

func TestTransaction_Logs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	root, _ := formatControl(t)
	if err := root.Get().Update("width", double).Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	entries := logs.FilterMessage("transaction executed").All()
	if len(entries) != 1 {
		t.Fatalf("%d transaction log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["query"] != "format" || fields["committed"] != true {
		t.Errorf("log fields = %v", fields)
	}
}

func TestTransaction_WriteAllFunc(t *testing.T) {
	root, bridge := cropControl(t)
	crop, _ := root.Composite("crop")

	calls := 0
	g := crop.Get().WriteAllFunc(func() map[string]any {
		calls++
		return map[string]any{"left": 16, "height": uint32(480)}
	})
	if calls != 0 {
		t.Fatalf("supplier called %d times while building", calls)
	}
	if g.State() != Writable {
		t.Errorf("State = %v, want writable", g.State())
	}

	values, err := g.Write("left", 32).Call(context.Background())
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if calls != 1 {
		t.Errorf("supplier called %d times, want 1", calls)
	}
	if l, _ := values.Int32("left"); l != 32 {
		t.Errorf("left = %d, want the later write 32", l)
	}
	if reg := bridge.reg(3); reg[4] != 32 || reg[16] != 0xE0 || reg[17] != 1 {
		t.Errorf("register = %v", reg)
	}
}

func TestTransaction_WriteAllFuncAggregatesErrors(t *testing.T) {
	root, bridge := cropControl(t)
	crop, _ := root.Composite("crop")

	err := crop.Get().WriteAllFunc(func() map[string]any {
		return map[string]any{"left": "wide", "depth": 1}
	}).Execute(context.Background())
	if !errors.Is(err, errors.ErrTypeMismatch) || !errors.Is(err, errors.ErrFieldNotFound) {
		t.Fatalf("Execute: got %v, want type mismatch and field not found", err)
	}
	if n := len(multierr.Errors(err)); n != 2 {
		t.Errorf("%d errors, want 2", n)
	}
	if n := len(bridge.history()); n != 1 {
		t.Errorf("%d exchanges, want the fetch only", n)
	}
}

func TestTransaction_ReadsGetOwnArrays(t *testing.T) {
	layout := mustLayout(t, structmap.NewBuilder("gains").Array("gains", structmap.KindInt32, 2))
	bridge := newRegBridge()
	bridge.regs[9] = []byte{1, 0, 0, 0, 2, 0, 0, 0}
	q, err := NewQuery("gains", 9, layout, bridge)
	if err != nil {
		t.Fatalf("NewQuery: %v", err)
	}
	root, err := NewQueryControl("gains", q)
	if err != nil {
		t.Fatalf("NewQueryControl: %v", err)
	}

	var second, field []int32
	values, err := root.Get().
		Read(func(v structmap.Values) { v["gains"].([]int32)[0] = 99 }).
		Read(func(v structmap.Values) { second = v["gains"].([]int32) }).
		ReadField("gains", func(v any) { field = v.([]int32) }).
		Call(context.Background())
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if second[0] != 1 || field[0] != 1 {
		t.Errorf("later reads saw %v and %v after an earlier read changed its copy", second, field)
	}
	if got := values["gains"].([]int32); got[0] != 1 {
		t.Errorf("Call returned %v", got)
	}
}
