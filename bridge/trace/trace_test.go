package trace

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/TheLegendszs/v4l4j"
)

func echo(_ context.Context, _ int32, buf []byte, doRead, _ bool) ([]byte, error) {
	if !doRead {
		return nil, nil
	}
	return append([]byte(nil), buf...), nil
}

func TestBridge_LogsExchange(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	b := New(v4l4j.ExchangeFunc(echo), zap.New(core))

	out, err := b.Exchange(context.Background(), 4, []byte{1, 2, 3}, true, true)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("out = %v", out)
	}

	entries := logs.FilterMessage("exchange").All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["query"] != int32(4) || ctx["sent"] != int64(3) || ctx["received"] != int64(3) {
		t.Errorf("fields = %v", ctx)
	}
	if ctx["read"] != true || ctx["write"] != true {
		t.Errorf("flags = %v", ctx)
	}
	if _, ok := ctx["out"]; ok {
		t.Error("payload logged without WithPayload")
	}
}

func TestBridge_Failure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	boom := errors.New("boom")
	b := New(v4l4j.ExchangeFunc(func(context.Context, int32, []byte, bool, bool) ([]byte, error) {
		return []byte{1}, boom
	}), zap.New(core))

	out, err := b.Exchange(context.Background(), 1, []byte{0}, true, false)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if out != nil {
		t.Errorf("out = %v, want nil on failure", out)
	}
	entries := logs.FilterMessage("exchange failed").All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("entries = %v", entries)
	}
}

func TestBridge_LevelAndPayload(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	b := New(v4l4j.ExchangeFunc(echo), zap.New(core))
	if _, err := b.Exchange(context.Background(), 1, []byte{7}, true, false); err != nil {
		t.Fatal(err)
	}
	if logs.Len() != 0 {
		t.Errorf("debug exchange logged at info core")
	}

	b = New(v4l4j.ExchangeFunc(echo), zap.New(core), WithLevel(zapcore.InfoLevel), WithPayload())
	if _, err := b.Exchange(context.Background(), 1, []byte{7}, true, false); err != nil {
		t.Fatal(err)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	if _, ok := entries[0].ContextMap()["in"]; !ok {
		t.Errorf("payload missing: %v", entries[0].ContextMap())
	}
}

func TestNew_NilLogger(t *testing.T) {
	b := New(v4l4j.ExchangeFunc(echo), nil)
	if _, err := b.Exchange(context.Background(), 1, []byte{1}, false, true); err != nil {
		t.Fatal(err)
	}
	if b.Unwrap() == nil {
		t.Error("Unwrap returned nil")
	}
}
