// Package trace decorates a ComponentBridge with structured exchange logs.
package trace

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/TheLegendszs/v4l4j"
)

// Bridge logs every exchange of the wrapped bridge.
type Bridge struct {
	next  v4l4j.ComponentBridge
	log   *zap.Logger
	level zapcore.Level
	dump  bool
}

var _ v4l4j.ComponentBridge = (*Bridge)(nil)

// Option configures a Bridge.
type Option func(*Bridge)

// WithLevel sets the level of successful exchanges. Failures always log at
// warn.
func WithLevel(l zapcore.Level) Option {
	return func(b *Bridge) { b.level = l }
}

// WithPayload adds the sent and received records to each entry.
func WithPayload() Option {
	return func(b *Bridge) { b.dump = true }
}

// New wraps next. A nil logger disables logging.
func New(next v4l4j.ComponentBridge, log *zap.Logger, opts ...Option) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bridge{next: next, log: log, level: zapcore.DebugLevel}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Unwrap returns the wrapped bridge.
func (b *Bridge) Unwrap() v4l4j.ComponentBridge { return b.next }

// Exchange forwards to the wrapped bridge and logs the outcome.
func (b *Bridge) Exchange(ctx context.Context, id int32, buf []byte, doRead, doWrite bool) ([]byte, error) {
	start := time.Now()
	out, err := b.next.Exchange(ctx, id, buf, doRead, doWrite)

	fields := []zap.Field{
		zap.Int32("query", id),
		zap.Bool("read", doRead),
		zap.Bool("write", doWrite),
		zap.Int("sent", len(buf)),
		zap.Int("received", len(out)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if b.dump {
		fields = append(fields, zap.Binary("out", buf))
		if out != nil {
			fields = append(fields, zap.Binary("in", out))
		}
	}
	if err != nil {
		b.log.Warn("exchange failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	if ce := b.log.Check(b.level, "exchange"); ce != nil {
		ce.Write(fields...)
	}
	return out, nil
}
