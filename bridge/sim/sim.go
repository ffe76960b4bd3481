// Package sim is an in-process component: a register file of fixed-size
// records keyed by query ID, with exchange serialization, latency, fault
// injection and write hooks.
package sim

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/TheLegendszs/v4l4j"
)

var (
	ErrUnknownQuery = errors.New("sim: unknown query")
	ErrRecordSize   = errors.New("sim: record size mismatch")
)

// Hook runs after a write is copied into a scratch copy of the record and
// before it is stored. It may rewrite rec, e.g. to clamp a value or fill in
// the answer to an enumeration request. A hook error rejects the whole
// write.
type Hook func(id int32, rec []byte) error

// Stats counts exchanges of one query.
type Stats struct {
	Exchanges uint64
	Reads     uint64
	Writes    uint64
	Failures  uint64
}

type register struct {
	data     []byte
	hooks    []Hook
	fault    error
	failNext []error
	stats    Stats
}

// Device is a simulated component. Exchanges run one at a time.
type Device struct {
	log     *zap.Logger
	limiter *rate.Limiter
	regs    map[int32]*register
	latency time.Duration
	mu      sync.Mutex
}

var _ v4l4j.ComponentBridge = (*Device)(nil)

// Option configures a Device.
type Option func(*Device)

// WithLatency delays every exchange by d, or until its context ends.
func WithLatency(d time.Duration) Option {
	return func(dev *Device) { dev.latency = d }
}

// WithRateLimit admits exchanges at most as fast as l allows, the way
// firmware with a bounded command queue would. Waiting honors the exchange
// context.
func WithRateLimit(l *rate.Limiter) Option {
	return func(dev *Device) { dev.limiter = l }
}

// WithLogger logs exchanges at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(dev *Device) { dev.log = l }
}

// New returns a device with no registers.
func New(opts ...Option) *Device {
	d := &Device{log: zap.NewNop(), regs: make(map[int32]*register)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register declares a zeroed record of size bytes for id.
func (d *Device) Register(id int32, size int) error {
	if size <= 0 {
		return fmt.Errorf("sim: query %d: invalid record size %d", id, size)
	}
	return d.Define(id, make([]byte, size))
}

// Define declares the record for id with its initial contents.
func (d *Device) Define(id int32, init []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.regs[id]; ok {
		return fmt.Errorf("sim: query %d already defined", id)
	}
	d.regs[id] = &register{data: slices.Clone(init)}
	return nil
}

func (d *Device) reg(id int32) (*register, error) {
	r, ok := d.regs[id]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownQuery, id)
	}
	return r, nil
}

// OnWrite adds a hook run on every write to id, in registration order.
func (d *Device) OnWrite(id int32, h Hook) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := d.reg(id)
	if err != nil {
		return err
	}
	r.hooks = append(r.hooks, h)
	return nil
}

// Fail makes every exchange of id fail with err; nil clears the fault.
func (d *Device) Fail(id int32, err error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, rerr := d.reg(id)
	if rerr != nil {
		return rerr
	}
	r.fault = err
	return nil
}

// FailNext makes the next exchange of id fail with err. Calls queue up.
func (d *Device) FailNext(id int32, err error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, rerr := d.reg(id)
	if rerr != nil {
		return rerr
	}
	r.failNext = append(r.failNext, err)
	return nil
}

// Snapshot returns a copy of the record of id.
func (d *Device) Snapshot(id int32) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.regs[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(r.data), true
}

// Poke overwrites the record of id as the component itself would, without
// running hooks or counting an exchange.
func (d *Device) Poke(id int32, rec []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := d.reg(id)
	if err != nil {
		return err
	}
	if len(rec) != len(r.data) {
		return fmt.Errorf("%w: query %d holds %d bytes, got %d", ErrRecordSize, id, len(r.data), len(rec))
	}
	copy(r.data, rec)
	return nil
}

// Stats returns the exchange counters of id.
func (d *Device) Stats(id int32) Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.regs[id]; ok {
		return r.stats
	}
	return Stats{}
}

// Exchange implements v4l4j.ComponentBridge. A write is applied in full
// or not at all.
func (d *Device) Exchange(ctx context.Context, id int32, buf []byte, doRead, doWrite bool) ([]byte, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	r, err := d.reg(id)
	if err != nil {
		return nil, err
	}
	r.stats.Exchanges++

	out, err := d.exchange(ctx, r, id, buf, doRead, doWrite)
	if err != nil {
		r.stats.Failures++
		d.log.Debug("sim exchange failed",
			zap.Int32("query", id),
			zap.Bool("read", doRead),
			zap.Bool("write", doWrite),
			zap.Error(err))
		return nil, err
	}
	d.log.Debug("sim exchange",
		zap.Int32("query", id),
		zap.Bool("read", doRead),
		zap.Bool("write", doWrite))
	return out, nil
}

func (d *Device) exchange(ctx context.Context, r *register, id int32, buf []byte, doRead, doWrite bool) ([]byte, error) {
	if d.latency > 0 {
		timer := time.NewTimer(d.latency)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(r.failNext) > 0 {
		err := r.failNext[0]
		r.failNext = r.failNext[1:]
		return nil, err
	}
	if r.fault != nil {
		return nil, r.fault
	}
	if len(buf) != len(r.data) {
		return nil, fmt.Errorf("%w: query %d holds %d bytes, got %d", ErrRecordSize, id, len(r.data), len(buf))
	}

	if doWrite {
		next := slices.Clone(buf)
		for _, h := range r.hooks {
			if err := h(id, next); err != nil {
				return nil, err
			}
		}
		r.data = next
		r.stats.Writes++
	}
	if doRead {
		r.stats.Reads++
		return slices.Clone(r.data), nil
	}
	return nil, nil
}
