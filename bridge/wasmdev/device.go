// Package wasmdev is a component running as a WebAssembly guest under
// wazero. The guest keeps one record slot per query in its linear memory
// and serves the exchange protocol through a single exported function, so
// every record crosses a real host/guest memory boundary.
package wasmdev

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/TheLegendszs/v4l4j"
)

var (
	ErrUnknownQuery = errors.New("wasmdev: unknown query")
	ErrRecordSize   = errors.New("wasmdev: record size mismatch")
	ErrClosed       = errors.New("wasmdev: device closed")
)

// MaxRecordSize is the largest record a slot holds.
const MaxRecordSize = slotSize

// MaxQueryID is the largest query ID with a slot.
const MaxQueryID = maxSlots - 1

// Device hosts the guest. Exchanges run one at a time.
type Device struct {
	runtime  wazero.Runtime
	mod      api.Module
	exchange api.Function
	mem      api.Memory
	log      *zap.Logger
	sizes    map[int32]int
	mu       sync.Mutex
	closed   bool
}

var _ v4l4j.ComponentBridge = (*Device)(nil)

// Option configures a Device.
type Option func(*Device)

// WithLogger logs exchanges at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(d *Device) { d.log = l }
}

// New compiles and instantiates the guest.
func New(ctx context.Context, opts ...Option) (*Device, error) {
	d := &Device{log: zap.NewNop(), sizes: make(map[int32]int)}
	for _, opt := range opts {
		opt(d)
	}

	cfg := wazero.NewRuntimeConfig().WithMemoryLimitPages(1)
	d.runtime = wazero.NewRuntimeWithConfig(ctx, cfg)

	mod, err := d.runtime.Instantiate(ctx, firmware())
	if err != nil {
		_ = d.runtime.Close(ctx)
		return nil, fmt.Errorf("wasmdev: instantiate guest: %w", err)
	}
	d.mod = mod
	d.exchange = mod.ExportedFunction("exchange")
	d.mem = mod.ExportedMemory("memory")
	if d.exchange == nil || d.mem == nil {
		_ = d.runtime.Close(ctx)
		return nil, fmt.Errorf("wasmdev: guest is missing its exports")
	}
	return d, nil
}

// Close releases the runtime. Later exchanges fail with ErrClosed.
func (d *Device) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.runtime.Close(ctx)
}

func slotOffset(id int32) uint32 {
	return registerBase + uint32(id)*slotSize
}

// Register declares a zeroed record of size bytes for id.
func (d *Device) Register(id int32, size int) error {
	return d.Define(id, make([]byte, size))
}

// Define declares the record for id with its initial contents.
func (d *Device) Define(id int32, init []byte) error {
	if id < 0 || id > MaxQueryID {
		return fmt.Errorf("wasmdev: query %d outside [0, %d]", id, MaxQueryID)
	}
	if len(init) == 0 || len(init) > MaxRecordSize {
		return fmt.Errorf("wasmdev: query %d: invalid record size %d", id, len(init))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if _, ok := d.sizes[id]; ok {
		return fmt.Errorf("wasmdev: query %d already defined", id)
	}
	if !d.mem.Write(slotOffset(id), init) {
		return fmt.Errorf("wasmdev: query %d: slot out of guest memory", id)
	}
	d.sizes[id] = len(init)
	return nil
}

// Snapshot returns a copy of the slot of id as the guest holds it.
func (d *Device) Snapshot(id int32) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	size, ok := d.sizes[id]
	if !ok || d.closed {
		return nil, false
	}
	rec, ok := d.mem.Read(slotOffset(id), uint32(size))
	if !ok {
		return nil, false
	}
	return slices.Clone(rec), true
}

// Exchange implements v4l4j.ComponentBridge by copying buf into guest
// memory, calling the guest and copying the record back out.
func (d *Device) Exchange(ctx context.Context, id int32, buf []byte, doRead, doWrite bool) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out, err := d.call(ctx, id, buf, doRead, doWrite)
	if err != nil {
		d.log.Debug("wasm exchange failed",
			zap.Int32("query", id),
			zap.Bool("read", doRead),
			zap.Bool("write", doWrite),
			zap.Error(err))
		return nil, err
	}
	d.log.Debug("wasm exchange",
		zap.Int32("query", id),
		zap.Bool("read", doRead),
		zap.Bool("write", doWrite))
	return out, nil
}

func (d *Device) call(ctx context.Context, id int32, buf []byte, doRead, doWrite bool) ([]byte, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size, ok := d.sizes[id]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownQuery, id)
	}
	if len(buf) != size {
		return nil, fmt.Errorf("%w: query %d holds %d bytes, got %d", ErrRecordSize, id, size, len(buf))
	}
	if !d.mem.Write(bufferOffset, buf) {
		return nil, fmt.Errorf("wasmdev: query %d: buffer out of guest memory", id)
	}

	var flags uint32
	if doRead {
		flags |= flagRead
	}
	if doWrite {
		flags |= flagWrite
	}
	res, err := d.exchange.Call(ctx,
		api.EncodeI32(id),
		api.EncodeU32(bufferOffset),
		api.EncodeU32(uint32(size)),
		api.EncodeU32(flags))
	if err != nil {
		return nil, fmt.Errorf("wasmdev: guest exchange: %w", err)
	}
	if status := api.DecodeI32(res[0]); status != 0 {
		return nil, fmt.Errorf("wasmdev: query %d: guest status %d", id, status)
	}

	if !doRead {
		return nil, nil
	}
	rec, ok := d.mem.Read(bufferOffset, uint32(size))
	if !ok {
		return nil, fmt.Errorf("wasmdev: query %d: buffer out of guest memory", id)
	}
	return slices.Clone(rec), nil
}
