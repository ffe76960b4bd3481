package control

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/TheLegendszs/v4l4j/errors"
	"github.com/TheLegendszs/v4l4j/structmap"
)

// State is the state of the newest link of a transaction chain.
type State uint8

const (
	// Unbound has no pending operation.
	Unbound State = iota
	// Readable ends in a read.
	Readable
	// Writable ends in a write.
	Writable
	// Mergeable ends in an update.
	Mergeable
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Readable:
		return "readable"
	case Writable:
		return "writable"
	case Mergeable:
		return "mergeable"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

type opKind uint8

const (
	opFetch opKind = iota
	opRead
	opReadField
	opWrite
	opWriteFunc
	opWriteAllFunc
	opUpdate
)

// step is one immutable link of a transaction chain. Builders only ever
// prepend a new step pointing at the old tail, so chains share prefixes
// freely.
type step struct {
	prev      *step
	value     any
	supply    func() any
	supplyAll func() map[string]any
	read      func(structmap.Values)
	readField func(any)
	update    func(any) (any, error)
	name      string
	kind      opKind
}

func (s *step) state() State {
	switch s.kind {
	case opRead, opReadField:
		return Readable
	case opWrite, opWriteFunc, opWriteAllFunc:
		return Writable
	case opUpdate:
		return Mergeable
	default:
		return Unbound
	}
}

func (s *step) writes() bool {
	switch s.kind {
	case opWrite, opWriteFunc, opWriteAllFunc, opUpdate:
		return true
	}
	return false
}

func (s *step) reads() bool {
	return s.kind == opRead || s.kind == opReadField
}

// steps returns the chain oldest first.
func (s *step) steps() []*step {
	n := 0
	for p := s; p != nil; p = p.prev {
		n++
	}
	out := make([]*step, n)
	for p := s; p != nil; p = p.prev {
		n--
		out[n] = p
	}
	return out
}

// scope is what a transaction addresses: a query, and the dotted field
// prefix of the composite it was started from.
type scope struct {
	query  *Query
	prefix string
	path   string
}

func (sc scope) field(name string) string {
	return join(sc.prefix, name)
}

func (sc scope) view(v structmap.Values) structmap.Values {
	return v.Sub(sc.prefix)
}

// Accessor is an unbound transaction. It carries a timeout but no exchange;
// executing it does nothing. Get binds it to a fetch of the record.
type Accessor struct {
	sc      scope
	timeout time.Duration
}

// SetTimeout bounds the whole exchange cycle. Zero or less means no bound.
func (a Accessor) SetTimeout(d time.Duration) Accessor {
	a.timeout = d
	return a
}

// Timeout returns the configured bound.
func (a Accessor) Timeout() time.Duration { return a.timeout }

// State is always Unbound.
func (a Accessor) State() State { return Unbound }

// Get returns a transaction that fetches the record when executed.
func (a Accessor) Get() Getter {
	return Getter{sc: a.sc, timeout: a.timeout, tail: &step{kind: opFetch}}
}

// Execute does nothing: an accessor has no exchange to perform.
func (a Accessor) Execute(context.Context) error { return nil }

// Call does nothing and returns no values.
func (a Accessor) Call(context.Context) (structmap.Values, error) { return nil, nil }

// Getter is a transaction bound to one exchange cycle with the query's
// component. Every builder method returns a new Getter; the receiver is
// never modified, so a partially built chain can be reused.
//
// Field names are relative to the composite the transaction was started
// from.
type Getter struct {
	sc      scope
	tail    *step
	timeout time.Duration
}

func (g Getter) then(s *step) Getter {
	s.prev = g.tail
	g.tail = s
	return g
}

// SetTimeout replaces the timeout, leaving pending operations alone.
func (g Getter) SetTimeout(d time.Duration) Getter {
	g.timeout = d
	return g
}

// Timeout returns the configured bound.
func (g Getter) Timeout() time.Duration { return g.timeout }

// State returns the state of the newest link.
func (g Getter) State() State {
	if g.tail == nil {
		return Unbound
	}
	return g.tail.state()
}

// Read schedules fn to receive the decoded fields after the cycle.
func (g Getter) Read(fn func(structmap.Values)) Getter {
	return g.then(&step{kind: opRead, read: fn})
}

// ReadField schedules fn to receive one decoded field after the cycle.
func (g Getter) ReadField(name string, fn func(any)) Getter {
	return g.then(&step{kind: opReadField, name: g.sc.field(name), readField: fn})
}

// Write schedules value for the named field. Later writes to the same
// field win.
func (g Getter) Write(name string, value any) Getter {
	return g.then(&step{kind: opWrite, name: g.sc.field(name), value: value})
}

// WriteFunc schedules the value returned by fn, called during execution.
func (g Getter) WriteFunc(name string, fn func() any) Getter {
	return g.then(&step{kind: opWriteFunc, name: g.sc.field(name), supply: fn})
}

// WriteAll schedules every entry of values, in sorted name order.
func (g Getter) WriteAll(values map[string]any) Getter {
	for _, name := range structmap.Values(values).Names() {
		g = g.Write(name, values[name])
	}
	return g
}

// WriteAllFunc schedules every entry of the map returned by fn, called
// during execution. Entries are applied in sorted name order; names are
// relative to the composite the transaction was started from.
func (g Getter) WriteAllFunc(fn func() map[string]any) Getter {
	return g.then(&step{kind: opWriteAllFunc, supplyAll: fn})
}

// Update schedules fn to compute the named field's new value from its
// current one. fn sees the value fetched in the same cycle with every
// earlier write of this chain applied.
func (g Getter) Update(name string, fn func(any) (any, error)) Getter {
	return g.then(&step{kind: opUpdate, name: g.sc.field(name), update: fn})
}

// UpdateAll would merge a whole composite value. There is no merge policy
// for composites, so it always fails and returns g unchanged.
func (g Getter) UpdateAll(func(structmap.Values) (structmap.Values, error)) (Getter, error) {
	return g, errors.Unsupported(errors.PhaseTransaction,
		fmt.Sprintf("update of composite %q; update its fields instead", g.sc.path))
}

// Execute runs the cycle and invokes the scheduled reads.
func (g Getter) Execute(ctx context.Context) error {
	_, err := g.run(ctx, false)
	return err
}

// Call runs the cycle and also returns the final decoded fields. A commit
// made by Call always reads the record back.
func (g Getter) Call(ctx context.Context) (structmap.Values, error) {
	return g.run(ctx, true)
}

// run performs the exchange cycle:
//
//  1. wait for the query's gate, bounded by the timeout
//  2. fetch the record (doRead=true, doWrite=false)
//  3. resolve every write and update against a working copy; any error
//     aborts before the component sees a write
//  4. if anything was written, commit (doRead=reads pending, doWrite=true)
//  5. decode once and invoke reads in chain order
//
// The record's view is released on every return path.
func (g Getter) run(ctx context.Context, readBack bool) (structmap.Values, error) {
	if g.tail == nil {
		return nil, nil
	}
	q := g.sc.query
	if q == nil {
		return nil, errors.Unsupported(errors.PhaseTransaction,
			fmt.Sprintf("composite %q is not bound to a query", g.sc.path))
	}
	steps := g.tail.steps()
	layout := q.layout

	var (
		errs   error
		reads  = readBack
		writes bool
	)
	for _, s := range steps {
		reads = reads || s.reads()
		writes = writes || s.writes()
		if s.name != "" && !layout.Has(s.name) {
			errs = multierr.Append(errs, errors.FieldNotFound(errors.PhaseTransaction, layout.Name(), s.name))
		}
	}
	if errs != nil {
		return nil, errs
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	start := time.Now()

	if err := q.acquire(ctx); err != nil {
		return nil, q.failure(ctx, g.timeout, err)
	}
	defer q.release()

	view := layout.NewView()
	defer view.Release()

	if err := g.roundTrip(ctx, view, true, false); err != nil {
		return nil, err
	}

	committed := false
	if writes {
		changed, err := resolveWrites(view, g.sc.prefix, steps)
		if err != nil {
			return nil, err
		}
		if len(changed) > 0 {
			if err := view.PutAll(changed); err != nil {
				return nil, err
			}
			if err := g.roundTrip(ctx, view, reads, true); err != nil {
				return nil, err
			}
			committed = true
		}
	}

	final, err := view.AsMap()
	if err != nil {
		return nil, err
	}
	for _, s := range steps {
		switch s.kind {
		case opRead:
			s.read(g.sc.view(final))
		case opReadField:
			s.readField(structmap.CopyValue(final[s.name]))
		}
	}

	Logger().Debug("transaction executed",
		zap.String("query", q.name),
		zap.Int32("id", q.id),
		zap.Int("steps", len(steps)),
		zap.Bool("committed", committed),
		zap.Duration("elapsed", time.Since(start)))

	return g.sc.view(final), nil
}

// roundTrip exchanges the view's bytes and loads the reply. A commit
// without a read may return no buffer; the view then keeps what was sent.
func (g Getter) roundTrip(ctx context.Context, view *structmap.View, doRead, doWrite bool) error {
	q := g.sc.query
	buf, err := view.Bytes()
	if err != nil {
		return err
	}
	reply, err := q.exchange(ctx, buf, doRead, doWrite)
	if err != nil {
		return q.failure(ctx, g.timeout, err)
	}
	if ctx.Err() != nil {
		return q.failure(ctx, g.timeout, ctx.Err())
	}
	if reply == nil && !doRead {
		return nil
	}
	return view.Load(reply)
}

// resolveWrites applies writes and updates in chain order to a decoded
// copy of the view and returns the fields whose final value was produced
// by the chain. Names supplied by WriteAllFunc are relative to prefix.
// Errors from every step are collected.
func resolveWrites(view *structmap.View, prefix string, steps []*step) (map[string]any, error) {
	working, err := view.AsMap()
	if err != nil {
		return nil, err
	}
	layout := view.Layout()
	changed := make(map[string]any)

	apply := func(name string, value any) error {
		canon, err := layout.Coerce(name, value)
		if err != nil {
			return err
		}
		working[name] = canon
		changed[name] = canon
		return nil
	}

	var errs error
	for _, s := range steps {
		var value any
		switch s.kind {
		case opWrite:
			value = s.value
		case opWriteFunc:
			value = s.supply()
		case opWriteAllFunc:
			values := structmap.Values(s.supplyAll())
			for _, name := range values.Names() {
				errs = multierr.Append(errs, apply(join(prefix, name), values[name]))
			}
			continue
		case opUpdate:
			next, err := s.update(working[s.name])
			if err != nil {
				errs = multierr.Append(errs, errors.Wrap(errors.PhaseTransaction, errors.KindInvalidInput, err,
					fmt.Sprintf("update of field %q", s.name)))
				continue
			}
			value = next
		default:
			continue
		}
		errs = multierr.Append(errs, apply(s.name, value))
	}
	if errs != nil {
		return nil, errs
	}
	return changed, nil
}
