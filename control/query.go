package control

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/TheLegendszs/v4l4j"
	"github.com/TheLegendszs/v4l4j/errors"
	"github.com/TheLegendszs/v4l4j/structmap"
)

// Query binds a record layout to the bridge query that exchanges it.
// Transactions on the same Query run their fetch, apply and commit cycle
// one at a time.
type Query struct {
	bridge v4l4j.ComponentBridge
	layout *structmap.Layout
	gate   *semaphore.Weighted
	name   string
	id     int32
}

// NewQuery returns a query named name with bridge query ID id.
func NewQuery(name string, id int32, layout *structmap.Layout, bridge v4l4j.ComponentBridge) (*Query, error) {
	if layout == nil {
		return nil, errors.InvalidInput(errors.PhaseTree, fmt.Sprintf("query %q has no layout", name))
	}
	if bridge == nil {
		return nil, errors.InvalidInput(errors.PhaseTree, fmt.Sprintf("query %q has no bridge", name))
	}
	return &Query{
		bridge: bridge,
		layout: layout,
		gate:   semaphore.NewWeighted(1),
		name:   name,
		id:     id,
	}, nil
}

func (q *Query) Name() string              { return q.name }
func (q *Query) ID() int32                 { return q.id }
func (q *Query) Layout() *structmap.Layout { return q.layout }

func (q *Query) acquire(ctx context.Context) error {
	return q.gate.Acquire(ctx, 1)
}

func (q *Query) release() {
	q.gate.Release(1)
}

// exchange runs one bridge round trip. When ctx can expire the wait is
// bounded by it even if the bridge ignores ctx; the late result is dropped.
func (q *Query) exchange(ctx context.Context, buf []byte, doRead, doWrite bool) ([]byte, error) {
	if ctx.Done() == nil {
		return q.bridge.Exchange(ctx, q.id, buf, doRead, doWrite)
	}
	type result struct {
		err error
		buf []byte
	}
	done := make(chan result, 1)
	go func() {
		b, err := q.bridge.Exchange(ctx, q.id, buf, doRead, doWrite)
		done <- result{buf: b, err: err}
	}()
	select {
	case r := <-done:
		return r.buf, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// failure maps an error from waiting or exchanging to a timeout when the
// deadline passed and to an exchange failure otherwise.
func (q *Query) failure(ctx context.Context, limit time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Timeout(errors.PhaseExchange, q.name, limit, err)
	}
	return errors.ExchangeFailed(q.name, q.id, err)
}

// NewQueryControl builds the control tree for q: one leaf per layout field,
// with a composite for every dotted prefix. A field whose path collides
// with a composite, e.g. "crop" next to "crop.left", is a duplicate control
// path.
func NewQueryControl(name string, q *Query) (*Composite, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if q == nil {
		return nil, errors.InvalidInput(errors.PhaseTree, fmt.Sprintf("control %q has no query", name))
	}
	root := newComposite(name, q, "")
	for _, field := range q.layout.Names() {
		parts := strings.Split(field, ".")
		parent := root
		for i, part := range parts[:len(parts)-1] {
			switch n := parent.direct(part).(type) {
			case nil:
				sub := newComposite(part, q, strings.Join(parts[:i+1], "."))
				if err := parent.Add(sub); err != nil {
					return nil, err
				}
				parent = sub
			case *Composite:
				parent = n
			case *Leaf:
				return nil, errors.DuplicateControlPath(name, strings.Join(parts[:i+1], "."))
			default:
				panic(unknownNode(n))
			}
		}
		leaf, err := NewLeaf(parts[len(parts)-1], q, field)
		if err != nil {
			return nil, err
		}
		if err := parent.Add(leaf); err != nil {
			if errors.Is(err, errors.ErrDuplicateControlPath) {
				return nil, errors.DuplicateControlPath(name, field)
			}
			return nil, err
		}
	}
	Logger().Debug("built query control",
		zap.String("control", name),
		zap.String("query", q.name),
		zap.Int32("id", q.id),
		zap.Int("fields", len(q.layout.Names())))
	return root, nil
}
