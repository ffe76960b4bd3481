package control

import (
	"fmt"
	"sync"

	"github.com/TheLegendszs/v4l4j/errors"
	"github.com/TheLegendszs/v4l4j/structmap"
)

// Leaf is a control bound to exactly one field of one query's record.
type Leaf struct {
	parent *Composite
	query  *Query
	name   string
	field  string
	mu     sync.RWMutex
}

// NewLeaf binds name to the field of q's layout.
func NewLeaf(name string, q *Query, field string) (*Leaf, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if q == nil {
		return nil, errors.InvalidInput(errors.PhaseTree, fmt.Sprintf("leaf %q has no query", name))
	}
	if !q.layout.Has(field) {
		return nil, errors.FieldNotFound(errors.PhaseTree, q.layout.Name(), field)
	}
	return &Leaf{name: name, query: q, field: field}, nil
}

func (l *Leaf) Name() string   { return l.name }
func (l *Leaf) Kind() NodeKind { return NodeLeaf }

func (l *Leaf) Parent() *Composite {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.parent
}

func (l *Leaf) attach(parent *Composite) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.parent != nil {
		return attached(l)
	}
	l.parent = parent
	return nil
}

// Field returns the layout field name the leaf reads and writes.
func (l *Leaf) Field() string { return l.field }

// Query returns the query owning the leaf's field.
func (l *Leaf) Query() *Query { return l.query }

// Codec returns the codec of the leaf's field.
func (l *Leaf) Codec() structmap.FieldCodec {
	f, _ := l.query.layout.Field(l.field)
	return f
}

// Access returns an unbound transaction over the leaf's field.
func (l *Leaf) Access() FieldAccessor {
	return FieldAccessor{
		a:     Accessor{sc: scope{query: l.query, path: l.name}},
		field: l.field,
	}
}

// Get returns a transaction that fetches the leaf's record.
func (l *Leaf) Get() FieldGetter {
	return l.Access().Get()
}

func (l *Leaf) String() string {
	f := l.Codec()
	return fmt.Sprintf("leaf %s (%s %s)", l.name, l.field, f.TypeName())
}
