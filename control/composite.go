package control

import (
	"fmt"
	"slices"
	"sync"

	"github.com/TheLegendszs/v4l4j/errors"
)

// Composite is a control owning named children. Children are addressed by
// dotted path through a flattened index that is built on first lookup and
// dropped whenever this composite or any descendant gains a child.
type Composite struct {
	parent   *Composite
	query    *Query
	byName   map[string]Node
	name     string
	prefix   string
	children []Node
	index    indexCache
	mu       sync.RWMutex
}

// NewComposite returns a grouping composite not bound to any query.
func NewComposite(name string, children ...Node) (*Composite, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	c := newComposite(name, nil, "")
	if err := c.Add(children...); err != nil {
		return nil, err
	}
	return c, nil
}

func newComposite(name string, q *Query, prefix string) *Composite {
	return &Composite{name: name, query: q, prefix: prefix, byName: make(map[string]Node)}
}

func (c *Composite) Name() string   { return c.name }
func (c *Composite) Kind() NodeKind { return NodeComposite }

func (c *Composite) Parent() *Composite {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parent
}

// Query returns the query the composite's fields belong to, or nil for a
// grouping composite.
func (c *Composite) Query() *Query { return c.query }

// Prefix returns the dotted field prefix this composite covers within its
// query's layout; empty for the query's root composite.
func (c *Composite) Prefix() string { return c.prefix }

func (c *Composite) attach(parent *Composite) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.parent != nil {
		return attached(c)
	}
	c.parent = parent
	return nil
}

func attached(n Node) error {
	return errors.New(errors.PhaseTree, errors.KindInvalidInput).
		Path(n.Name()).
		Detail("control already has a parent").
		Build()
}

// Add appends children. Either every child is added or none is: a name
// already present (or repeated in the batch) is a duplicate control path,
// and a child that already has a parent or would close a cycle is rejected.
func (c *Composite) Add(children ...Node) error {
	if len(children) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(children))
	c.mu.RLock()
	for _, n := range children {
		if n == nil {
			c.mu.RUnlock()
			return errors.InvalidInput(errors.PhaseTree, "nil control")
		}
		name := n.Name()
		if err := checkName(name); err != nil {
			c.mu.RUnlock()
			return err
		}
		if _, dup := c.byName[name]; dup || seen[name] {
			c.mu.RUnlock()
			return errors.DuplicateControlPath(c.name, name)
		}
		seen[name] = true
	}
	c.mu.RUnlock()

	for _, n := range children {
		if sub, ok := n.(*Composite); ok {
			for p := c; p != nil; p = p.Parent() {
				if p == sub {
					return errors.New(errors.PhaseTree, errors.KindInvalidInput).
						Path(c.name, sub.name).
						Detail("adding composite would create a cycle").
						Build()
				}
			}
		}
		if n.Parent() != nil {
			return attached(n)
		}
	}

	c.mu.Lock()
	for _, n := range children {
		if _, dup := c.byName[n.Name()]; dup {
			c.mu.Unlock()
			return errors.DuplicateControlPath(c.name, n.Name())
		}
	}
	for i, n := range children {
		if err := n.attach(c); err != nil {
			for _, done := range children[:i] {
				detach(done)
			}
			c.mu.Unlock()
			return err
		}
	}
	for _, n := range children {
		c.byName[n.Name()] = n
		c.children = append(c.children, n)
	}
	c.mu.Unlock()

	for p := c; p != nil; p = p.Parent() {
		p.index.invalidate()
	}
	return nil
}

func detach(n Node) {
	switch n := n.(type) {
	case *Leaf:
		n.mu.Lock()
		n.parent = nil
		n.mu.Unlock()
	case *Composite:
		n.mu.Lock()
		n.parent = nil
		n.mu.Unlock()
	default:
		panic(unknownNode(n))
	}
}

// Children returns the direct children in insertion order.
func (c *Composite) Children() []Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.children)
}

// Child resolves a dotted path relative to c, e.g. "video.resolution.width".
func (c *Composite) Child(path string) (Node, error) {
	if n, ok := c.index.load(c.flatten)[path]; ok {
		return n, nil
	}
	c.index.invalidate()
	if n, ok := c.index.load(c.flatten)[path]; ok {
		return n, nil
	}
	return nil, errors.PathNotFound(c.name, path)
}

// Leaf resolves path and requires it to name a leaf.
func (c *Composite) Leaf(path string) (*Leaf, error) {
	n, err := c.Child(path)
	if err != nil {
		return nil, err
	}
	l, ok := n.(*Leaf)
	if !ok {
		return nil, errors.New(errors.PhaseResolve, errors.KindPathNotFound).
			Path(c.name, path).
			Detail("path names a composite, not a leaf").
			Build()
	}
	return l, nil
}

// Composite resolves path and requires it to name a composite.
func (c *Composite) Composite(path string) (*Composite, error) {
	n, err := c.Child(path)
	if err != nil {
		return nil, err
	}
	sub, ok := n.(*Composite)
	if !ok {
		return nil, errors.New(errors.PhaseResolve, errors.KindPathNotFound).
			Path(c.name, path).
			Detail("path names a leaf, not a composite").
			Build()
	}
	return sub, nil
}

// Paths returns every dotted path below c, sorted.
func (c *Composite) Paths() []string {
	idx := c.index.load(c.flatten)
	paths := make([]string, 0, len(idx))
	for p := range idx {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Walk visits every descendant depth first in insertion order, passing the
// path relative to c. A non-nil error from fn stops the walk.
func (c *Composite) Walk(fn func(path string, n Node) error) error {
	return c.walk("", fn)
}

func (c *Composite) walk(prefix string, fn func(string, Node) error) error {
	for _, n := range c.Children() {
		path := join(prefix, n.Name())
		if err := fn(path, n); err != nil {
			return err
		}
		switch n := n.(type) {
		case *Leaf:
		case *Composite:
			if err := n.walk(path, fn); err != nil {
				return err
			}
		default:
			panic(unknownNode(n))
		}
	}
	return nil
}

func (c *Composite) flatten() map[string]Node {
	out := make(map[string]Node)
	_ = c.walk("", func(path string, n Node) error {
		out[path] = n
		return nil
	})
	return out
}

// direct returns the direct child called name, or nil.
func (c *Composite) direct(name string) Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byName[name]
}

// Access returns an unbound transaction over the composite's fields.
func (c *Composite) Access() Accessor {
	return Accessor{sc: scope{query: c.query, prefix: c.prefix, path: c.name}}
}

// Get returns a transaction that fetches the composite's record.
func (c *Composite) Get() Getter {
	return c.Access().Get()
}

func (c *Composite) String() string {
	return fmt.Sprintf("composite %s (%d children)", c.name, len(c.Children()))
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// indexCache holds a lazily built path index. A build racing with
// invalidate is returned to its caller but not stored.
type indexCache struct {
	paths map[string]Node
	gen   uint64
	mu    sync.Mutex
}

func (ic *indexCache) load(build func() map[string]Node) map[string]Node {
	ic.mu.Lock()
	paths, gen := ic.paths, ic.gen
	ic.mu.Unlock()
	if paths != nil {
		return paths
	}
	paths = build()
	ic.mu.Lock()
	if ic.gen == gen {
		ic.paths = paths
	}
	ic.mu.Unlock()
	return paths
}

func (ic *indexCache) invalidate() {
	ic.mu.Lock()
	ic.paths = nil
	ic.gen++
	ic.mu.Unlock()
}

// built reports whether an index is cached.
func (ic *indexCache) built() bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.paths != nil
}
