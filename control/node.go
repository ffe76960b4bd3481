package control

import (
	"fmt"

	"github.com/TheLegendszs/v4l4j/errors"
)

// NodeKind tags the two node variants.
type NodeKind uint8

const (
	NodeLeaf NodeKind = iota + 1
	NodeComposite
)

func (k NodeKind) String() string {
	switch k {
	case NodeLeaf:
		return "leaf"
	case NodeComposite:
		return "composite"
	default:
		return fmt.Sprintf("NodeKind(%d)", uint8(k))
	}
}

// Node is a control: either a *Leaf or a *Composite. The set is closed;
// code walking a tree switches on the concrete type and treats anything
// else as a bug.
type Node interface {
	// Name is the node's own name, without any parent path.
	Name() string
	Kind() NodeKind
	// Parent returns the enclosing composite, or nil for a root.
	Parent() *Composite

	attach(parent *Composite) error
}

// validName reports whether name is a non-empty run of ASCII letters,
// digits, '_' and '-'. Dots separate path segments and cannot be escaped.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

func checkName(name string) error {
	if !validName(name) {
		return errors.New(errors.PhaseTree, errors.KindInvalidInput).
			Path(name).
			Detail("control names are ASCII letters, digits, '_' and '-'").
			Build()
	}
	return nil
}

// PathOf returns the dotted path of n from its root.
func PathOf(n Node) string {
	path := n.Name()
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Parent() == nil {
			break
		}
		path = p.Name() + "." + path
	}
	return path
}

func unknownNode(n Node) string {
	return fmt.Sprintf("control: unknown node type %T", n)
}
