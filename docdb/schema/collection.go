package schema

import (
	"github.com/ministore/docdb/docdb/errs"
	"github.com/ministore/docdb/docdb/textutil"
)

// Collection is an ordered set of sibling nodes keyed by normalized name.
// It only accepts children of one kind.
type Collection struct {
	nodeBase
	kind    Kind
	accepts Kind
	order   []Node
	byKey   map[string]Node
}

func newCollection(kind Kind) *Collection {
	return &Collection{
		kind:    kind,
		accepts: childKind[kind],
		byKey:   make(map[string]Node),
	}
}

func (c *Collection) Kind() Kind { return c.kind }

// Accepts returns the kind of the children this collection holds.
func (c *Collection) Accepts() Kind { return c.accepts }

func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Nodes returns the children in order.
func (c *Collection) Nodes() []Node {
	if c == nil {
		return nil
	}
	out := make([]Node, len(c.order))
	copy(out, c.order)
	return out
}

// Get looks a child up by name; the name is normalized first.
func (c *Collection) Get(name string) Node {
	if c == nil {
		return nil
	}
	return c.byKey[textutil.NormalizeName(name)]
}

func (c *Collection) Has(name string) bool { return c.Get(name) != nil }

// Add appends n. It fails when n has the wrong kind or when a sibling
// already owns its normalized name.
func (c *Collection) Add(n Node) error {
	if n.Kind() != c.accepts {
		return errs.Newf(errs.ErrInvalidChildType, "%s cannot hold a %s", c.kind, n.Kind())
	}
	key := KeyOf(n)
	if _, dup := c.byKey[key]; dup {
		return errs.Newf(errs.ErrDuplicateName, "%s %q already exists", n.Kind(), NameOf(n)).WithField(NameOf(n))
	}
	if p := n.base().parent; p != nil {
		if pc, ok := p.(*Collection); ok {
			pc.detach(n)
		}
	}
	n.base().parent = c
	c.order = append(c.order, n)
	c.byKey[key] = n
	touch(c)
	return nil
}

// Remove detaches the named child and returns it, or nil when absent.
func (c *Collection) Remove(name string) Node {
	n := c.Get(name)
	if n == nil {
		return nil
	}
	c.detach(n)
	touch(c)
	return n
}

// Move places the named child at position pos (0-based, clamped).
func (c *Collection) Move(name string, pos int) error {
	n := c.Get(name)
	if n == nil {
		return errs.Newf(errs.ErrNotFound, "%s %q not found", c.accepts, name)
	}
	i := c.position(n)
	c.order = append(c.order[:i], c.order[i+1:]...)
	if pos < 0 {
		pos = 0
	}
	if pos > len(c.order) {
		pos = len(c.order)
	}
	c.order = append(c.order[:pos], append([]Node{n}, c.order[pos:]...)...)
	touch(c)
	return nil
}

func (c *Collection) position(n Node) int {
	for i, m := range c.order {
		if m == n {
			return i
		}
	}
	return -1
}

func (c *Collection) detach(n Node) {
	if i := c.position(n); i >= 0 {
		c.order = append(c.order[:i], c.order[i+1:]...)
	}
	for k, m := range c.byKey {
		if m == n {
			delete(c.byKey, k)
		}
	}
	n.base().parent = nil
}

// rename moves n from its old key to the normalized form of newName.
func (c *Collection) rename(n Node, newName string) error {
	key := textutil.NormalizeName(newName)
	if other, ok := c.byKey[key]; ok && other != n {
		return errs.Newf(errs.ErrDuplicateName, "%s %q already exists", n.Kind(), newName).WithField(newName)
	}
	for k, m := range c.byKey {
		if m == n {
			delete(c.byKey, k)
		}
	}
	c.byKey[key] = n
	return nil
}

// rekey rebuilds the name index from the current node names.
func (c *Collection) rekey() error {
	byKey := make(map[string]Node, len(c.order))
	for _, n := range c.order {
		key := KeyOf(n)
		if _, dup := byKey[key]; dup {
			return errs.Newf(errs.ErrDuplicateName, "%s %q already exists", n.Kind(), NameOf(n)).WithField(NameOf(n))
		}
		byKey[key] = n
	}
	c.byKey = byKey
	return nil
}

func nodesOf[T Node](c *Collection) []T {
	if c == nil {
		return nil
	}
	out := make([]T, 0, len(c.order))
	for _, n := range c.order {
		if t, ok := n.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
