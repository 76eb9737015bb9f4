package relation

import (
	"fmt"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/xlab/treeprint"
)

// Dump renders the internal radix-tree layout with entries in ascending
// key order. Debugging aid only; the exact shape is not part of the
// contract beyond showing every present entry.
func (m *SparseMap[V]) Dump() string {
	tree := treeprint.New()
	r := m.loadRoot()
	if r == nil {
		tree.SetValue("sparse map (empty)")
		return tree.String()
	}
	tree.SetValue(fmt.Sprintf("sparse map (levels=%d)", r.levels))
	dumpNode[V](tree, r.node, r.levels)
	return tree.String()
}

func dumpNode[V comparable](tree treeprint.Tree, n unsafe.Pointer, levels int) {
	if n == nil {
		return
	}
	if levels == 0 {
		lf := (*leaf[V])(n)
		var zero V
		var b strings.Builder
		fmt.Fprintf(&b, "leaf base=%d [", lf.base)
		sep := ""
		for i := 0; i < fanout; i++ {
			if lf.values[i] == zero {
				continue
			}
			fmt.Fprintf(&b, "%s(%d,%v)", sep, lf.base+uint32(i), lf.values[i])
			sep = " "
		}
		b.WriteString("]")
		tree.AddNode(b.String())
		return
	}
	in := (*inner)(n)
	for i := 0; i < fanout; i++ {
		c := atomic.LoadPointer(&in.children[i])
		if c == nil {
			continue
		}
		dumpNode[V](tree.AddBranch(fmt.Sprintf("[%d]", i)), c, levels-1)
	}
}

// Dump renders the set's words with keys in ascending order.
func (s *SparseBitSet) Dump() string {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("sparse bit set (size=%d)", s.Size()))
	for it := s.words.Iter(); it.Valid(); it.Next() {
		w := it.Value()
		if w == nil {
			continue
		}
		bitsOf := w.Load()
		if bitsOf == 0 {
			continue
		}
		branch := tree.AddBranch(fmt.Sprintf("word %d", it.Key()))
		base := it.Key() << wordShift
		for b := 0; b < wordBits; b++ {
			if bitsOf&(1<<uint(b)) != 0 {
				branch.AddNode(fmt.Sprintf("%d", base|uint32(b)))
			}
		}
	}
	return tree.String()
}

// Dump renders the trie with tuples in lexicographic order, one branch
// per outer column value.
func (t *Trie) Dump() string {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("trie arity=%d size=%d", t.arity, t.Size()))
	t.dumpInto(tree)
	return tree.String()
}

func (t *Trie) dumpInto(tree treeprint.Tree) {
	if t.arity == 1 {
		var b strings.Builder
		b.WriteString("{")
		sep := ""
		for it := t.bits.Iter(); it.Valid(); it.Next() {
			fmt.Fprintf(&b, "%s%d", sep, int32(it.Key()))
			sep = " "
		}
		b.WriteString("}")
		tree.AddNode(b.String())
		return
	}
	for it := t.nested.Iter(); it.Valid(); it.Next() {
		c := it.Value()
		if c == nil {
			continue
		}
		c.dumpInto(tree.AddBranch(fmt.Sprintf("%d", int32(it.Key()))))
	}
}
