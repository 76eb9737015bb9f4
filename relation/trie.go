package relation

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Trie stores a set of fixed-arity tuples of signed 32-bit domain values.
// The first column of a tuple indexes a SparseMap of nested tries one
// arity smaller; the recursion bottoms out in a SparseBitSet packing the
// innermost column at one bit per value. Columns are ordered by their
// unsigned 32-bit image.
//
// Concurrent Insert calls are safe: of several inserters racing on one
// tuple, exactly one observes true. InsertAll and Clone require external
// exclusion on both operands.
type Trie struct {
	arity  int
	bits   *SparseBitSet     // set for arity == 1
	nested *SparseMap[*Trie] // set for arity > 1
	size   atomic.Int64      // arity > 1: cached tuple count, -1 when stale
}

// NewTrie returns an empty trie for tuples of the given arity.
func NewTrie(arity int) *Trie {
	if arity < 1 {
		panic(fmt.Sprintf("relation: trie arity %d out of range", arity))
	}
	t := &Trie{arity: arity}
	if arity == 1 {
		t.bits = NewSparseBitSet()
	} else {
		t.nested = NewSparseMap[*Trie]()
	}
	return t
}

// Arity returns the number of columns in the trie's tuples.
func (t *Trie) Arity() int { return t.arity }

func (t *Trie) checkArity(n int) {
	if n != t.arity {
		panic(fmt.Sprintf("relation: tuple arity %d does not match trie arity %d", n, t.arity))
	}
}

// child returns the nested trie for the given first-column value, or nil.
// The slot is read atomically so lookups are safe alongside insertions.
func (t *Trie) child(d uint32) *Trie {
	slot := t.nested.slotRef(d)
	if slot == nil {
		return nil
	}
	return (*Trie)(atomic.LoadPointer((*unsafe.Pointer)(unsafe.Pointer(slot))))
}

// ensureChild returns the nested trie for the given first-column value,
// installing a fresh one by compare-and-swap when absent. The loser of an
// install race discards its trie and adopts the winner's.
func (t *Trie) ensureChild(d uint32) *Trie {
	slot := t.nested.ensureSlot(d)
	p := (*unsafe.Pointer)(unsafe.Pointer(slot))
	if c := (*Trie)(atomic.LoadPointer(p)); c != nil {
		return c
	}
	fresh := NewTrie(t.arity - 1)
	if atomic.CompareAndSwapPointer(p, nil, unsafe.Pointer(fresh)) {
		return fresh
	}
	return (*Trie)(atomic.LoadPointer(p))
}

// Contains reports whether the tuple is in the set.
func (t *Trie) Contains(tuple []int32) bool {
	t.checkArity(len(tuple))
	for t.arity > 1 {
		c := t.child(uint32(tuple[0]))
		if c == nil {
			return false
		}
		t, tuple = c, tuple[1:]
	}
	return t.bits.Test(uint32(tuple[0]))
}

// Insert adds the tuple to the set and reports whether it was newly
// inserted. Safe for concurrent use.
func (t *Trie) Insert(tuple []int32) bool {
	t.checkArity(len(tuple))
	return t.insert(tuple)
}

func (t *Trie) insert(tuple []int32) bool {
	if t.arity == 1 {
		return t.bits.Set(uint32(tuple[0]))
	}
	added := t.ensureChild(uint32(tuple[0])).insert(tuple[1:])
	if added {
		t.noteInsert()
	}
	return added
}

// noteInsert bumps the cached size, leaving a stale marker alone so the
// next Size recomputes.
func (t *Trie) noteInsert() {
	for {
		s := t.size.Load()
		if s < 0 {
			return
		}
		if t.size.CompareAndSwap(s, s+1) {
			return
		}
	}
}

// Size returns the number of distinct tuples. The count is cached per
// node and recomputed lazily after an InsertAll.
func (t *Trie) Size() int {
	if t.arity == 1 {
		return t.bits.Size()
	}
	if s := t.size.Load(); s >= 0 {
		return int(s)
	}
	var total int64
	for it := t.nested.Iter(); it.Valid(); it.Next() {
		if c := it.Value(); c != nil {
			total += int64(c.Size())
		}
	}
	t.size.Store(total)
	return int(total)
}

// Empty reports whether the set holds no tuples.
func (t *Trie) Empty() bool { return t.Size() == 0 }

// InsertAll adds every tuple of other, fusing matching subtries rather
// than walking tuples one by one. Requires external exclusion on both
// tries.
func (t *Trie) InsertAll(other *Trie) {
	t.checkArity(other.arity)
	if t.arity == 1 {
		t.bits.Merge(other.bits)
		return
	}
	for it := other.nested.Iter(); it.Valid(); it.Next() {
		oc := it.Value()
		if oc == nil {
			continue
		}
		t.ensureChild(it.Key()).InsertAll(oc)
	}
	t.size.Store(-1)
}

// Clone returns a deep copy. Requires external exclusion on t.
func (t *Trie) Clone() *Trie {
	c := &Trie{arity: t.arity}
	if t.arity == 1 {
		c.bits = t.bits.Clone()
		return c
	}
	c.nested = NewSparseMap[*Trie]()
	t.nested.cloneInto(c.nested, func(n *Trie) *Trie {
		if n == nil {
			return nil
		}
		return n.Clone()
	})
	c.size.Store(t.size.Load())
	return c
}

// MemoryUsage returns the bytes owned by the trie, including the trie
// struct and all nested structures.
func (t *Trie) MemoryUsage() int {
	total := int(unsafe.Sizeof(*t))
	if t.arity == 1 {
		return total + t.bits.MemoryUsage()
	}
	total += int(unsafe.Sizeof(*t.nested)) + t.nested.nodesMemory()
	for it := t.nested.Iter(); it.Valid(); it.Next() {
		if c := it.Value(); c != nil {
			total += c.MemoryUsage()
		}
	}
	return total
}

// DeepSize implements deepsize.Sizer. Reflection cannot follow the
// unsafe.Pointer links between nodes, so the trie reports its own size.
func (t *Trie) DeepSize() int64 { return int64(t.MemoryUsage()) }
