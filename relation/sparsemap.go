// Package relation provides the concurrent, index-addressable data
// structures backing in-memory fact tables: a radix-tree SparseMap from
// 32-bit keys to values, a bit-packed SparseBitSet, and a Trie of
// fixed-arity integer tuples supporting ordered iteration and prefix scans.
package relation

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

const (
	bitsPerLevel = 6
	fanout       = 1 << bitsPerLevel // children per inner node, slots per leaf
	digitMask    = fanout - 1
)

// inner is an interior node of the radix tree. Child slots hold either
// *inner or *leaf[V] depending on the level and are installed by
// compare-and-swap; a slot is never overwritten once set.
type inner struct {
	children [fanout]unsafe.Pointer
}

// leaf holds one contiguous block of fanout value slots. base is the key
// of slot 0; all keys stored in the leaf share its high bits. A slot
// holding the zero value of V counts as absent.
//
// Leaves of one map form a doubly linked chain in ascending base order.
// next is the authoritative direction; prev may lag behind during a
// concurrent splice.
type leaf[V comparable] struct {
	base   uint32
	next   unsafe.Pointer // *leaf[V]
	prev   unsafe.Pointer // *leaf[V]
	mu     sync.Mutex     // serializes generic slot installs
	values [fanout]V
}

// rootRef pairs the root node with its level count so readers observe
// both with a single atomic load. levels counts the inner levels above
// the leaf layer; the root spans keys [0, 2^(6*(levels+1))).
type rootRef struct {
	levels int
	node   unsafe.Pointer // *inner, or *leaf[V] when levels == 0
}

// SparseMap maps 32-bit keys to values of type V with memory proportional
// to the populated key regions. A key whose slot holds the zero value of V
// reads as absent: Get returns the zero value and iteration skips it, so
// Update(k, zero) is indistinguishable from never updating k.
//
// The zero SparseMap is an empty map ready for use. Concurrent Update
// calls are safe; Merge and Clone require external exclusion on both
// operands.
type SparseMap[V comparable] struct {
	root   unsafe.Pointer // *rootRef, nil while empty
	first  unsafe.Pointer // *leaf[V] with the smallest base, chain head
	growMu sync.Mutex     // serializes level growth
	linkMu sync.Mutex     // serializes leaf chain splices
}

// NewSparseMap returns an empty map.
func NewSparseMap[V comparable]() *SparseMap[V] {
	return &SparseMap[V]{}
}

func (m *SparseMap[V]) loadRoot() *rootRef {
	return (*rootRef)(atomic.LoadPointer(&m.root))
}

func (m *SparseMap[V]) firstLeaf() *leaf[V] {
	return (*leaf[V])(atomic.LoadPointer(&m.first))
}

// fits reports whether key lies within the span of a tree with the given
// number of inner levels.
func fits(key uint32, levels int) bool {
	return key>>(uint(levels+1)*bitsPerLevel) == 0
}

// digit extracts the radix digit indexing the child slot at a node with
// the given number of levels remaining below it.
func digit(key uint32, levels int) int {
	return int(key>>(uint(levels)*bitsPerLevel)) & digitMask
}

// Empty reports whether no key currently holds a non-zero value.
func (m *SparseMap[V]) Empty() bool {
	it := m.Iter()
	return !it.Valid()
}

// Get returns the value stored for key, or the zero value of V. It never
// modifies the map.
func (m *SparseMap[V]) Get(key uint32) V {
	var zero V
	lf := m.findLeaf(key)
	if lf == nil {
		return zero
	}
	return lf.values[key&digitMask]
}

// findLeaf locates the leaf covering key, or nil when that part of the
// key space has not been populated.
func (m *SparseMap[V]) findLeaf(key uint32) *leaf[V] {
	r := m.loadRoot()
	if r == nil || !fits(key, r.levels) {
		return nil
	}
	n := r.node
	for lvl := r.levels; lvl > 0; lvl-- {
		in := (*inner)(n)
		n = atomic.LoadPointer(&in.children[digit(key, lvl)])
		if n == nil {
			return nil
		}
	}
	return (*leaf[V])(n)
}

// Update stores value for key, growing the tree as needed, and returns a
// pointer to the slot. Slots never move, so the pointer stays valid for
// the lifetime of the map.
func (m *SparseMap[V]) Update(key uint32, value V) *V {
	lf := m.ensureLeaf(key)
	slot := &lf.values[key&digitMask]
	lf.mu.Lock()
	*slot = value
	lf.mu.Unlock()
	return slot
}

// ensureSlot returns the address of the slot for key, creating the path
// to it if necessary but leaving the slot itself untouched. Callers that
// need concurrency-safe slot updates (bit words, nested tries) perform
// their own atomic installs on the returned address.
func (m *SparseMap[V]) ensureSlot(key uint32) *V {
	lf := m.ensureLeaf(key)
	return &lf.values[key&digitMask]
}

// slotRef returns the address of the slot for key, or nil when the leaf
// covering key does not exist. It never inserts.
func (m *SparseMap[V]) slotRef(key uint32) *V {
	lf := m.findLeaf(key)
	if lf == nil {
		return nil
	}
	return &lf.values[key&digitMask]
}

// ensureLeaf walks the tree to the leaf covering key, creating inner
// nodes and the leaf on the way down. Child installs race via
// compare-and-swap: the loser discards its node and adopts the winner's.
func (m *SparseMap[V]) ensureLeaf(key uint32) *leaf[V] {
	r := m.rootFor(key)
	if r.levels == 0 {
		return (*leaf[V])(r.node)
	}
	n := r.node
	for lvl := r.levels; lvl > 0; lvl-- {
		in := (*inner)(n)
		idx := digit(key, lvl)
		child := atomic.LoadPointer(&in.children[idx])
		if child == nil {
			var fresh unsafe.Pointer
			if lvl == 1 {
				fresh = unsafe.Pointer(&leaf[V]{base: key &^ digitMask})
			} else {
				fresh = unsafe.Pointer(new(inner))
			}
			if atomic.CompareAndSwapPointer(&in.children[idx], nil, fresh) {
				child = fresh
				if lvl == 1 {
					m.spliceLeaf((*leaf[V])(fresh))
				}
			} else {
				child = atomic.LoadPointer(&in.children[idx])
			}
		}
		n = child
	}
	return (*leaf[V])(n)
}

// rootFor returns a root whose span covers key, growing the tree first
// when it does not.
func (m *SparseMap[V]) rootFor(key uint32) *rootRef {
	for {
		r := m.loadRoot()
		if r != nil && fits(key, r.levels) {
			return r
		}
		m.grow(key)
	}
}

// grow extends the tree upward until key fits, wrapping the current root
// as child 0 of each new root. The root span always starts at key 0, so
// the chain head stays valid across growth.
func (m *SparseMap[V]) grow(key uint32) {
	m.growMu.Lock()
	defer m.growMu.Unlock()

	r := m.loadRoot()
	if r == nil {
		levels := 0
		for !fits(key, levels) {
			levels++
		}
		var node unsafe.Pointer
		if levels == 0 {
			lf := &leaf[V]{base: key &^ digitMask}
			node = unsafe.Pointer(lf)
			atomic.StorePointer(&m.first, node)
		} else {
			node = unsafe.Pointer(new(inner))
		}
		atomic.StorePointer(&m.root, unsafe.Pointer(&rootRef{levels: levels, node: node}))
		return
	}

	levels, node := r.levels, r.node
	for !fits(key, levels) {
		in := new(inner)
		in.children[0] = node
		node = unsafe.Pointer(in)
		levels++
	}
	if levels != r.levels {
		atomic.StorePointer(&m.root, unsafe.Pointer(&rootRef{levels: levels, node: node}))
	}
}

// spliceLeaf links a freshly installed leaf into the chain. Splices are
// serialized by linkMu; all link stores are atomic so lock-free readers
// following next never observe a torn chain.
func (m *SparseMap[V]) spliceLeaf(lf *leaf[V]) {
	m.linkMu.Lock()
	defer m.linkMu.Unlock()

	var pred *leaf[V]
	cur := m.firstLeaf()
	for cur != nil && cur.base < lf.base {
		pred = cur
		cur = (*leaf[V])(atomic.LoadPointer(&cur.next))
	}
	atomic.StorePointer(&lf.next, unsafe.Pointer(cur))
	atomic.StorePointer(&lf.prev, unsafe.Pointer(pred))
	if pred == nil {
		atomic.StorePointer(&m.first, unsafe.Pointer(lf))
	} else {
		atomic.StorePointer(&pred.next, unsafe.Pointer(lf))
	}
	if cur != nil {
		atomic.StorePointer(&cur.prev, unsafe.Pointer(lf))
	}
}

// Merge inserts every present entry of other into m; on key conflicts the
// value from other wins. Requires external exclusion on both maps. The
// chain head is maintained per splice, so a merge that introduces a new
// minimum leaf refreshes it.
func (m *SparseMap[V]) Merge(other *SparseMap[V]) {
	for it := other.Iter(); it.Valid(); it.Next() {
		m.Update(it.Key(), it.Value())
	}
}

// Clone returns a deep copy of the map. Requires external exclusion on m.
func (m *SparseMap[V]) Clone() *SparseMap[V] {
	c := &SparseMap[V]{}
	m.cloneInto(c, func(v V) V { return v })
	return c
}

// cloneInto deep-copies the tree into the empty map c, rewriting each
// slot through transform. Nested owning values (child tries, bit words)
// clone themselves there.
func (m *SparseMap[V]) cloneInto(c *SparseMap[V], transform func(V) V) {
	r := m.loadRoot()
	if r == nil {
		return
	}
	node := cloneNode[V](r.node, r.levels, transform)
	c.root = unsafe.Pointer(&rootRef{levels: r.levels, node: node})

	// Rebuild the leaf chain by an in-order walk of the copy.
	var prev *leaf[V]
	var relink func(n unsafe.Pointer, levels int)
	relink = func(n unsafe.Pointer, levels int) {
		if n == nil {
			return
		}
		if levels == 0 {
			lf := (*leaf[V])(n)
			if prev == nil {
				c.first = unsafe.Pointer(lf)
			} else {
				prev.next = unsafe.Pointer(lf)
				lf.prev = unsafe.Pointer(prev)
			}
			prev = lf
			return
		}
		in := (*inner)(n)
		for i := 0; i < fanout; i++ {
			relink(in.children[i], levels-1)
		}
	}
	relink(node, r.levels)
}

func cloneNode[V comparable](n unsafe.Pointer, levels int, transform func(V) V) unsafe.Pointer {
	if n == nil {
		return nil
	}
	if levels == 0 {
		src := (*leaf[V])(n)
		dst := &leaf[V]{base: src.base}
		var zero V
		for i := 0; i < fanout; i++ {
			if v := src.values[i]; v != zero {
				dst.values[i] = transform(v)
			}
		}
		return unsafe.Pointer(dst)
	}
	src := (*inner)(n)
	dst := new(inner)
	for i := 0; i < fanout; i++ {
		dst.children[i] = cloneNode[V](src.children[i], levels-1, transform)
	}
	return unsafe.Pointer(dst)
}

// MemoryUsage returns the bytes owned by the map, including the map
// struct itself.
func (m *SparseMap[V]) MemoryUsage() int {
	return int(unsafe.Sizeof(*m)) + m.nodesMemory()
}

// nodesMemory returns the bytes of all tree nodes, excluding the owning
// struct and anything the slot values point at.
func (m *SparseMap[V]) nodesMemory() int {
	r := m.loadRoot()
	if r == nil {
		return 0
	}
	return int(unsafe.Sizeof(*r)) + nodeMemory[V](r.node, r.levels)
}

func nodeMemory[V comparable](n unsafe.Pointer, levels int) int {
	if n == nil {
		return 0
	}
	if levels == 0 {
		return int(unsafe.Sizeof(leaf[V]{}))
	}
	in := (*inner)(n)
	total := int(unsafe.Sizeof(*in))
	for i := 0; i < fanout; i++ {
		total += nodeMemory[V](atomic.LoadPointer(&in.children[i]), levels-1)
	}
	return total
}

// DeepSize implements deepsize.Sizer. Reflection cannot follow the
// unsafe.Pointer links between nodes, so the map reports its own size.
func (m *SparseMap[V]) DeepSize() int64 {
	return int64(m.MemoryUsage())
}
