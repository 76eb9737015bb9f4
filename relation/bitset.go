package relation

import (
	"math/bits"
	"sync/atomic"
	"unsafe"
)

const (
	wordBits  = 64
	wordShift = 6
	wordMask  = wordBits - 1
)

// SparseBitSet stores a set of 32-bit keys at one bit per key. The low
// six bits of a key select a bit within a 64-bit word; the remaining bits
// address the word through a SparseMap. Words are allocated once and
// updated with atomic OR, so concurrent Set calls are safe and exactly
// one caller observes a given bit's 0→1 transition.
//
// The zero SparseBitSet is an empty set ready for use.
type SparseBitSet struct {
	words SparseMap[*atomic.Uint64]
	card  atomic.Int64 // cached population count, -1 when stale
}

// NewSparseBitSet returns an empty set.
func NewSparseBitSet() *SparseBitSet {
	return &SparseBitSet{}
}

// loadWord atomically reads a word slot. Slots hold single pointers, so
// the cast is sound.
func loadWord(slot **atomic.Uint64) *atomic.Uint64 {
	return (*atomic.Uint64)(atomic.LoadPointer((*unsafe.Pointer)(unsafe.Pointer(slot))))
}

// ensureWord returns the word for the given word-space key, installing a
// fresh zero word by compare-and-swap when absent. The loser of an
// install race adopts the winner's word.
func (s *SparseBitSet) ensureWord(wordKey uint32) *atomic.Uint64 {
	slot := s.words.ensureSlot(wordKey)
	p := (*unsafe.Pointer)(unsafe.Pointer(slot))
	if w := (*atomic.Uint64)(atomic.LoadPointer(p)); w != nil {
		return w
	}
	fresh := new(atomic.Uint64)
	if atomic.CompareAndSwapPointer(p, nil, unsafe.Pointer(fresh)) {
		return fresh
	}
	return (*atomic.Uint64)(atomic.LoadPointer(p))
}

// Test reports whether key is in the set.
func (s *SparseBitSet) Test(key uint32) bool {
	slot := s.words.slotRef(key >> wordShift)
	if slot == nil {
		return false
	}
	w := loadWord(slot)
	return w != nil && w.Load()&(1<<(key&wordMask)) != 0
}

// Set inserts key and reports whether it was newly inserted. Safe for
// concurrent use; of several racing setters of one key, exactly one
// observes true.
func (s *SparseBitSet) Set(key uint32) bool {
	w := s.ensureWord(key >> wordShift)
	mask := uint64(1) << (key & wordMask)
	old := w.Or(mask)
	if old&mask != 0 {
		return false
	}
	s.noteGrowth(1)
	return true
}

// noteGrowth bumps the cached cardinality, leaving a stale marker alone
// so the next Size recomputes.
func (s *SparseBitSet) noteGrowth(n int64) {
	for {
		c := s.card.Load()
		if c < 0 {
			return
		}
		if s.card.CompareAndSwap(c, c+n) {
			return
		}
	}
}

// Size returns the number of keys in the set. The count is cached and
// recomputed lazily after a Merge.
func (s *SparseBitSet) Size() int {
	if c := s.card.Load(); c >= 0 {
		return int(c)
	}
	var total int64
	for it := s.words.Iter(); it.Valid(); it.Next() {
		if w := it.Value(); w != nil {
			total += int64(bits.OnesCount64(w.Load()))
		}
	}
	s.card.Store(total)
	return int(total)
}

// Empty reports whether the set holds no keys.
func (s *SparseBitSet) Empty() bool { return s.Size() == 0 }

// Merge ORs every word of other into s and reports whether s grew.
// Requires external exclusion on both sets.
func (s *SparseBitSet) Merge(other *SparseBitSet) bool {
	grew := false
	for it := other.words.Iter(); it.Valid(); it.Next() {
		ow := it.Value()
		if ow == nil {
			continue
		}
		add := ow.Load()
		if add == 0 {
			continue
		}
		w := s.ensureWord(it.Key())
		if old := w.Or(add); old|add != old {
			grew = true
		}
	}
	if grew {
		s.card.Store(-1)
	}
	return grew
}

// Clone returns a deep copy. Requires external exclusion on s.
func (s *SparseBitSet) Clone() *SparseBitSet {
	c := &SparseBitSet{}
	s.words.cloneInto(&c.words, func(w *atomic.Uint64) *atomic.Uint64 {
		if w == nil {
			return nil
		}
		nw := new(atomic.Uint64)
		nw.Store(w.Load())
		return nw
	})
	c.card.Store(s.card.Load())
	return c
}

// MemoryUsage returns the bytes owned by the set, including the set
// struct and the word allocations.
func (s *SparseBitSet) MemoryUsage() int {
	total := int(unsafe.Sizeof(*s)) + s.words.nodesMemory()
	for it := s.words.Iter(); it.Valid(); it.Next() {
		if it.Value() != nil {
			total += int(unsafe.Sizeof(atomic.Uint64{}))
		}
	}
	return total
}

// DeepSize implements deepsize.Sizer.
func (s *SparseBitSet) DeepSize() int64 { return int64(s.MemoryUsage()) }

// BitSetIterator walks the keys of a SparseBitSet in ascending order.
// Each word is snapshotted when entered, so bits set in it afterwards may
// be skipped; bits observed remain observed.
type BitSetIterator struct {
	wit  MapIterator[*atomic.Uint64]
	rest uint64 // unconsumed bits of the current word
	cur  uint32
	ok   bool
}

// Valid reports whether the iterator is positioned on a key.
func (it *BitSetIterator) Valid() bool { return it.ok }

// Key returns the current key.
func (it *BitSetIterator) Key() uint32 { return it.cur }

// Next advances to the next key in ascending order.
func (it *BitSetIterator) Next() { it.advance() }

// advance pops the lowest remaining bit, moving to the next non-empty
// word when the current one is consumed.
func (it *BitSetIterator) advance() {
	for {
		if it.rest != 0 {
			b := bits.TrailingZeros64(it.rest)
			it.rest &^= 1 << uint(b)
			it.cur = it.wit.Key()<<wordShift | uint32(b)
			it.ok = true
			return
		}
		if !it.wit.Valid() {
			it.ok = false
			return
		}
		it.wit.Next()
		it.snapshot()
	}
}

// snapshot loads the current word's bits, if any.
func (it *BitSetIterator) snapshot() {
	it.rest = 0
	if !it.wit.Valid() {
		return
	}
	if w := it.wit.Value(); w != nil {
		it.rest = w.Load()
	}
}

// Iter returns an iterator over all keys in ascending order.
func (s *SparseBitSet) Iter() *BitSetIterator {
	it := &BitSetIterator{wit: s.words.Iter()}
	it.snapshot()
	it.advance()
	return it
}

// Find returns an iterator positioned at key if present, or an exhausted
// iterator.
func (s *SparseBitSet) Find(key uint32) *BitSetIterator {
	if !s.Test(key) {
		return &BitSetIterator{}
	}
	return s.LowerBound(key)
}

// LowerBound returns an iterator at the smallest key >= the given key, or
// an exhausted iterator.
func (s *SparseBitSet) LowerBound(key uint32) *BitSetIterator {
	it := &BitSetIterator{wit: s.words.LowerBound(key >> wordShift)}
	it.snapshot()
	if it.wit.Valid() && it.wit.Key() == key>>wordShift {
		it.rest &= ^uint64(0) << (key & wordMask)
	}
	it.advance()
	return it
}

// UpperBound returns an iterator at the smallest key strictly greater
// than the given key, or an exhausted iterator.
func (s *SparseBitSet) UpperBound(key uint32) *BitSetIterator {
	if key == ^uint32(0) {
		return &BitSetIterator{}
	}
	return s.LowerBound(key + 1)
}
