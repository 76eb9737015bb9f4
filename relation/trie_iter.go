package relation

// TrieIterator walks the tuples of a Trie in lexicographic order (each
// column compared by its unsigned image). It holds one map iterator per
// outer column and a bit-set iterator for the innermost one; when an
// inner level exhausts, the next outer entry is taken and the levels
// below reposition at their minimum.
//
// Iterators remain valid across concurrent insertions; tuples inserted
// after positioning may or may not be observed.
type TrieIterator struct {
	frames []MapIterator[*Trie] // one per outer column
	bits   *BitSetIterator      // innermost column
	tuple  []int32
	pinned []int32 // leading columns a range scan is restricted to
	ok     bool
}

func newTrieIterator(t *Trie) *TrieIterator {
	return &TrieIterator{
		frames: make([]MapIterator[*Trie], t.arity-1),
		tuple:  make([]int32, t.arity),
	}
}

// Valid reports whether the iterator is positioned on a tuple.
func (it *TrieIterator) Valid() bool { return it.ok }

// Tuple returns the current tuple. The slice is reused by Next; callers
// keeping it must copy.
func (it *TrieIterator) Tuple() []int32 { return it.tuple }

// Next advances to the next tuple in lexicographic order.
func (it *TrieIterator) Next() {
	if !it.ok {
		return
	}
	last := len(it.tuple) - 1
	it.bits.Next()
	if it.bits.Valid() {
		it.tuple[last] = int32(it.bits.Key())
		it.checkPin()
		return
	}
	for d := len(it.frames) - 1; d >= 0; d-- {
		fr := &it.frames[d]
		for fr.Next(); fr.Valid(); fr.Next() {
			c := fr.Value()
			if c != nil && it.descendMin(c, d+1) {
				it.tuple[d] = int32(fr.Key())
				it.checkPin()
				return
			}
		}
	}
	it.ok = false
}

// descendMin positions levels depth.. at the smallest tuple of the given
// subtrie. Reports false when the subtrie holds nothing (possible
// transiently during concurrent creation).
func (it *TrieIterator) descendMin(t *Trie, depth int) bool {
	if t.arity == 1 {
		b := t.bits.Iter()
		if !b.Valid() {
			return false
		}
		it.bits = b
		it.tuple[depth] = int32(b.Key())
		return true
	}
	for fr := t.nested.Iter(); fr.Valid(); fr.Next() {
		c := fr.Value()
		if c != nil && it.descendMin(c, depth+1) {
			it.tuple[depth] = int32(fr.Key())
			it.frames[depth] = fr
			return true
		}
	}
	return false
}

// seekLower positions levels depth.. at the smallest tuple >= tuple.
// When the outer level lands strictly above the target column, the
// levels below take their subtree minimum instead of continuing the
// recursive seek.
func (it *TrieIterator) seekLower(t *Trie, depth int, tuple []int32) bool {
	if t.arity == 1 {
		b := t.bits.LowerBound(uint32(tuple[depth]))
		if !b.Valid() {
			return false
		}
		it.bits = b
		it.tuple[depth] = int32(b.Key())
		return true
	}
	d := uint32(tuple[depth])
	for fr := t.nested.LowerBound(d); fr.Valid(); fr.Next() {
		c := fr.Value()
		if c == nil {
			continue
		}
		if fr.Key() == d {
			if it.seekLower(c, depth+1, tuple) {
				it.tuple[depth] = int32(fr.Key())
				it.frames[depth] = fr
				return true
			}
			continue
		}
		if it.descendMin(c, depth+1) {
			it.tuple[depth] = int32(fr.Key())
			it.frames[depth] = fr
			return true
		}
	}
	return false
}

// checkPin exhausts the iterator once the pinned leading columns of a
// range scan no longer match.
func (it *TrieIterator) checkPin() {
	it.ok = true
	for i, v := range it.pinned {
		if it.tuple[i] != v {
			it.ok = false
			return
		}
	}
}

// Iter returns an iterator over all tuples in lexicographic order.
func (t *Trie) Iter() *TrieIterator {
	it := newTrieIterator(t)
	it.ok = it.descendMin(t, 0)
	return it
}

// LowerBound returns an iterator at the smallest tuple >= tuple, or an
// exhausted iterator.
func (t *Trie) LowerBound(tuple []int32) *TrieIterator {
	t.checkArity(len(tuple))
	it := newTrieIterator(t)
	it.ok = it.seekLower(t, 0, tuple)
	return it
}

// UpperBound returns an iterator at the smallest tuple strictly greater
// than tuple, or an exhausted iterator. Equivalent to the lower bound of
// the tuple's lexicographic successor.
func (t *Trie) UpperBound(tuple []int32) *TrieIterator {
	t.checkArity(len(tuple))
	succ := make([]int32, len(tuple))
	copy(succ, tuple)
	i := len(succ) - 1
	for ; i >= 0; i-- {
		u := uint32(succ[i]) + 1
		succ[i] = int32(u)
		if u != 0 {
			break
		}
	}
	if i < 0 {
		// Tuple of all-maximum columns; nothing can follow it.
		it := newTrieIterator(t)
		return it
	}
	return t.LowerBound(succ)
}

// Boundaries returns an iterator over all tuples whose first level
// columns equal those of tuple, in lexicographic order. Level 0 scans
// the full set; level == arity matches at most one tuple.
func (t *Trie) Boundaries(tuple []int32, level int) *TrieIterator {
	t.checkArity(len(tuple))
	if level < 0 || level > t.arity {
		panic("relation: boundary level out of range")
	}
	if level == 0 {
		return t.Iter()
	}
	seek := make([]int32, t.arity)
	copy(seek, tuple[:level])
	it := t.LowerBound(seek)
	it.pinned = append([]int32(nil), tuple[:level]...)
	if it.ok {
		it.checkPin()
	}
	return it
}
