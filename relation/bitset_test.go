package relation

import (
	"math/rand"
	"sort"
	"testing"
)

// collectBits drains a bit-set iterator into a slice of keys.
func collectBits(it *BitSetIterator) []uint32 {
	var out []uint32
	for ; it.Valid(); it.Next() {
		out = append(out, it.Key())
	}
	return out
}

func TestSparseBitSet_Basic(t *testing.T) {
	s := NewSparseBitSet()

	for _, k := range []uint32{12, 120, 84} {
		if s.Test(k) {
			t.Errorf("Test(%d) on empty set", k)
		}
	}

	s.Set(12)
	if !s.Test(12) || s.Test(120) || s.Test(84) {
		t.Error("membership wrong after Set(12)")
	}

	s.Set(120)
	if !s.Test(12) || !s.Test(120) || s.Test(84) {
		t.Error("membership wrong after Set(120)")
	}

	s.Set(84)
	if !s.Test(12) || !s.Test(120) || !s.Test(84) {
		t.Error("membership wrong after Set(84)")
	}
}

func TestSparseBitSet_SetReportsTransition(t *testing.T) {
	s := NewSparseBitSet()
	if !s.Set(3) {
		t.Error("first Set(3) = false, want true")
	}
	if s.Set(3) {
		t.Error("second Set(3) = true, want false")
	}
}

func TestSparseBitSet_Stress(t *testing.T) {
	const n = 10000
	rng := rand.New(rand.NewSource(7))

	s := NewSparseBitSet()
	ref := make(map[uint32]bool, n)
	for len(ref) < n {
		k := uint32(rng.Intn(n * 10))
		if ref[k] {
			continue
		}
		ref[k] = true
		s.Set(k)
		if !s.Test(k) {
			t.Fatalf("Test(%d) false right after Set", k)
		}
	}

	for i := uint32(0); i < n*10; i++ {
		if s.Test(i) != ref[i] {
			t.Fatalf("Test(%d) = %v, want %v", i, s.Test(i), ref[i])
		}
	}
}

func TestSparseBitSet_Iterator(t *testing.T) {
	s := NewSparseBitSet()

	if got := collectBits(s.Iter()); len(got) != 0 {
		t.Fatalf("iter over empty set yielded %v", got)
	}

	s.Set(12)
	if got := collectBits(s.Iter()); len(got) != 1 || got[0] != 12 {
		t.Fatalf("iter = %v, want [12]", got)
	}

	s.Set(12)
	s.Set(120)
	if got := collectBits(s.Iter()); len(got) != 2 || got[0] != 12 || got[1] != 120 {
		t.Fatalf("iter = %v, want [12 120]", got)
	}

	s.Set(1234)
	if got := collectBits(s.Iter()); len(got) != 3 || got[2] != 1234 {
		t.Fatalf("iter = %v, want [12 120 1234]", got)
	}
}

func TestSparseBitSet_IteratorStress(t *testing.T) {
	const rounds = 200
	rng := rand.New(rand.NewSource(11))

	for j := 0; j < rounds; j++ {
		s := NewSparseBitSet()
		ref := make(map[uint32]bool)
		for len(ref) < j {
			k := uint32(rng.Intn(rounds * 10))
			if ref[k] {
				continue
			}
			ref[k] = true
			s.Set(k)
		}

		want := make([]uint32, 0, len(ref))
		for k := range ref {
			want = append(want, k)
		}
		sort.Slice(want, func(a, b int) bool { return want[a] < want[b] })

		got := collectBits(s.Iter())
		if len(got) != len(want) {
			t.Fatalf("round %d: iter yielded %d keys, want %d", j, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("round %d: key %d = %d, want %d", j, i, got[i], want[i])
			}
		}
	}
}

func TestSparseBitSet_Find(t *testing.T) {
	s := NewSparseBitSet()

	for _, k := range []uint32{1, 12, 1400} {
		if it := s.Find(k); it.Valid() {
			t.Errorf("Find(%d) on empty set is valid", k)
		}
	}

	s.Set(1400)

	if it := s.Find(1); it.Valid() {
		t.Error("Find(1) valid, want end")
	}
	it := s.Find(1400)
	if !it.Valid() || it.Key() != 1400 {
		t.Fatalf("Find(1400) valid=%v key=%d, want 1400", it.Valid(), it.Key())
	}

	s.Set(12)

	it = s.Find(12)
	if !it.Valid() || it.Key() != 12 {
		t.Fatalf("Find(12) valid=%v key=%d, want 12", it.Valid(), it.Key())
	}
	it.Next()
	if !it.Valid() || it.Key() != 1400 {
		t.Fatalf("Find(12).Next() valid=%v key=%d, want 1400", it.Valid(), it.Key())
	}
}

func TestSparseBitSet_Size(t *testing.T) {
	s := NewSparseBitSet()
	if s.Size() != 0 {
		t.Errorf("empty Size = %d", s.Size())
	}
	s.Set(3)
	if s.Size() != 1 {
		t.Errorf("Size = %d, want 1", s.Size())
	}
	s.Set(5)
	if s.Size() != 2 {
		t.Errorf("Size = %d, want 2", s.Size())
	}
	s.Set(3)
	if s.Size() != 2 {
		t.Errorf("Size after duplicate = %d, want 2", s.Size())
	}
	s.Set(1000)
	if s.Size() != 3 {
		t.Errorf("Size = %d, want 3", s.Size())
	}
}

func TestSparseBitSet_CloneAndMerge(t *testing.T) {
	a := NewSparseBitSet()
	b := NewSparseBitSet()
	c := NewSparseBitSet()

	for _, k := range []uint32{3, 4, 5} {
		a.Set(k)
	}
	for _, k := range []uint32{10000000, 10000001, 10000002} {
		b.Set(k)
	}
	for _, k := range []uint32{3, 7, 10000000, 10000007} {
		c.Set(k)
	}

	m := a.Clone()
	if m.Size() != 3 {
		t.Fatalf("clone Size = %d, want 3", m.Size())
	}
	for _, k := range collectBits(m.Iter()) {
		if !a.Test(k) {
			t.Errorf("clone holds %d, absent from source", k)
		}
	}

	if m.Merge(a) {
		t.Error("merging a subset reported growth")
	}
	if m.Size() != 3 {
		t.Fatalf("Size after self-merge = %d, want 3", m.Size())
	}

	if !m.Merge(b) {
		t.Error("merge with disjoint set reported no growth")
	}
	if m.Size() != 6 {
		t.Fatalf("Size = %d, want 6", m.Size())
	}

	if !m.Merge(c) {
		t.Error("merge with overlapping set reported no growth")
	}
	if m.Size() != 8 {
		t.Fatalf("Size = %d, want 8", m.Size())
	}
	for _, k := range collectBits(m.Iter()) {
		if !a.Test(k) && !b.Test(k) && !c.Test(k) {
			t.Errorf("merged set holds %d, absent from all sources", k)
		}
	}

	// The clone is independent of its source.
	if a.Size() != 3 {
		t.Errorf("source Size = %d after merges into clone, want 3", a.Size())
	}
}

func TestSparseBitSet_Bounds(t *testing.T) {
	s := NewSparseBitSet()
	for i := 5; i < 10; i++ {
		s.Set(uint32(i * 100))
	}
	ref := []uint32{500, 600, 700, 800, 900}

	for i := 0; i < 30; i++ {
		probe := uint32(i * 50)

		var wantLB *uint32
		for _, k := range ref {
			if k >= probe {
				wantLB = &k
				break
			}
		}
		lb := s.LowerBound(probe)
		if (wantLB == nil) != !lb.Valid() {
			t.Fatalf("LowerBound(%d) valid=%v, want present=%v", probe, lb.Valid(), wantLB != nil)
		}
		if wantLB != nil && lb.Key() != *wantLB {
			t.Fatalf("LowerBound(%d) = %d, want %d", probe, lb.Key(), *wantLB)
		}

		var wantUB *uint32
		for _, k := range ref {
			if k > probe {
				wantUB = &k
				break
			}
		}
		ub := s.UpperBound(probe)
		if (wantUB == nil) != !ub.Valid() {
			t.Fatalf("UpperBound(%d) valid=%v, want present=%v", probe, ub.Valid(), wantUB != nil)
		}
		if wantUB != nil && ub.Key() != *wantUB {
			t.Fatalf("UpperBound(%d) = %d, want %d", probe, ub.Key(), *wantUB)
		}
	}
}
