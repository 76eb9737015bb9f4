// cmd/conctest exercises the concurrency contract of the relation
// structures: many goroutines inserting into one Trie, duplicate
// insertions racing for the newly-inserted flag, and readers running
// alongside writers.
//
// Usage: go run cmd/conctest/main.go [-workers N] [-tuples N] [-seed N]
package main

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"factstore/config"
	"factstore/relation"
)

func main() {
	fmt.Println("factstore concurrency test")
	fmt.Println("==========================")

	cfg := config.Parse()
	fmt.Printf("workers=%d tuples=%d seed=%d\n\n", cfg.Workers, cfg.Tuples, cfg.Seed)

	passed, failed := 0, 0
	for _, sc := range []struct {
		name string
		fn   func(*config.Config) bool
	}{
		{"Setup", scenarioSetup},
		{"Concurrent inserts", scenarioConcurrentInserts},
		{"Duplicate contention", scenarioDuplicateContention},
		{"Reads during writes", scenarioReadsDuringWrites},
	} {
		if sc.fn(cfg) {
			passed++
		} else {
			failed++
		}
	}

	fmt.Printf("\n%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// distinctPairs generates n distinct pairs, using a Trie itself as the
// dedup filter.
func distinctPairs(n int, seed int64) [][]int32 {
	rng := rand.New(rand.NewSource(seed))
	filter := relation.NewTrie(2)
	pairs := make([][]int32, 0, n)
	for len(pairs) < n {
		p := []int32{int32(rng.Intn(n)), int32(rng.Intn(n))}
		if filter.Insert(p) {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

func scenarioSetup(cfg *config.Config) bool {
	start := time.Now()
	t := relation.NewTrie(2)

	pairs := distinctPairs(cfg.Tuples, cfg.Seed)
	for _, p := range pairs {
		if !t.Insert(p) {
			return fail("Setup", "tuple (%d,%d) reported as duplicate", p[0], p[1])
		}
	}
	if t.Size() != cfg.Tuples {
		return fail("Setup", "size %d, expected %d", t.Size(), cfg.Tuples)
	}
	for _, p := range pairs {
		if !t.Contains(p) {
			return fail("Setup", "tuple (%d,%d) missing", p[0], p[1])
		}
	}
	return pass("Setup", fmt.Sprintf("inserted and verified %d tuples", cfg.Tuples), time.Since(start))
}

func scenarioConcurrentInserts(cfg *config.Config) bool {
	start := time.Now()
	t := relation.NewTrie(2)
	pairs := distinctPairs(cfg.Tuples, cfg.Seed+1)

	var wg sync.WaitGroup
	for g := 0; g < cfg.Workers; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := g; i < len(pairs); i += cfg.Workers {
				t.Insert(pairs[i])
			}
		}(g)
	}
	wg.Wait()

	if t.Size() != cfg.Tuples {
		return fail("Concurrent inserts", "size %d, expected %d", t.Size(), cfg.Tuples)
	}
	for _, p := range pairs {
		if !t.Contains(p) {
			return fail("Concurrent inserts", "tuple (%d,%d) missing", p[0], p[1])
		}
	}
	return pass("Concurrent inserts",
		fmt.Sprintf("%d workers, %d distinct tuples", cfg.Workers, cfg.Tuples), time.Since(start))
}

func scenarioDuplicateContention(cfg *config.Config) bool {
	start := time.Now()
	t := relation.NewTrie(2)
	pairs := distinctPairs(cfg.Tuples, cfg.Seed+2)

	// Every worker tries every tuple; the newly-inserted flag must fire
	// exactly once per tuple across all workers.
	var wg sync.WaitGroup
	var newCount atomic.Int64
	for g := 0; g < cfg.Workers; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, p := range pairs {
				if t.Insert(p) {
					newCount.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if n := newCount.Load(); n != int64(cfg.Tuples) {
		return fail("Duplicate contention", "%d insertions reported new, expected %d", n, cfg.Tuples)
	}
	if t.Size() != cfg.Tuples {
		return fail("Duplicate contention", "size %d, expected %d", t.Size(), cfg.Tuples)
	}
	return pass("Duplicate contention",
		fmt.Sprintf("%d workers × %d tuples, flag fired once each", cfg.Workers, cfg.Tuples),
		time.Since(start))
}

func scenarioReadsDuringWrites(cfg *config.Config) bool {
	start := time.Now()
	t := relation.NewTrie(2)
	pairs := distinctPairs(cfg.Tuples, cfg.Seed+3)

	var wg sync.WaitGroup
	var errCount atomic.Int64
	var inserted atomic.Int64

	// Writer: insert all pairs, bumping the published watermark.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, p := range pairs {
			t.Insert(p)
			inserted.Add(1)
		}
	}()

	// Readers: the last 100 tuples below the watermark must already be
	// visible. The size is not checked until the writer has finished.
	for g := 0; g < cfg.Workers; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for inserted.Load() < int64(len(pairs)) {
				n := inserted.Load()
				lo := n - 100
				if lo < 0 {
					lo = 0
				}
				for _, p := range pairs[lo:n] {
					if !t.Contains(p) {
						errCount.Add(1)
					}
				}
			}
		}()
	}
	wg.Wait()

	if errs := errCount.Load(); errs > 0 {
		return fail("Reads during writes", "%d completed insertions unobserved", errs)
	}
	if t.Size() != cfg.Tuples {
		return fail("Reads during writes", "final size %d, expected %d", t.Size(), cfg.Tuples)
	}
	return pass("Reads during writes",
		fmt.Sprintf("%d readers over %d insertions, no lost tuples", cfg.Workers, cfg.Tuples),
		time.Since(start))
}

func pass(name, detail string, d time.Duration) bool {
	fmt.Printf("[PASS] %s: %s (%dms)\n", name, detail, d.Milliseconds())
	return true
}

func fail(name, format string, args ...any) bool {
	fmt.Printf("[FAIL] %s: %s\n", name, fmt.Sprintf(format, args...))
	return false
}
