// cmd/memcalc reports the measured memory cost per stored tuple for the
// relation structures across workload shapes, next to a modelled
// map[tuple]struct{} baseline.
//
// Fact workloads differ wildly in key density; the radix layout pays for
// 64-slot blocks whether one or sixty-four keys land in them, so the
// per-tuple cost is density-dependent in a way a hash map's is not.
//
// Usage: go run cmd/memcalc/main.go
package main

import (
	"fmt"
	"math/rand"

	"factstore/relation"
)

// ---------------------------------------------------------------------------
// Go map baseline model (64-bit)
// ---------------------------------------------------------------------------

const (
	// Per entry in map[[2]int32]struct{}: key(8) + tophash(1) amortised
	// with bucket struct overhead (overflow ptr, padding, 6.5/8 load
	// factor) ≈ 26 bytes/entry.
	mapEntryCost = 26

	// map header.
	mapHeaderCost = 48
)

func mapBaseline(tuples int) int {
	return mapHeaderCost + tuples*mapEntryCost
}

// ---------------------------------------------------------------------------
// Workload shapes
// ---------------------------------------------------------------------------

type workload struct {
	name string
	gen  func(n int) [][]int32
}

func workloads() []workload {
	return []workload{
		{
			// Consecutive keys in both columns: keys pack into as few
			// leaf blocks and bit words as the square allows.
			name: "dense square",
			gen: func(n int) [][]int32 {
				side := 1
				for side*side < n {
					side++
				}
				out := make([][]int32, 0, n)
				for i := 0; i < side && len(out) < n; i++ {
					for j := 0; j < side && len(out) < n; j++ {
						out = append(out, []int32{int32(i), int32(j)})
					}
				}
				return out
			},
		},
		{
			// Random keys over a 10x oversized domain: blocks stay
			// mostly empty.
			name: "sparse random",
			gen: func(n int) [][]int32 {
				rng := rand.New(rand.NewSource(7))
				filter := relation.NewTrie(2)
				out := make([][]int32, 0, n)
				for len(out) < n {
					p := []int32{int32(rng.Intn(n * 10)), int32(rng.Intn(n * 10))}
					if filter.Insert(p) {
						out = append(out, p)
					}
				}
				return out
			},
		},
		{
			// Few outer values, dense inner runs: the shape of a
			// foreign-key join column.
			name: "clustered",
			gen: func(n int) [][]int32 {
				const groups = 64
				out := make([][]int32, 0, n)
				for i := 0; len(out) < n; i++ {
					out = append(out, []int32{int32(i % groups), int32(i / groups)})
				}
				return out
			},
		},
	}
}

// ---------------------------------------------------------------------------
// Report
// ---------------------------------------------------------------------------

func main() {
	fmt.Println("factstore memory cost per tuple")
	fmt.Println("===============================")

	const tuples = 100_000

	fmt.Printf("%-14s %12s %12s %12s %12s\n",
		"workload", "trie bytes", "B/tuple", "map bytes", "B/tuple")

	for _, w := range workloads() {
		data := w.gen(tuples)

		t := relation.NewTrie(2)
		for _, p := range data {
			t.Insert(p)
		}

		trieBytes := t.MemoryUsage()
		mapBytes := mapBaseline(len(data))

		fmt.Printf("%-14s %12d %12.1f %12d %12.1f\n",
			w.name,
			trieBytes, float64(trieBytes)/float64(len(data)),
			mapBytes, float64(mapBytes)/float64(len(data)))
	}

	fmt.Println()
	fmt.Println("The map baseline is modelled, not measured; treat it as a floor.")
	fmt.Println("Trie figures come from MemoryUsage() on the populated structure.")
}
