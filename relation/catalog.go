package relation

import (
	"fmt"
	"sort"
	"sync"

	"factstore/deepsize"
)

// Catalog manages the named fact tables of a database instance. It is
// the seam the surrounding runtime addresses relations through: tries
// are created, resolved and dropped by name, with tuple arity checked at
// the boundary.
//
// Concurrency: a sync.RWMutex guards the name table. Operations on a
// resolved *Trie follow that type's own contract.
type Catalog struct {
	mu        sync.RWMutex
	relations map[string]*Trie
}

// RelationDef describes one catalog entry.
type RelationDef struct {
	Name  string
	Arity int
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{relations: make(map[string]*Trie)}
}

// Create registers an empty relation under name.
func (c *Catalog) Create(name string, arity int) (*Trie, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.relations[name]; exists {
		return nil, &RelationExistsError{Name: name}
	}
	t := NewTrie(arity)
	c.relations[name] = t
	return t, nil
}

// Get resolves a relation by name.
func (c *Catalog) Get(name string) (*Trie, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.relations[name]
	return t, ok
}

// Drop removes a relation.
func (c *Catalog) Drop(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.relations[name]; !exists {
		return &RelationNotFoundError{Name: name}
	}
	delete(c.relations, name)
	return nil
}

// Insert adds a tuple to the named relation, checking arity at the
// boundary so a malformed tuple surfaces as an error rather than a
// panic from the core.
func (c *Catalog) Insert(name string, tuple []int32) (bool, error) {
	t, ok := c.Get(name)
	if !ok {
		return false, &RelationNotFoundError{Name: name}
	}
	if len(tuple) != t.Arity() {
		return false, &ArityMismatchError{Relation: name, Want: t.Arity(), Got: len(tuple)}
	}
	return t.Insert(tuple), nil
}

// List returns the catalog entries sorted by name.
func (c *Catalog) List() []RelationDef {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defs := make([]RelationDef, 0, len(c.relations))
	for name, t := range c.relations {
		defs = append(defs, RelationDef{Name: name, Arity: t.Arity()})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// RelationMemory reports the footprint of one relation.
type RelationMemory struct {
	Name      string
	Arity     int
	Tuples    int
	Bytes     int64
	SizeHuman string
}

// MemoryReport returns per-relation memory usage sorted by name, plus
// the total across all relations.
func (c *Catalog) MemoryReport() ([]RelationMemory, int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var report []RelationMemory
	var total int64
	for name, t := range c.relations {
		b := deepsize.Of(t)
		total += b
		report = append(report, RelationMemory{
			Name:      name,
			Arity:     t.Arity(),
			Tuples:    t.Size(),
			Bytes:     b,
			SizeHuman: humanBytes(b),
		})
	}
	sort.Slice(report, func(i, j int) bool { return report[i].Name < report[j].Name })
	return report, total
}

func humanBytes(b int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
