// cmd/factload bulk-loads integer fact tuples from a PostgreSQL table
// into an in-memory Trie and reports the resulting cardinality and
// memory footprint. It is the bridge between externally stored fact
// tables and the in-memory structures the deductive runtime joins over.
//
// Usage:
//
//	factload -dsn "host=... user=..." -table edge -columns "src,dst" [-dump]
package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"factstore/config"
	"factstore/deepsize"
	"factstore/relation"
	"factstore/version"
)

func main() {
	cfg := config.Parse()
	if cfg.DSN == "" || cfg.Table == "" || cfg.Columns == "" {
		log.Fatal("factload requires -dsn, -table and -columns")
	}

	cols := strings.Split(cfg.Columns, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	arity := len(cols)

	log.Printf("%s", version.String())
	log.Printf("loading %d-column facts from %q", arity, cfg.Table)

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, cfg.DSN)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer conn.Close(ctx)

	trie, loaded, dups, err := load(ctx, conn, cfg.Table, cols)
	if err != nil {
		log.Fatalf("load: %v", err)
	}

	log.Printf("loaded %d rows: %d distinct tuples, %d duplicates", loaded, trie.Size(), dups)
	log.Printf("memory: %d bytes", deepsize.Of(trie))

	if cfg.Dump {
		fmt.Print(trie.Dump())
	}
}

func load(ctx context.Context, conn *pgx.Conn, table string, cols []string) (*relation.Trie, int, int, error) {
	start := time.Now()

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table)
	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	trie := relation.NewTrie(len(cols))
	tuple := make([]int32, len(cols))
	dests := make([]any, len(cols))
	for i := range dests {
		dests[i] = &tuple[i]
	}

	loaded, dups := 0, 0
	for rows.Next() {
		if err := rows.Scan(dests...); err != nil {
			return nil, loaded, dups, fmt.Errorf("scan row %d: %w", loaded+1, err)
		}
		if !trie.Insert(tuple) {
			dups++
		}
		loaded++
	}
	if err := rows.Err(); err != nil {
		return nil, loaded, dups, fmt.Errorf("read rows: %w", err)
	}

	log.Printf("scanned %d rows in %s", loaded, time.Since(start).Round(time.Millisecond))
	return trie, loaded, dups, nil
}
