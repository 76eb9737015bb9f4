package config

import (
	"flag"
	"os"
	"strconv"
)

type Config struct {
	DSN     string
	Table   string
	Columns string
	Workers int
	Tuples  int
	Seed    int64
	Dump    bool
}

func Parse() *Config {
	cfg := &Config{}
	flag.StringVar(&cfg.DSN, "dsn", envStr("FACTSTORE_DSN", ""), "PostgreSQL connection string for fact loading")
	flag.StringVar(&cfg.Table, "table", envStr("FACTSTORE_TABLE", ""), "source table holding fact tuples")
	flag.StringVar(&cfg.Columns, "columns", envStr("FACTSTORE_COLUMNS", ""), "comma-separated integer columns, outermost first")
	flag.IntVar(&cfg.Workers, "workers", envInt("FACTSTORE_WORKERS", 8), "concurrent inserter goroutines")
	flag.IntVar(&cfg.Tuples, "tuples", envInt("FACTSTORE_TUPLES", 10000), "tuple count for generated workloads")
	flag.Int64Var(&cfg.Seed, "seed", int64(envInt("FACTSTORE_SEED", 1)), "seed for generated workloads")
	flag.BoolVar(&cfg.Dump, "dump", envBool("FACTSTORE_DUMP", false), "dump the loaded structure after the run")
	flag.Parse()
	return cfg
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
