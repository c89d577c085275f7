// Command libindex is the operational tool for the library index: list a
// bucket page, check staleness, purge, or rebuild against the configured
// row store. Rebuilds from this tool run with an empty registry, so they
// reseed sentinels without repopulating entries.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"commons/libindex/internal/config"
	"commons/libindex/internal/libindex"
	"commons/libindex/internal/rowstore"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	command := os.Args[1]

	flags := flag.NewFlagSet(command, flag.ExitOnError)
	index := flags.String("index", "", "index name (required)")
	library := flags.String("library", "", "library id (required)")
	visibility := flags.String("visibility", "private", "bucket visibility: public, loggedin, private")
	limit := flags.Int("limit", 10, "page size for list")
	start := flags.String("start", "", "page token for list")
	if err := flags.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}
	if *index == "" || *library == "" {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store connection failed: %v", err)
	}
	defer store.Close()

	engine := libindex.New(store, nil, nil, libindex.Options{RebuildPageSize: cfg.RebuildPageSize})
	vis := libindex.Visibility(*visibility)

	switch command {
	case "list":
		entries, nextToken, err := engine.List(ctx, *index, *library, vis, libindex.ListOptions{
			Start: *start,
			Limit: *limit,
		})
		if err != nil {
			log.Fatalf("list failed: %v", err)
		}
		out := json.NewEncoder(os.Stdout)
		out.SetIndent("", "  ")
		if err := out.Encode(map[string]any{"entries": entries, "nextToken": nextToken}); err != nil {
			log.Fatalf("encode output: %v", err)
		}
	case "stale":
		stale, err := engine.IsStale(ctx, *index, *library, vis)
		if err != nil {
			log.Fatalf("staleness check failed: %v", err)
		}
		fmt.Println(stale)
	case "purge":
		if err := engine.Purge(ctx, *index, *library); err != nil {
			log.Fatalf("purge failed: %v", err)
		}
		log.Printf("purged %s/%s", *index, *library)
	case "rebuild":
		if err := engine.Rebuild(ctx, *index, *library); err != nil {
			log.Fatalf("rebuild failed: %v", err)
		}
		log.Printf("rebuilt %s/%s", *index, *library)
	default:
		usage()
		os.Exit(2)
	}
}

func openStore(ctx context.Context, cfg config.Config) (rowstore.Store, error) {
	switch cfg.StoreBackend {
	case "postgres":
		log.Printf("using postgres row store")
		return rowstore.OpenPostgres(ctx, cfg.DatabaseURL)
	case "redis":
		log.Printf("using redis row store")
		return rowstore.OpenRedis(cfg.RedisURL)
	case "sqlite":
		log.Printf("using sqlite row store at %s", cfg.SQLitePath)
		return rowstore.OpenSQLite(ctx, cfg.SQLitePath)
	case "memory":
		log.Printf("using in-memory row store")
		return rowstore.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: libindex <list|stale|purge|rebuild> -index NAME -library ID [-visibility V] [-limit N] [-start TOKEN]")
}
