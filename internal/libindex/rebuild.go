package libindex

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"commons/libindex/internal/rowstore"
)

// Purge deletes every row of every visibility bucket of a library,
// sentinels included, leaving the index stale. Idempotent: purging an
// already-empty library succeeds.
func (e *Engine) Purge(ctx context.Context, index, libraryID string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, visibility := range visibilityPriority {
		bucketKey := encodeBucketKey(index, libraryID, visibility)
		g.Go(func() error {
			return e.store.DropPartition(ctx, bucketKey)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("purge %s/%s: %w", index, libraryID, err)
	}
	return nil
}

// Rebuild wipes a library's buckets and repopulates them from the canonical
// source: purge, reseed the boundary sentinels, then page through the
// source feeding the insert path. A failing purge or seed aborts; a failing
// page insert is logged and the walk continues, leaving a hole that the
// next rebuild closes.
//
// An index with no registered source rebuilds to seeded-but-empty buckets,
// which read as fresh and empty. That keeps unregistered names from
// rebuild-looping, at the cost of masking a misconfigured registry; hence
// the log line.
func (e *Engine) Rebuild(ctx context.Context, index, libraryID string) error {
	if err := e.Purge(ctx, index, libraryID); err != nil {
		return err
	}

	seed := make([]rowstore.Op, 0, 2*len(visibilityPriority))
	for _, visibility := range visibilityPriority {
		bucketKey := encodeBucketKey(index, libraryID, visibility)
		seed = append(seed,
			rowstore.PutOp(bucketKey, slugHigh, []byte("1")),
			rowstore.PutOp(bucketKey, slugLow, []byte("1")),
		)
	}
	if err := e.store.Apply(ctx, seed); err != nil {
		return fmt.Errorf("seed sentinels for %s/%s: %w", index, libraryID, err)
	}

	source, ok := e.registry.Source(index)
	if !ok {
		log.Printf("libindex: WARNING: rebuild of %s/%s: no source registered, leaving empty", index, libraryID)
		return nil
	}

	start := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		members, next, err := source.PageResources(ctx, libraryID, start, e.pageSize)
		if err != nil {
			return fmt.Errorf("page canonical source for %s/%s: %w", index, libraryID, err)
		}
		if len(members) > 0 {
			inserts := make([]InsertEntry, 0, len(members))
			for _, member := range members {
				inserts = append(inserts, InsertEntry{
					LibraryID: libraryID,
					Resource:  member.Resource,
					Rank:      member.Rank,
					Value:     member.Value,
				})
			}
			if err := e.Insert(ctx, index, inserts); err != nil {
				log.Printf("libindex: rebuild of %s/%s: insert page at %q: %v", index, libraryID, start, err)
			}
		}
		if next == "" {
			return nil
		}
		start = next
	}
}
