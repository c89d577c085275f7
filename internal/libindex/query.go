package libindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"commons/libindex/internal/rowstore"
)

// page is one raw descending scan of a bucket plus the freshness facts
// derived from it.
type page struct {
	rows      []rowstore.Row
	requested int
	sawHigh   bool
	sawLow    bool
	stale     bool
}

// exhausted reports whether the scan reached the end of the bucket: either
// the low sentinel appeared or storage ran out of rows.
func (p page) exhausted() bool {
	return p.sawLow || len(p.rows) < p.requested
}

// scanBucket issues a single descending range scan. When paging from the
// top it over-fetches by one row to leave room for the high sentinel, so a
// fresh bucket still yields a full page of real entries.
func (e *Engine) scanBucket(ctx context.Context, bucketKey, start string, limit int) (page, error) {
	requested := limit
	if start == "" {
		requested = limit + 1
	}
	rows, err := e.store.Scan(ctx, bucketKey, start, requested)
	if err != nil {
		return page{}, fmt.Errorf("scan %s: %w", bucketKey, err)
	}

	p := page{rows: rows, requested: requested}
	for _, row := range rows {
		switch row.Key {
		case slugHigh:
			p.sawHigh = true
		case slugLow:
			p.sawLow = true
		}
	}
	// A complete cached bucket shows the high sentinel at the top and the
	// low sentinel before running dry. Missing either, under the matching
	// scan condition, means rows were lost or never populated.
	p.stale = (start == "" && !p.sawHigh) || (len(rows) < requested && !p.sawLow)
	return p, nil
}

// List returns one rank-descending page of a library bucket.
//
// A stale bucket is rebuilt from the canonical source first when the caller
// opts in, then the scan is reissued exactly once; without the opt-in the
// staleness is logged and whatever was found is served. Duplicate resource
// rows left behind by racing writers are excluded from the page and deleted
// in the background.
//
// The returned token addresses the next page; it is empty only when the
// bucket is exhausted. A short page with a non-empty token is a normal
// outcome, not an end-of-list signal.
func (e *Engine) List(ctx context.Context, index, libraryID string, visibility Visibility, opts ListOptions) ([]Entry, string, error) {
	if !IsValidVisibility(visibility) {
		return nil, "", fmt.Errorf("libindex: unknown visibility %q", visibility)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	bucketKey := encodeBucketKey(index, libraryID, visibility)

	p, err := e.scanBucket(ctx, bucketKey, opts.Start, limit)
	if err != nil {
		return nil, "", err
	}
	if p.stale {
		if opts.RebuildIfNecessary {
			if err := e.Rebuild(ctx, index, libraryID); err != nil {
				return nil, "", fmt.Errorf("rebuild %s/%s: %w", index, libraryID, err)
			}
			// One retry only; a bucket that is still stale after a rebuild
			// is served as-is rather than rebuilt again.
			p, err = e.scanBucket(ctx, bucketKey, opts.Start, limit)
			if err != nil {
				return nil, "", err
			}
			if p.stale {
				log.Printf("libindex: WARNING: %s still stale after rebuild, serving partial page", bucketKey)
			}
		} else {
			log.Printf("libindex: WARNING: %s is stale, serving without rebuild", bucketKey)
		}
	}

	return e.assemblePage(bucketKey, p, limit)
}

// assemblePage strips sentinels, decodes rows, filters duplicates, and
// computes the next-page token.
func (e *Engine) assemblePage(bucketKey string, p page, limit int) ([]Entry, string, error) {
	entries := make([]Entry, 0, limit)
	rankedIDs := make([]string, 0, limit)
	seen := make(map[string]struct{}, len(p.rows))
	var repairs []rowstore.Op
	exhausted := p.exhausted()

	for _, row := range p.rows {
		if isSentinel(row.Key) {
			continue
		}
		resourceID, rank := decodeRankedID(row.Key)
		if _, dup := seen[resourceID]; dup {
			// A second ranked row for the same resource is a leftover from
			// a partial-failure race. Drop it from the page and delete it
			// in the background.
			repairs = append(repairs, rowstore.DeleteOp(bucketKey, row.Key))
			continue
		}
		seen[resourceID] = struct{}{}

		var value any
		if err := json.Unmarshal(row.Value, &value); err != nil {
			corrupt := &CorruptEntryError{Partition: bucketKey, Key: row.Key, Err: err}
			log.Printf("libindex: %v", corrupt)
			return nil, "", corrupt
		}
		entries = append(entries, Entry{ResourceID: resourceID, Rank: rank, Value: value})
		rankedIDs = append(rankedIDs, row.Key)
	}

	// Over-fetching from the top can leave one extra row when the high
	// sentinel was absent; trim it and let the token point at the last row
	// actually returned.
	if len(entries) > limit {
		entries = entries[:limit]
		rankedIDs = rankedIDs[:limit]
		exhausted = false
	}

	if len(repairs) > 0 {
		e.scheduleRepair(bucketKey, repairs)
	}

	nextToken := ""
	if !exhausted {
		if len(rankedIDs) > 0 {
			nextToken = rankedIDs[len(rankedIDs)-1]
		} else if len(p.rows) > 0 {
			// Every scanned row was a sentinel or duplicate. Advance past
			// the scanned range so repeated calls still make progress.
			nextToken = p.rows[len(p.rows)-1].Key
		}
	}
	return entries, nextToken, nil
}

// scheduleRepair deletes duplicate rows asynchronously. Best effort: a
// failed repair is only logged and the duplicates stay until the next read
// finds them.
func (e *Engine) scheduleRepair(bucketKey string, repairs []rowstore.Op) {
	e.pending.begin()
	go func() {
		defer e.pending.done()
		if err := e.store.Apply(context.Background(), repairs); err != nil {
			log.Printf("libindex: repair of %d duplicate rows in %s: %v", len(repairs), bucketKey, err)
		}
	}()
}

// IsStale probes one bucket with a top-of-list scan and reports whether the
// freshness sentinels are missing. It never rebuilds.
func (e *Engine) IsStale(ctx context.Context, index, libraryID string, visibility Visibility) (bool, error) {
	if !IsValidVisibility(visibility) {
		return false, fmt.Errorf("libindex: unknown visibility %q", visibility)
	}
	p, err := e.scanBucket(ctx, encodeBucketKey(index, libraryID, visibility), "", defaultListLimit)
	if err != nil {
		return false, err
	}
	return p.stale, nil
}
