// Package libindex maintains rank-ordered, visibility-partitioned library
// indexes on top of a wide-column row store. Each library fans out into
// public, loggedin, and private buckets; reads page one bucket in rank
// order, detect staleness through boundary sentinels, repair duplicate rows
// on the fly, and can rebuild the whole bucket from its canonical source.
//
// Nothing here takes a lock. Concurrent writers race freely against the
// same bucket and correctness is restored lazily: duplicate rows are
// deleted when a read encounters them, and missing sentinels trigger a
// rebuild from the canonical source. Callers that need exactly-once
// semantics are in the wrong place.
package libindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"commons/libindex/internal/rowstore"
)

const (
	defaultListLimit       = 10
	defaultRebuildPageSize = 100
)

// InsertEntry adds a resource to a library at a rank. Value is stored
// JSON-encoded; nil defaults to the number 1.
type InsertEntry struct {
	LibraryID string
	Resource  Resource
	Rank      string
	Value     any
}

// UpdateEntry moves a resource from OldRank to NewRank, replacing its
// stored value.
type UpdateEntry struct {
	LibraryID string
	Resource  Resource
	OldRank   string
	NewRank   string
	NewValue  any
}

// RemoveEntry removes a resource's ranked row from a library.
type RemoveEntry struct {
	LibraryID string
	Resource  Resource
	Rank      string
}

// Entry is one returned element of a library page.
type Entry struct {
	ResourceID string
	Rank       string
	Value      any
}

// ListOptions control one List call. A zero Limit defaults to 10. An empty
// Start pages from the top of the bucket.
type ListOptions struct {
	Start              string
	Limit              int
	RebuildIfNecessary bool
}

// Options tune an Engine.
type Options struct {
	// RebuildPageSize is how many canonical entries the rebuild page-walk
	// requests at a time. Zero defaults to 100.
	RebuildPageSize int
}

// CorruptEntryError reports a stored value that failed to parse as JSON
// during a read. The row is left in place; only a rebuild replaces it.
type CorruptEntryError struct {
	Partition string
	Key       string
	Err       error
}

func (e *CorruptEntryError) Error() string {
	return fmt.Sprintf("corrupt entry %q in %q: %v", e.Key, e.Partition, e.Err)
}

func (e *CorruptEntryError) Unwrap() error { return e.Err }

// Engine is the library index facade. All methods are safe for concurrent
// use; none of them coordinate with each other beyond the store itself.
type Engine struct {
	store    rowstore.Store
	resolver BucketResolver
	registry *Registry
	pageSize int
	pending  barrier
}

// New assembles an engine. The registry is immutable after this call; the
// resolver decides each written resource's target bucket.
func New(store rowstore.Store, resolver BucketResolver, registry *Registry, opts Options) *Engine {
	if resolver == nil {
		resolver = ResourceVisibilityResolver()
	}
	if registry == nil {
		registry = NewRegistry(nil)
	}
	pageSize := opts.RebuildPageSize
	if pageSize <= 0 {
		pageSize = defaultRebuildPageSize
	}
	return &Engine{
		store:    store,
		resolver: resolver,
		registry: registry,
		pageSize: pageSize,
	}
}

// Quiesce blocks until every mutation in flight at the time of the call has
// settled, successfully or not. It says nothing about mutations issued
// afterwards.
func (e *Engine) Quiesce() {
	e.pending.wait()
}

// encodeValue renders an entry value for storage. A nil value stores the
// number 1, so membership-only indexes need not invent payloads.
func encodeValue(value any) ([]byte, error) {
	if value == nil {
		return []byte("1"), nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode entry value: %w", err)
	}
	return encoded, nil
}

// detach runs fn on its own goroutine, tracked by the quiescence barrier.
// Failures are logged and dropped; callers that need the error must use the
// synchronous form.
func (e *Engine) detach(what, index string, fn func(context.Context) error) {
	e.pending.begin()
	go func() {
		defer e.pending.done()
		if err := fn(context.Background()); err != nil {
			log.Printf("libindex: detached %s on %s: %v", what, index, err)
		}
	}()
}
