package libindex

import (
	"context"
	"fmt"

	"commons/libindex/internal/rowstore"
)

// Insert writes each entry into its target bucket and every more
// restrictive one, as a single batch. It never removes a previous rank:
// callers changing an existing entry's rank or visibility must use Update,
// or the old row lingers until repair-on-read catches it.
func (e *Engine) Insert(ctx context.Context, index string, entries []InsertEntry) error {
	e.pending.begin()
	defer e.pending.done()
	return e.insert(ctx, index, entries)
}

// InsertDetached is Insert in fire-and-forget mode: failures are logged,
// never returned. The quiescence barrier tracks the work.
func (e *Engine) InsertDetached(index string, entries []InsertEntry) {
	e.detach("insert", index, func(ctx context.Context) error {
		return e.insert(ctx, index, entries)
	})
}

func (e *Engine) insert(ctx context.Context, index string, entries []InsertEntry) error {
	ops := make([]rowstore.Op, 0, len(entries))
	for _, entry := range entries {
		value, err := encodeValue(entry.Value)
		if err != nil {
			return err
		}
		target := e.resolver.ResolveBucketVisibility(entry.LibraryID, entry.Resource)
		mask, err := visibilityMask(target)
		if err != nil {
			return err
		}
		rankedID := encodeRankedID(entry.Resource.ID, entry.Rank)
		for _, bucket := range mask {
			ops = append(ops, rowstore.PutOp(encodeBucketKey(index, entry.LibraryID, bucket), rankedID, value))
		}
	}
	if err := e.store.Apply(ctx, ops); err != nil {
		return fmt.Errorf("insert into %s: %w", index, err)
	}
	return nil
}

// Update moves each entry to its new rank and value. The old ranked row is
// deleted from every visibility bucket unconditionally: the entry's previous
// bucket membership cannot be known cheaply, and deleting a row that was
// never there costs nothing. The new row is then written only into the
// buckets its current visibility calls for.
func (e *Engine) Update(ctx context.Context, index string, entries []UpdateEntry) error {
	e.pending.begin()
	defer e.pending.done()
	return e.update(ctx, index, entries)
}

// UpdateDetached is Update in fire-and-forget mode.
func (e *Engine) UpdateDetached(index string, entries []UpdateEntry) {
	e.detach("update", index, func(ctx context.Context) error {
		return e.update(ctx, index, entries)
	})
}

func (e *Engine) update(ctx context.Context, index string, entries []UpdateEntry) error {
	ops := make([]rowstore.Op, 0, len(entries)*2)
	for _, entry := range entries {
		oldRankedID := encodeRankedID(entry.Resource.ID, entry.OldRank)
		for _, bucket := range visibilityPriority {
			ops = append(ops, rowstore.DeleteOp(encodeBucketKey(index, entry.LibraryID, bucket), oldRankedID))
		}

		value, err := encodeValue(entry.NewValue)
		if err != nil {
			return err
		}
		target := e.resolver.ResolveBucketVisibility(entry.LibraryID, entry.Resource)
		mask, err := visibilityMask(target)
		if err != nil {
			return err
		}
		newRankedID := encodeRankedID(entry.Resource.ID, entry.NewRank)
		for _, bucket := range mask {
			ops = append(ops, rowstore.PutOp(encodeBucketKey(index, entry.LibraryID, bucket), newRankedID, value))
		}
	}
	if err := e.store.Apply(ctx, ops); err != nil {
		return fmt.Errorf("update %s: %w", index, err)
	}
	return nil
}

// Remove deletes each entry's ranked row from every visibility bucket
// unconditionally, for the same reason Update over-deletes.
func (e *Engine) Remove(ctx context.Context, index string, entries []RemoveEntry) error {
	e.pending.begin()
	defer e.pending.done()
	return e.remove(ctx, index, entries)
}

// RemoveDetached is Remove in fire-and-forget mode.
func (e *Engine) RemoveDetached(index string, entries []RemoveEntry) {
	e.detach("remove", index, func(ctx context.Context) error {
		return e.remove(ctx, index, entries)
	})
}

func (e *Engine) remove(ctx context.Context, index string, entries []RemoveEntry) error {
	ops := make([]rowstore.Op, 0, len(entries)*len(visibilityPriority))
	for _, entry := range entries {
		rankedID := encodeRankedID(entry.Resource.ID, entry.Rank)
		for _, bucket := range visibilityPriority {
			ops = append(ops, rowstore.DeleteOp(encodeBucketKey(index, entry.LibraryID, bucket), rankedID))
		}
	}
	if err := e.store.Apply(ctx, ops); err != nil {
		return fmt.Errorf("remove from %s: %w", index, err)
	}
	return nil
}
