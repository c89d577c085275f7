package libindex

import "context"

// SourceEntry is one canonical library member as reported by a Source.
type SourceEntry struct {
	Rank     string
	Resource Resource
	Value    any
}

// Source is the canonical, authoritative enumeration of a library's true
// membership. It is consulted only during rebuild; ordinary reads never
// touch it.
type Source interface {
	// PageResources returns one page of members starting at the given
	// cursor ("" for the first page) and the cursor of the next page, ""
	// when the enumeration is exhausted.
	PageResources(ctx context.Context, libraryID, start string, limit int) ([]SourceEntry, string, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, libraryID, start string, limit int) ([]SourceEntry, string, error)

func (f SourceFunc) PageResources(ctx context.Context, libraryID, start string, limit int) ([]SourceEntry, string, error) {
	return f(ctx, libraryID, start, limit)
}

// Registry maps index names to their canonical sources. It is immutable
// after construction; every library index an application serves is
// registered up front and handed to the engine at startup.
type Registry struct {
	sources map[string]Source
}

// NewRegistry copies the given sources into an immutable registry. A nil
// map yields an empty registry, under which every rebuild is a no-op.
func NewRegistry(sources map[string]Source) *Registry {
	copied := make(map[string]Source, len(sources))
	for name, source := range sources {
		copied[name] = source
	}
	return &Registry{sources: copied}
}

// Source looks up the canonical source for an index name.
func (r *Registry) Source(name string) (Source, bool) {
	source, ok := r.sources[name]
	return source, ok
}
