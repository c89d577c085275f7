package libindex

import "fmt"

// Visibility identifies one of the per-library index buckets.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityLoggedIn Visibility = "loggedin"
	VisibilityPrivate  Visibility = "private"
)

// visibilityPriority orders buckets from least to most restrictive. The
// fan-out mask below depends on this order.
var visibilityPriority = []Visibility{VisibilityPublic, VisibilityLoggedIn, VisibilityPrivate}

// Visibilities returns every bucket visibility, least restrictive first.
func Visibilities() []Visibility {
	out := make([]Visibility, len(visibilityPriority))
	copy(out, visibilityPriority)
	return out
}

// IsValidVisibility reports whether v names a known bucket.
func IsValidVisibility(v Visibility) bool {
	for _, known := range visibilityPriority {
		if v == known {
			return true
		}
	}
	return false
}

// visibilityMask returns the buckets a write with the given visibility fans
// out into: its own bucket plus every more restrictive one. A public entry
// lands in all three buckets, a private entry only in private, which keeps
// public ⊆ loggedin ⊆ private without any read-time filtering.
func visibilityMask(v Visibility) ([]Visibility, error) {
	for i, known := range visibilityPriority {
		if v == known {
			return visibilityPriority[i:], nil
		}
	}
	return nil, fmt.Errorf("libindex: unknown visibility %q", v)
}

// Resource is a reference to an indexed item, as library owners hand it to
// the mutation operators and the canonical source reports it during rebuild.
type Resource struct {
	ID         string
	Visibility Visibility
}

// BucketResolver decides which visibility bucket a resource belongs to
// within a given library. The target bucket may differ from the resource's
// own visibility, e.g. inside the owner's private space.
type BucketResolver interface {
	ResolveBucketVisibility(libraryID string, resource Resource) Visibility
}

// ResolverFunc adapts a function to the BucketResolver interface.
type ResolverFunc func(libraryID string, resource Resource) Visibility

func (f ResolverFunc) ResolveBucketVisibility(libraryID string, resource Resource) Visibility {
	return f(libraryID, resource)
}

// ResourceVisibilityResolver is the default resolver: the target bucket is
// the resource's own visibility.
func ResourceVisibilityResolver() BucketResolver {
	return ResolverFunc(func(_ string, resource Resource) Visibility {
		return resource.Visibility
	})
}
