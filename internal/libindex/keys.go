package libindex

import "strings"

// keySeparator joins the segments of both key forms. Resource ids may
// themselves contain it; only the first segment of a ranked id is ever
// interpreted.
const keySeparator = "#"

// Sentinel row keys. slugLow sorts below every alphanumeric rank and
// slugHigh above, so a descending scan that is complete sees slugHigh first
// and slugLow last. They are whole row keys, not ranked ids, and are never
// returned to callers.
const (
	slugLow  = "#"
	slugHigh = "|"
)

// encodeBucketKey builds the partition key of one visibility bucket.
func encodeBucketKey(index, libraryID string, visibility Visibility) string {
	return index + keySeparator + libraryID + keySeparator + string(visibility)
}

// encodeRankedID builds the row key of an entry. An empty rank defaults to
// "0" so unranked entries still sort deterministically.
func encodeRankedID(resourceID, rank string) string {
	if rank == "" {
		rank = "0"
	}
	return rank + keySeparator + resourceID
}

// decodeRankedID is the exact inverse of encodeRankedID. The first segment
// is always the rank; the remainder is rejoined as the resource id, which
// keeps resource ids containing the separator intact.
func decodeRankedID(rankedID string) (resourceID, rank string) {
	parts := strings.SplitN(rankedID, keySeparator, 2)
	if len(parts) < 2 {
		return "", parts[0]
	}
	return parts[1], parts[0]
}

// isSentinel reports whether a row key is one of the boundary sentinels.
func isSentinel(key string) bool {
	return key == slugLow || key == slugHigh
}
