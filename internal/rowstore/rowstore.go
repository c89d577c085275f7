// Package rowstore provides the wide-column row storage used by the library
// index: partitions of rows ordered by key, read with descending range scans
// and written in batches. Batches carry no atomicity guarantee across
// partitions; a batch that touches several partitions may land partially.
package rowstore

import "context"

// Row is a single stored row within a partition.
type Row struct {
	Key   string
	Value []byte
}

// Op is one statement of a write batch. Put false means delete.
type Op struct {
	Put       bool
	Partition string
	Key       string
	Value     []byte
}

// Store is the storage contract shared by all backends. Key ordering is
// byte-wise; every backend must sort identically or range boundaries drift
// between deployments.
type Store interface {
	// Scan returns up to limit rows of the partition in descending key
	// order. An empty start means "from the top"; otherwise only rows with
	// keys strictly below start are returned.
	Scan(ctx context.Context, partition, start string, limit int) ([]Row, error)

	// Apply executes the batch. Ops are applied in order within a backend's
	// unit of batching, but the batch as a whole is not atomic across
	// partitions.
	Apply(ctx context.Context, ops []Op) error

	// DropPartition removes every row of the partition. Dropping a
	// partition that does not exist is not an error.
	DropPartition(ctx context.Context, partition string) error

	Close() error
}

// PutOp builds an upsert op.
func PutOp(partition, key string, value []byte) Op {
	return Op{Put: true, Partition: partition, Key: key, Value: value}
}

// DeleteOp builds a delete op.
func DeleteOp(partition, key string) Op {
	return Op{Partition: partition, Key: key}
}
