package rowstore

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store used by tests and as the zero-config
// fallback backend. It honors the same ordering contract as the server
// backends: descending byte-wise key order, start boundary exclusive.
type Memory struct {
	mu    sync.RWMutex
	parts map[string]map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{parts: make(map[string]map[string][]byte)}
}

func (m *Memory) Scan(ctx context.Context, partition, start string, limit int) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	part := m.parts[partition]
	if len(part) == 0 || limit <= 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(part))
	for key := range part {
		if start != "" && key >= start {
			continue
		}
		keys = append(keys, key)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if len(keys) > limit {
		keys = keys[:limit]
	}

	rows := make([]Row, 0, len(keys))
	for _, key := range keys {
		value := make([]byte, len(part[key]))
		copy(value, part[key])
		rows = append(rows, Row{Key: key, Value: value})
	}
	return rows, nil
}

func (m *Memory) Apply(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range ops {
		if op.Put {
			part := m.parts[op.Partition]
			if part == nil {
				part = make(map[string][]byte)
				m.parts[op.Partition] = part
			}
			value := make([]byte, len(op.Value))
			copy(value, op.Value)
			part[op.Key] = value
			continue
		}
		if part := m.parts[op.Partition]; part != nil {
			delete(part, op.Key)
		}
	}
	return nil
}

func (m *Memory) DropPartition(ctx context.Context, partition string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.parts, partition)
	return nil
}

func (m *Memory) Close() error { return nil }

// Len reports the number of rows in a partition. Test helper.
func (m *Memory) Len(partition string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.parts[partition])
}

// Has reports whether a row exists. Test helper.
func (m *Memory) Has(partition, key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.parts[partition][key]
	return ok
}
