package store

import (
	"context"
	"sort"
	"sync"
)

// memoryBackend keeps rows in a map guarded by a mutex. It backs tests and
// single-process deployments where no shared cluster is wanted.
type memoryBackend struct {
	mu   sync.Mutex
	rows map[string]map[int64]column // rowKey → expiration → column
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{rows: make(map[string]map[int64]column)}
}

func (b *memoryBackend) putColumn(ctx context.Context, rowKey string, col column) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cols, ok := b.rows[rowKey]
	if !ok {
		cols = make(map[int64]column)
		b.rows[rowKey] = cols
	}
	cols[col.expiration] = col
	return nil
}

func (b *memoryBackend) listColumns(ctx context.Context, rowKey string) ([]column, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedColumns(b.rows[rowKey]), nil
}

func (b *memoryBackend) deleteRow(ctx context.Context, rowKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rows, rowKey)
	return nil
}

func (b *memoryBackend) deleteColumns(ctx context.Context, rowKey string, expirations []int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cols, ok := b.rows[rowKey]
	if !ok {
		return nil
	}
	for _, exp := range expirations {
		delete(cols, exp)
	}
	if len(cols) == 0 {
		delete(b.rows, rowKey)
	}
	return nil
}

func (b *memoryBackend) scanRows(ctx context.Context, start string, limit int) ([]row, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, 0, len(b.rows))
	for k := range b.rows {
		if k > start {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	next := ""
	if len(keys) > limit {
		keys = keys[:limit]
		next = keys[len(keys)-1]
	}

	page := make([]row, 0, len(keys))
	for _, k := range keys {
		page = append(page, row{key: k, columns: sortedColumns(b.rows[k])})
	}
	return page, next, nil
}

func sortedColumns(cols map[int64]column) []column {
	out := make([]column, 0, len(cols))
	for _, c := range cols {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].expiration < out[j].expiration })
	return out
}
