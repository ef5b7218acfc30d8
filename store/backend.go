package store

import "context"

// column is one stored entry for a node: the announcement's encoded service
// list, keyed by its absolute expiration time, stamped with the write time.
// The write time doubles as the last-writer-wins tiebreaker on read.
type column struct {
	expiration int64  // epoch ms after which this entry is dead
	value      []byte // encoded service list
	clock      int64  // epoch ms at which the column was written
}

// row is a node's key plus all of its currently stored columns.
type row struct {
	key     string
	columns []column
}

// backend is the storage primitive set the Store is written against.
// All of the fold/expire/reap logic lives in Store, once, and runs
// identically over both implementations.
type backend interface {
	// putColumn writes one column into the given row, overwriting any
	// existing column with the same expiration.
	putColumn(ctx context.Context, rowKey string, col column) error

	// listColumns returns every column currently stored in the row.
	listColumns(ctx context.Context, rowKey string) ([]column, error)

	// deleteRow removes the row and all of its columns.
	deleteRow(ctx context.Context, rowKey string) error

	// deleteColumns removes the named columns (by expiration) from the row.
	deleteColumns(ctx context.Context, rowKey string, expirations []int64) error

	// scanRows returns a page of rows with keys strictly greater than start
	// ("" means from the beginning), in key order, plus the cursor to pass
	// as start on the next call. An empty cursor means the scan is done.
	scanRows(ctx context.Context, start string, limit int) ([]row, string, error)
}
