package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// etcdBackend maps the row/column model onto etcd's flat key space:
//
//	Key:   {keyspace}/dynamic_announcements/{rowKey}/{expiration, zero-padded}
//	Value: JSON {clock, value}
//
// etcd has no per-cell write timestamp, so the column's clock is carried
// inside the value. Expiration is deliberately NOT mapped onto etcd leases:
// a lease-expired key vanishes without a trace, but the registry's liveness
// must be decidable from (now, stored columns) alone. Expired keys stay
// readable until the reaper removes them.
type etcdBackend struct {
	client *clientv3.Client
	prefix string // "{keyspace}/dynamic_announcements/"
}

// storedColumn is the etcd value encoding of a column.
type storedColumn struct {
	Clock int64  `json:"clock"`
	Value []byte `json:"value"`
}

func newEtcdBackend(client *clientv3.Client, keyspace string) *etcdBackend {
	return &etcdBackend{
		client: client,
		prefix: keyspace + "/" + ColumnFamily + "/",
	}
}

// columnKey zero-pads the expiration so lexicographic key order matches
// numeric expiration order.
func (b *etcdBackend) columnKey(rowKey string, expiration int64) string {
	return fmt.Sprintf("%s%s/%020d", b.prefix, rowKey, expiration)
}

func (b *etcdBackend) rowPrefix(rowKey string) string {
	return b.prefix + rowKey + "/"
}

func (b *etcdBackend) putColumn(ctx context.Context, rowKey string, col column) error {
	value, err := json.Marshal(storedColumn{Clock: col.clock, Value: col.value})
	if err != nil {
		return err
	}
	_, err = b.client.Put(ctx, b.columnKey(rowKey, col.expiration), string(value))
	return err
}

func (b *etcdBackend) listColumns(ctx context.Context, rowKey string) ([]column, error) {
	resp, err := b.client.Get(ctx, b.rowPrefix(rowKey), clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, err
	}
	cols := make([]column, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		col, err := b.parseColumn(string(kv.Key), kv.Value)
		if err != nil {
			continue // skip keys that are not well-formed columns
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func (b *etcdBackend) deleteRow(ctx context.Context, rowKey string) error {
	_, err := b.client.Delete(ctx, b.rowPrefix(rowKey), clientv3.WithPrefix())
	return err
}

func (b *etcdBackend) deleteColumns(ctx context.Context, rowKey string, expirations []int64) error {
	if len(expirations) == 0 {
		return nil
	}
	ops := make([]clientv3.Op, 0, len(expirations))
	for _, exp := range expirations {
		ops = append(ops, clientv3.OpDelete(b.columnKey(rowKey, exp)))
	}
	_, err := b.client.Txn(ctx).Then(ops...).Commit()
	return err
}

func (b *etcdBackend) scanRows(ctx context.Context, start string, limit int) ([]row, string, error) {
	rangeStart := b.prefix
	if start != "" {
		// Everything after the last row's column keys.
		rangeStart = clientv3.GetPrefixRangeEnd(b.rowPrefix(start))
	}
	rangeEnd := clientv3.GetPrefixRangeEnd(b.prefix)

	resp, err := b.client.Get(ctx, rangeStart,
		clientv3.WithRange(rangeEnd),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend),
		clientv3.WithLimit(int64(limit)))
	if err != nil {
		return nil, "", err
	}

	var rows []row
	for _, kv := range resp.Kvs {
		key := string(kv.Key)
		rowKey, ok := b.rowKeyOf(key)
		if !ok {
			continue
		}
		col, err := b.parseColumn(key, kv.Value)
		if err != nil {
			continue
		}
		if len(rows) > 0 && rows[len(rows)-1].key == rowKey {
			last := &rows[len(rows)-1]
			last.columns = append(last.columns, col)
		} else {
			rows = append(rows, row{key: rowKey, columns: []column{col}})
		}
	}

	if !resp.More || len(rows) == 0 {
		return rows, "", nil
	}

	// The page boundary may have split the last row's columns; re-fetch that
	// row whole so the caller always sees complete rows.
	last := &rows[len(rows)-1]
	cols, err := b.listColumns(ctx, last.key)
	if err != nil {
		return nil, "", err
	}
	last.columns = cols
	return rows, last.key, nil
}

// rowKeyOf extracts the row key from a full column key, rejecting keys that
// do not match the {prefix}{row}/{expiration} layout.
func (b *etcdBackend) rowKeyOf(key string) (string, bool) {
	rest := strings.TrimPrefix(key, b.prefix)
	if rest == key {
		return "", false
	}
	idx := strings.LastIndexByte(rest, '/')
	if idx <= 0 {
		return "", false
	}
	return rest[:idx], true
}

func (b *etcdBackend) parseColumn(key string, value []byte) (column, error) {
	idx := strings.LastIndexByte(key, '/')
	expiration, err := strconv.ParseInt(key[idx+1:], 10, 64)
	if err != nil {
		return column{}, fmt.Errorf("malformed column key %q: %w", key, err)
	}
	var stored storedColumn
	if err := json.Unmarshal(value, &stored); err != nil {
		return column{}, fmt.Errorf("malformed column value at %q: %w", key, err)
	}
	return column{expiration: expiration, value: stored.Value, clock: stored.Clock}, nil
}
