package store

import (
	"context"
	"encoding/json"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// gcGraceSeconds is zero: the registry is a liveness cache, not a system of
// record, and deleted columns must never be brought back from the dead.
const gcGraceSeconds = 0

// columnFamilyMeta records the storage parameters the column family was
// created with, so a later startup can detect and repair a mismatch.
type columnFamilyMeta struct {
	GcGraceSeconds int `json:"gcGraceSeconds"`
}

// SchemaManager ensures the backing keyspace and column family exist with
// the required parameters before the store reads or writes anything.
// It runs exactly once at startup; any failure is fatal to the process.
type SchemaManager struct {
	client   *clientv3.Client
	keyspace string
}

func NewSchemaManager(client *clientv3.Client, keyspace string) *SchemaManager {
	return &SchemaManager{client: client, keyspace: keyspace}
}

// Ensure creates the keyspace marker if missing, then creates or repairs the
// column family metadata. etcd deletes are immediate, so the zero-grace
// requirement is satisfied by the backend itself; the metadata record exists
// so the invariant is still checked on every startup.
func (m *SchemaManager) Ensure(ctx context.Context) error {
	marker := m.keyspace + "/.keyspace"
	_, err := m.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(marker), "=", 0)).
		Then(clientv3.OpPut(marker, "")).
		Commit()
	if err != nil {
		return fmt.Errorf("create keyspace %q: %w", m.keyspace, err)
	}

	metaKey := m.keyspace + "/.schema/" + ColumnFamily
	resp, err := m.client.Get(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("describe column family %q: %w", ColumnFamily, err)
	}

	if len(resp.Kvs) > 0 {
		var meta columnFamilyMeta
		if err := json.Unmarshal(resp.Kvs[0].Value, &meta); err == nil && meta.GcGraceSeconds == gcGraceSeconds {
			return nil
		}
		// Existing definition differs (or is unreadable): update in place.
	}

	value, err := json.Marshal(columnFamilyMeta{GcGraceSeconds: gcGraceSeconds})
	if err != nil {
		return err
	}
	if _, err := m.client.Put(ctx, metaKey, string(value)); err != nil {
		return fmt.Errorf("update column family %q: %w", ColumnFamily, err)
	}
	return nil
}
