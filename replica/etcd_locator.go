package replica

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const replicaPrefix = "/discovery/replicas/"

// EtcdLocator implements Locator over etcd v3.
//
// Registration uses TTL-based leases: if a replica crashes, its lease
// expires and the entry disappears on its own, so clients never resolve a
// dead address for long. The lease TTL here is a crash detector for the
// locator only; the dynamic announcement store deliberately does not use
// leases for its own expiration.
type EtcdLocator struct {
	client *clientv3.Client // thread-safe, shared across goroutines
}

// NewEtcdLocator creates a locator connected to the given etcd endpoints.
func NewEtcdLocator(endpoints []string) (*EtcdLocator, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdLocator{client: c}, nil
}

// NewEtcdLocatorFromClient wraps an existing etcd client, shared with the
// rest of the process.
func NewEtcdLocatorFromClient(client *clientv3.Client) *EtcdLocator {
	return &EtcdLocator{client: client}
}

// Announce grants a lease, writes the replica's key under it, and starts a
// background keep-alive so the entry survives as long as the process does.
//
// The lease ID stays a local variable rather than a struct field so that
// multiple replicas can share one EtcdLocator without a data race.
func (l *EtcdLocator) Announce(ctx context.Context, instance Instance, ttl int64) error {
	lease, err := l.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = l.client.Put(ctx, replicaPrefix+instance.Addr, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	ch, err := l.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}

	// Drain keep-alive responses so the channel never fills up.
	go func() {
		for range ch {
		}
	}()
	return nil
}

func (l *EtcdLocator) Withdraw(ctx context.Context, addr string) error {
	_, err := l.client.Delete(ctx, replicaPrefix+addr)
	return err
}

// Resolve lists all currently registered replicas, skipping entries whose
// value does not decode.
func (l *EtcdLocator) Resolve(ctx context.Context) ([]Instance, error) {
	resp, err := l.client.Get(ctx, replicaPrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance Instance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// Watch monitors the replica prefix and emits the full updated list on any
// change. Uses etcd's server-push watch rather than polling.
func (l *EtcdLocator) Watch(ctx context.Context) <-chan []Instance {
	ch := make(chan []Instance, 1)

	go func() {
		watchChan := l.client.Watch(ctx, replicaPrefix, clientv3.WithPrefix())
		for range watchChan {
			// Re-fetch the full list on any change; simpler than folding
			// individual watch events.
			instances, _ := l.Resolve(ctx)
			ch <- instances
		}
	}()

	return ch
}
