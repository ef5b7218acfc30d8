package replica

import "context"

// StaticLocator resolves a fixed address list. It serves single-replica
// deployments and tests where no etcd cluster is available; Announce and
// Withdraw are no-ops because the set is configured, not discovered.
type StaticLocator struct {
	instances []Instance
}

func NewStaticLocator(addrs ...string) *StaticLocator {
	instances := make([]Instance, 0, len(addrs))
	for _, addr := range addrs {
		instances = append(instances, Instance{Addr: addr, Weight: 1})
	}
	return &StaticLocator{instances: instances}
}

func (l *StaticLocator) Announce(ctx context.Context, instance Instance, ttl int64) error {
	return nil
}

func (l *StaticLocator) Withdraw(ctx context.Context, addr string) error {
	return nil
}

func (l *StaticLocator) Resolve(ctx context.Context) ([]Instance, error) {
	out := make([]Instance, len(l.instances))
	copy(out, l.instances)
	return out, nil
}

func (l *StaticLocator) Watch(ctx context.Context) <-chan []Instance {
	ch := make(chan []Instance, 1)
	ch <- l.instances
	return ch
}
