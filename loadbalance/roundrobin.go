package loadbalance

import (
	"fmt"
	"sync/atomic"

	"discovery/replica"
)

// RoundRobinBalancer cycles through replicas in order. An atomic counter
// keeps it lock-free and goroutine-safe.
type RoundRobinBalancer struct {
	counter int64
}

func (b *RoundRobinBalancer) Pick(instances []replica.Instance) (*replica.Instance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("no replicas available")
	}
	index := atomic.AddInt64(&b.counter, 1) % int64(len(instances))
	return &instances[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
