// Package loadbalance picks one discovery-registry replica from the set the
// locator resolves.
//
// Three strategies are implemented:
//   - RoundRobin:      equal-capacity replicas
//   - WeightedRandom:  heterogeneous replicas (different CPU/memory)
//   - ConsistentHash:  key-affine routing (same node announces to the same replica)
package loadbalance

import "discovery/replica"

// Balancer selects a replica for the next call. Pick runs on every call and
// must be goroutine-safe.
type Balancer interface {
	Pick(instances []replica.Instance) (*replica.Instance, error)

	// Name returns the strategy name, for logging.
	Name() string
}
