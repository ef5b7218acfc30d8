package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"

	"discovery/replica"
)

// ConsistentHashBalancer maps keys to replicas on a hash ring: the same key
// (say, a node id) always lands on the same replica until the ring changes.
// Useful when announcers should stick to one replica so their refresh
// traffic stays read-your-writes on that replica's connection.
//
// Each real replica is placed on the ring as N virtual nodes; without them,
// a few replicas could cluster together and take uneven load.
type ConsistentHashBalancer struct {
	replicas int                          // virtual nodes per real replica
	ring     []uint32                     // sorted hash values on the ring
	nodes    map[uint32]*replica.Instance // hash value → replica
}

// NewConsistentHashBalancer creates a ring with 100 virtual nodes per
// replica.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		ring:     []uint32{},
		nodes:    make(map[uint32]*replica.Instance),
	}
}

// Add places a replica onto the ring as N virtual nodes, each hashed from
// "{addr}#{i}".
func (b *ConsistentHashBalancer) Add(instance *replica.Instance) {
	for i := 0; i < b.replicas; i++ {
		key := fmt.Sprintf("%s#%d", instance.Addr, i)
		hash := crc32.ChecksumIEEE([]byte(key))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = instance
	}
	// Keep the ring sorted for binary search in Pick.
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
}

// Pick finds the replica owning the given key: hash it, then binary-search
// for the first ring position >= the hash, wrapping to the start when the
// hash is beyond the last position.
//
// Pick takes a string key rather than an instance list because consistent
// hashing is key-based; it does not implement the Balancer interface.
func (b *ConsistentHashBalancer) Pick(key string) (*replica.Instance, error) {
	if len(b.ring) == 0 {
		return nil, fmt.Errorf("no replicas available")
	}

	hash := crc32.ChecksumIEEE([]byte(key))

	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}

	return b.nodes[b.ring[idx]], nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
