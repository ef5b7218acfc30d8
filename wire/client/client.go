// Package client is the registry's wire client: it resolves replicas via
// the locator, balances across them, pools multiplexed transports per
// address, and exposes typed wrappers for every registry operation.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"discovery/loadbalance"
	"discovery/model"
	"discovery/replica"
	"discovery/wire"
	"discovery/wire/codec"
	"discovery/wire/transport"
)

// Client calls the discovery registry over the wire protocol.
type Client struct {
	locator    replica.Locator
	balancer   loadbalance.Balancer
	transports map[string]chan *transport.ClientTransport // transport pool per replica address
	codecType  codec.CodecType
	mu         sync.Mutex
	poolSize   int
}

func New(loc replica.Locator, bal loadbalance.Balancer, codecType codec.CodecType, poolSize int) *Client {
	return &Client{
		locator:    loc,
		balancer:   bal,
		transports: make(map[string]chan *transport.ClientTransport),
		codecType:  codecType,
		poolSize:   poolSize,
	}
}

func (c *Client) getTransport(addr string) (*transport.ClientTransport, error) {
	c.mu.Lock()
	pool, ok := c.transports[addr]
	if !ok {
		pool = make(chan *transport.ClientTransport, c.poolSize)
		c.transports[addr] = pool
	}
	c.mu.Unlock()

	if !ok {
		// First use of this address: dial the pool full.
		for i := 0; i < c.poolSize; i++ {
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				return nil, err
			}
			pool <- transport.NewClientTransport(conn, c.codecType)
		}
	}

	return <-pool, nil
}

func (c *Client) putTransport(addr string, t *transport.ClientTransport) {
	c.transports[addr] <- t
}

// Call sends one request to a balancer-picked replica and decodes the reply.
func (c *Client) Call(serviceMethod string, args any, reply any) error {
	instances, err := c.locator.Resolve(context.Background())
	if err != nil {
		return err
	}

	instance, err := c.balancer.Pick(instances)
	if err != nil {
		return err
	}

	t, err := c.getTransport(instance.Addr)
	if err != nil {
		return err
	}
	defer c.putTransport(instance.Addr, t)

	_, ch, err := t.Send(serviceMethod, args)
	if err != nil {
		return err
	}

	resp := <-ch
	if resp.Error != "" {
		return fmt.Errorf("registry error: %v", resp.Error)
	}

	return json.Unmarshal(resp.Payload, reply)
}

// Put announces the node's services. The returned boolean is the registry's
// best-effort "was this a fresh insert" signal.
func (c *Client) Put(nodeId model.NodeId, announcement model.DynamicAnnouncement) (bool, error) {
	reply := wire.PutReply{}
	err := c.Call("Discovery.Put", &wire.PutArgs{NodeId: nodeId, Announcement: announcement}, &reply)
	return reply.Inserted, err
}

// Delete withdraws every service the node has announced.
func (c *Client) Delete(nodeId model.NodeId) (bool, error) {
	reply := wire.DeleteReply{}
	err := c.Call("Discovery.Delete", &wire.DeleteArgs{NodeId: nodeId}, &reply)
	return reply.Existed, err
}

// GetServices returns all live services of the given type.
func (c *Client) GetServices(serviceType string) (model.Services, error) {
	reply := wire.ServicesReply{}
	err := c.Call("Discovery.GetServices", &wire.ServicesArgs{Type: serviceType}, &reply)
	return reply.Services, err
}

// GetServicesByPool returns all live services of the given type and pool.
func (c *Client) GetServicesByPool(serviceType, pool string) (model.Services, error) {
	reply := wire.ServicesReply{}
	err := c.Call("Discovery.GetServicesByPool", &wire.ServicesByPoolArgs{Type: serviceType, Pool: pool}, &reply)
	return reply.Services, err
}

// GetAll returns every live service.
func (c *Client) GetAll() (model.Services, error) {
	reply := wire.ServicesReply{}
	err := c.Call("Discovery.GetAll", &wire.GetAllArgs{}, &reply)
	return reply.Services, err
}
