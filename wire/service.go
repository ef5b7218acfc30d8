// Package wire exposes the registry's operations over the frame protocol:
// the Discovery receiver is registered with the wire server, and its
// args/reply structs double as the client's request/response contracts.
package wire

import (
	"context"

	"discovery/model"
	"discovery/query"
)

// DynamicStore is the write surface the Discovery receiver needs.
type DynamicStore interface {
	Put(ctx context.Context, nodeId model.NodeId, announcement *model.DynamicAnnouncement) (bool, error)
	Delete(ctx context.Context, nodeId model.NodeId) (bool, error)
}

// Discovery adapts the dynamic store and query resource to the wire server's
// handler shape. Method names become "Discovery.<Method>" on the wire.
type Discovery struct {
	store    DynamicStore
	resource *query.Resource
}

func NewDiscovery(store DynamicStore, resource *query.Resource) *Discovery {
	return &Discovery{store: store, resource: resource}
}

type PutArgs struct {
	NodeId       model.NodeId              `json:"nodeId"`
	Announcement model.DynamicAnnouncement `json:"announcement"`
}

type PutReply struct {
	// Inserted is a best-effort signal that no prior live announcement
	// existed for this node; callers must not use it for mutual exclusion.
	Inserted bool `json:"inserted"`
}

func (d *Discovery) Put(args *PutArgs, reply *PutReply) error {
	inserted, err := d.store.Put(context.Background(), args.NodeId, &args.Announcement)
	if err != nil {
		return err
	}
	reply.Inserted = inserted
	return nil
}

type DeleteArgs struct {
	NodeId model.NodeId `json:"nodeId"`
}

type DeleteReply struct {
	Existed bool `json:"existed"`
}

func (d *Discovery) Delete(args *DeleteArgs, reply *DeleteReply) error {
	existed, err := d.store.Delete(context.Background(), args.NodeId)
	if err != nil {
		return err
	}
	reply.Existed = existed
	return nil
}

type ServicesArgs struct {
	Type string `json:"type"`
}

type ServicesByPoolArgs struct {
	Type string `json:"type"`
	Pool string `json:"pool"`
}

type ServicesReply struct {
	Services model.Services `json:"services"`
}

func (d *Discovery) GetServices(args *ServicesArgs, reply *ServicesReply) error {
	services, err := d.resource.GetServices(context.Background(), args.Type)
	if err != nil {
		return err
	}
	reply.Services = services
	return nil
}

func (d *Discovery) GetServicesByPool(args *ServicesByPoolArgs, reply *ServicesReply) error {
	services, err := d.resource.GetServicesByPool(context.Background(), args.Type, args.Pool)
	if err != nil {
		return err
	}
	reply.Services = services
	return nil
}

type GetAllArgs struct{}

func (d *Discovery) GetAll(args *GetAllArgs, reply *ServicesReply) error {
	services, err := d.resource.GetAllServices(context.Background())
	if err != nil {
		return err
	}
	reply.Services = services
	return nil
}
