// Package model defines the discovery registry's domain types: nodes,
// services, and the announcements nodes make about the services they offer.
package model

import "github.com/google/uuid"

// NodeId identifies a logical node. It is generated by the announcer, not
// the registry, and stays stable across refreshes of the same node.
type NodeId string

// ServiceId identifies a single declared service instance.
type ServiceId string

// RandomNodeId returns a fresh UUID-shaped node identifier.
func RandomNodeId() NodeId {
	return NodeId(uuid.NewString())
}

// RandomServiceId returns a fresh UUID-shaped service identifier.
func RandomServiceId() ServiceId {
	return ServiceId(uuid.NewString())
}

// Service is a fully materialized service descriptor: what a node offers,
// where it lives, and which deployment pool it belongs to. Properties
// carries endpoint URIs and arbitrary metadata.
type Service struct {
	Id         ServiceId         `json:"id"`
	NodeId     NodeId            `json:"nodeId"`
	Type       string            `json:"type"`
	Pool       string            `json:"pool"`
	Location   string            `json:"location"`
	Properties map[string]string `json:"properties"`
}

// MatchesType reports whether the service has the given type tag.
func (s Service) MatchesType(serviceType string) bool {
	return s.Type == serviceType
}

// MatchesPool reports whether the service belongs to the given pool.
func (s Service) MatchesPool(pool string) bool {
	return s.Pool == pool
}

// DynamicServiceAnnouncement is one service inside a node's announcement.
// Pool and location come from the enclosing DynamicAnnouncement.
type DynamicServiceAnnouncement struct {
	Id         ServiceId         `json:"id"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

// DynamicAnnouncement is a node's declaration of the services it currently
// offers. It is valid for the registry's configured max age and must be
// refreshed before that to stay visible.
type DynamicAnnouncement struct {
	Environment          string                       `json:"environment"`
	Location             string                       `json:"location"`
	Pool                 string                       `json:"pool"`
	ServiceAnnouncements []DynamicServiceAnnouncement `json:"serviceAnnouncements"`
}

// Services materializes the announcement into full descriptors, stamping
// each one with the announcing node's id, location, and pool.
func (a *DynamicAnnouncement) Services(nodeId NodeId) []Service {
	services := make([]Service, 0, len(a.ServiceAnnouncements))
	for _, sa := range a.ServiceAnnouncements {
		services = append(services, Service{
			Id:         sa.Id,
			NodeId:     nodeId,
			Type:       sa.Type,
			Pool:       a.Pool,
			Location:   a.Location,
			Properties: sa.Properties,
		})
	}
	return services
}

// Services is the query response shape: the registry's environment tag plus
// the set of live services matching the query.
type Services struct {
	Environment string    `json:"environment"`
	Services    []Service `json:"services"`
}
