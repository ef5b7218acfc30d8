// Package static holds operator-declared services. Static entries have no
// TTL and never expire; they are injected at startup and unioned into every
// query result alongside the dynamic announcements.
package static

import "discovery/model"

// Store produces the set of operator-declared services.
type Store interface {
	GetAll() []model.Service
	Get(serviceType string) []model.Service
	GetByPool(serviceType, pool string) []model.Service
}

// InMemoryStore is an immutable snapshot of static services supplied at
// construction. The registry offers no write path for static entries.
type InMemoryStore struct {
	services []model.Service
}

func NewInMemoryStore(services ...model.Service) *InMemoryStore {
	snapshot := make([]model.Service, len(services))
	copy(snapshot, services)
	return &InMemoryStore{services: snapshot}
}

func (s *InMemoryStore) GetAll() []model.Service {
	out := make([]model.Service, len(s.services))
	copy(out, s.services)
	return out
}

func (s *InMemoryStore) Get(serviceType string) []model.Service {
	out := make([]model.Service, 0, len(s.services))
	for _, svc := range s.services {
		if svc.MatchesType(serviceType) {
			out = append(out, svc)
		}
	}
	return out
}

func (s *InMemoryStore) GetByPool(serviceType, pool string) []model.Service {
	out := make([]model.Service, 0, len(s.services))
	for _, svc := range s.services {
		if svc.MatchesType(serviceType) && svc.MatchesPool(pool) {
			out = append(out, svc)
		}
	}
	return out
}
