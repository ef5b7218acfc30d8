// Package query composes the dynamic and static stores into the registry's
// read surface: typed and pooled lookups over the currently live services.
package query

import (
	"context"

	"discovery/model"
	"discovery/static"
)

// DynamicStore is the slice of the dynamic announcement store the resource
// reads from.
type DynamicStore interface {
	GetAll(ctx context.Context) ([]model.Service, error)
	Get(ctx context.Context, serviceType string) ([]model.Service, error)
	GetByPool(ctx context.Context, serviceType, pool string) ([]model.Service, error)
}

// Resource answers service queries by unioning dynamic and static results
// and tagging them with the registry's configured environment. The
// environment is a label attached to responses, not a filter.
type Resource struct {
	dynamic     DynamicStore
	static      static.Store
	environment string
}

func NewResource(dynamic DynamicStore, staticStore static.Store, environment string) *Resource {
	return &Resource{
		dynamic:     dynamic,
		static:      staticStore,
		environment: environment,
	}
}

// GetServices returns every live service of the given type.
func (r *Resource) GetServices(ctx context.Context, serviceType string) (model.Services, error) {
	dynamic, err := r.dynamic.Get(ctx, serviceType)
	if err != nil {
		return model.Services{}, err
	}
	return r.respond(dynamic, r.static.Get(serviceType)), nil
}

// GetServicesByPool returns every live service of the given type in the
// given pool.
func (r *Resource) GetServicesByPool(ctx context.Context, serviceType, pool string) (model.Services, error) {
	dynamic, err := r.dynamic.GetByPool(ctx, serviceType, pool)
	if err != nil {
		return model.Services{}, err
	}
	return r.respond(dynamic, r.static.GetByPool(serviceType, pool)), nil
}

// GetAllServices returns every live service.
func (r *Resource) GetAllServices(ctx context.Context) (model.Services, error) {
	dynamic, err := r.dynamic.GetAll(ctx)
	if err != nil {
		return model.Services{}, err
	}
	return r.respond(dynamic, r.static.GetAll()), nil
}

func (r *Resource) respond(dynamic, staticServices []model.Service) model.Services {
	seen := make(map[model.ServiceId]struct{}, len(dynamic))
	union := make([]model.Service, 0, len(dynamic)+len(staticServices))
	for _, svc := range dynamic {
		seen[svc.Id] = struct{}{}
		union = append(union, svc)
	}
	for _, svc := range staticServices {
		if _, ok := seen[svc.Id]; !ok {
			union = append(union, svc)
		}
	}
	return model.Services{Environment: r.environment, Services: union}
}
