package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discovery/clock"
	"discovery/model"
	"discovery/servicecodec"
	"discovery/static"
	"discovery/store"
)

type fixture struct {
	dynamic  *store.Store
	resource *Resource

	redNode, greenNode, blueNode model.NodeId
	redStorage, redWeb           model.Service
	greenStorage, blueStorage    model.Service
}

// setUp loads the three-node state every scenario starts from:
// red (/a/b/c, alpha): storage + web, green (/x/y/z, alpha): storage,
// blue (/a/b/c, beta): storage.
func setUp(t *testing.T, staticServices ...model.Service) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		dynamic:   store.NewInMemory(servicecodec.JSON{}, clock.NewManual(1_700_000_000_000), 30*time.Second),
		redNode:   model.RandomNodeId(),
		greenNode: model.RandomNodeId(),
		blueNode:  model.RandomNodeId(),
	}
	f.resource = NewResource(f.dynamic, static.NewInMemoryStore(staticServices...), "testing")

	redStorage := model.DynamicServiceAnnouncement{Id: model.RandomServiceId(), Type: "storage", Properties: map[string]string{"key": "1"}}
	redWeb := model.DynamicServiceAnnouncement{Id: model.RandomServiceId(), Type: "web", Properties: map[string]string{"key": "2"}}
	greenStorage := model.DynamicServiceAnnouncement{Id: model.RandomServiceId(), Type: "storage", Properties: map[string]string{"key": "3"}}
	blueStorage := model.DynamicServiceAnnouncement{Id: model.RandomServiceId(), Type: "storage", Properties: map[string]string{"key": "4"}}

	red := &model.DynamicAnnouncement{Environment: "testing", Location: "/a/b/c", Pool: "alpha",
		ServiceAnnouncements: []model.DynamicServiceAnnouncement{redStorage, redWeb}}
	green := &model.DynamicAnnouncement{Environment: "testing", Location: "/x/y/z", Pool: "alpha",
		ServiceAnnouncements: []model.DynamicServiceAnnouncement{greenStorage}}
	blue := &model.DynamicAnnouncement{Environment: "testing", Location: "/a/b/c", Pool: "beta",
		ServiceAnnouncements: []model.DynamicServiceAnnouncement{blueStorage}}

	_, err := f.dynamic.Put(ctx, f.redNode, red)
	require.NoError(t, err)
	_, err = f.dynamic.Put(ctx, f.greenNode, green)
	require.NoError(t, err)
	_, err = f.dynamic.Put(ctx, f.blueNode, blue)
	require.NoError(t, err)

	f.redStorage = red.Services(f.redNode)[0]
	f.redWeb = red.Services(f.redNode)[1]
	f.greenStorage = green.Services(f.greenNode)[0]
	f.blueStorage = blue.Services(f.blueNode)[0]
	return f
}

func TestGetByType(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()

	storage, err := f.resource.GetServices(ctx, "storage")
	require.NoError(t, err)
	assert.Equal(t, "testing", storage.Environment)
	assert.ElementsMatch(t, []model.Service{f.redStorage, f.greenStorage, f.blueStorage}, storage.Services)

	web, err := f.resource.GetServices(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, "testing", web.Environment)
	assert.ElementsMatch(t, []model.Service{f.redWeb}, web.Services)

	unknown, err := f.resource.GetServices(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, "testing", unknown.Environment)
	assert.Empty(t, unknown.Services)
}

func TestGetByTypeAndPool(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()

	alpha, err := f.resource.GetServicesByPool(ctx, "storage", "alpha")
	require.NoError(t, err)
	assert.Equal(t, "testing", alpha.Environment)
	assert.ElementsMatch(t, []model.Service{f.redStorage, f.greenStorage}, alpha.Services)

	beta, err := f.resource.GetServicesByPool(ctx, "storage", "beta")
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.Service{f.blueStorage}, beta.Services)

	unknown, err := f.resource.GetServicesByPool(ctx, "storage", "unknown")
	require.NoError(t, err)
	assert.Empty(t, unknown.Services)
}

// Static entries are unioned into every matching query result.
func TestStaticUnion(t *testing.T) {
	staticStorage := model.Service{
		Id:       model.RandomServiceId(),
		NodeId:   model.RandomNodeId(),
		Type:     "storage",
		Pool:     "alpha",
		Location: "/static",
	}
	f := setUp(t, staticStorage)
	ctx := context.Background()

	storage, err := f.resource.GetServices(ctx, "storage")
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.Service{f.redStorage, f.greenStorage, f.blueStorage, staticStorage}, storage.Services)

	alpha, err := f.resource.GetServicesByPool(ctx, "storage", "alpha")
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.Service{f.redStorage, f.greenStorage, staticStorage}, alpha.Services)

	all, err := f.resource.GetAllServices(ctx)
	require.NoError(t, err)
	assert.Len(t, all.Services, 5)
}
