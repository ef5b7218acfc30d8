package test

import (
	"testing"
	"time"

	"discovery/clock"
	"discovery/loadbalance"
	"discovery/middleware"
	"discovery/model"
	"discovery/query"
	"discovery/replica"
	"discovery/servicecodec"
	"discovery/static"
	"discovery/store"
	"discovery/wire"
	"discovery/wire/client"
	"discovery/wire/codec"
	"discovery/wire/server"
)

// ---- shared fixtures ----

func storageAnnouncement(pool, location, key string) (model.ServiceId, model.DynamicAnnouncement) {
	id := model.RandomServiceId()
	return id, model.DynamicAnnouncement{
		Environment: "testing",
		Location:    location,
		Pool:        pool,
		ServiceAnnouncements: []model.DynamicServiceAnnouncement{
			{Id: id, Type: "storage", Properties: map[string]string{"key": key}},
		},
	}
}

func startRegistry(tb testing.TB, addr string, staticServices ...model.Service) *server.Server {
	tb.Helper()

	dynamicStore := store.NewInMemory(servicecodec.JSON{}, clock.System{}, 30*time.Second)
	if err := dynamicStore.Initialize(); err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(dynamicStore.Shutdown)

	resource := query.NewResource(dynamicStore, static.NewInMemoryStore(staticServices...), "testing")

	svr := server.NewServer()
	svr.Use(middleware.LoggingMiddleware())
	if err := svr.Register(wire.NewDiscovery(dynamicStore, resource)); err != nil {
		tb.Fatal(err)
	}
	go svr.Serve("tcp", addr, "", nil)
	tb.Cleanup(func() { svr.Shutdown(3 * time.Second) })
	time.Sleep(100 * time.Millisecond)
	return svr
}

// TestFullAnnounceQueryCycle exercises the whole chain:
// Client → Locator → LB → Transport → Protocol → Codec → Middleware → Server →
// Discovery receiver → Store/Resource.
func TestFullAnnounceQueryCycle(t *testing.T) {
	startRegistry(t, ":19501")

	loc := replica.NewStaticLocator("127.0.0.1:19501")
	bal := &loadbalance.RoundRobinBalancer{}
	cli := client.New(loc, bal, codec.CodecTypeJSON, 2)

	redNode := model.RandomNodeId()
	redStorageId, redAnn := storageAnnouncement("alpha", "/a/b/c", "1")
	redWebId := model.RandomServiceId()
	redAnn.ServiceAnnouncements = append(redAnn.ServiceAnnouncements,
		model.DynamicServiceAnnouncement{Id: redWebId, Type: "web", Properties: map[string]string{"key": "2"}})

	greenNode := model.RandomNodeId()
	greenStorageId, greenAnn := storageAnnouncement("alpha", "/x/y/z", "3")

	blueNode := model.RandomNodeId()
	blueStorageId, blueAnn := storageAnnouncement("beta", "/a/b/c", "4")

	// Announce all three nodes
	inserted, err := cli.Put(redNode, redAnn)
	if err != nil {
		t.Fatalf("Put red failed: %v", err)
	}
	if !inserted {
		t.Fatal("expect fresh insert for red")
	}
	if _, err := cli.Put(greenNode, greenAnn); err != nil {
		t.Fatalf("Put green failed: %v", err)
	}
	if _, err := cli.Put(blueNode, blueAnn); err != nil {
		t.Fatalf("Put blue failed: %v", err)
	}

	// Query by type
	storage, err := cli.GetServices("storage")
	if err != nil {
		t.Fatalf("GetServices failed: %v", err)
	}
	if storage.Environment != "testing" {
		t.Fatalf("expect environment 'testing', got %q", storage.Environment)
	}
	if len(storage.Services) != 3 {
		t.Fatalf("expect 3 storage services, got %d", len(storage.Services))
	}
	found := map[model.ServiceId]model.Service{}
	for _, svc := range storage.Services {
		found[svc.Id] = svc
	}
	for _, id := range []model.ServiceId{redStorageId, greenStorageId, blueStorageId} {
		if _, ok := found[id]; !ok {
			t.Fatalf("storage result missing service %s", id)
		}
	}
	if found[redStorageId].NodeId != redNode || found[redStorageId].Location != "/a/b/c" || found[redStorageId].Pool != "alpha" {
		t.Fatalf("red storage service lost its node metadata: %+v", found[redStorageId])
	}

	web, err := cli.GetServices("web")
	if err != nil {
		t.Fatal(err)
	}
	if len(web.Services) != 1 || web.Services[0].Id != redWebId {
		t.Fatalf("expect only red's web service, got %+v", web.Services)
	}

	unknown, err := cli.GetServices("unknown")
	if err != nil {
		t.Fatal(err)
	}
	if len(unknown.Services) != 0 {
		t.Fatalf("expect no services for unknown type, got %d", len(unknown.Services))
	}

	// Query by type and pool
	alpha, err := cli.GetServicesByPool("storage", "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(alpha.Services) != 2 {
		t.Fatalf("expect 2 alpha storage services, got %d", len(alpha.Services))
	}
	beta, err := cli.GetServicesByPool("storage", "beta")
	if err != nil {
		t.Fatal(err)
	}
	if len(beta.Services) != 1 || beta.Services[0].Id != blueStorageId {
		t.Fatalf("expect only blue in beta pool, got %+v", beta.Services)
	}
	none, err := cli.GetServicesByPool("storage", "unknown")
	if err != nil {
		t.Fatal(err)
	}
	if len(none.Services) != 0 {
		t.Fatalf("expect no services for unknown pool, got %d", len(none.Services))
	}

	// Delete red and verify it disappears
	existed, err := cli.Delete(redNode)
	if err != nil {
		t.Fatal(err)
	}
	if !existed {
		t.Fatal("delete of an announced node should report it existed")
	}
	storage, err = cli.GetServices("storage")
	if err != nil {
		t.Fatal(err)
	}
	if len(storage.Services) != 2 {
		t.Fatalf("expect 2 storage services after delete, got %d", len(storage.Services))
	}
	existed, err = cli.Delete(redNode)
	if err != nil {
		t.Fatal(err)
	}
	if existed {
		t.Fatal("second delete should report nothing existed")
	}
}

// TestStaticUnionOverWire verifies operator-declared services are merged
// into wire query results alongside dynamic announcements.
func TestStaticUnionOverWire(t *testing.T) {
	staticStorage := model.Service{
		Id:       model.RandomServiceId(),
		NodeId:   model.RandomNodeId(),
		Type:     "storage",
		Pool:     "alpha",
		Location: "/static",
	}
	startRegistry(t, ":19502", staticStorage)

	cli := client.New(replica.NewStaticLocator("127.0.0.1:19502"), &loadbalance.RoundRobinBalancer{}, codec.CodecTypeJSON, 1)

	node := model.RandomNodeId()
	dynamicId, ann := storageAnnouncement("alpha", "/dyn", "1")
	if _, err := cli.Put(node, ann); err != nil {
		t.Fatal(err)
	}

	storage, err := cli.GetServices("storage")
	if err != nil {
		t.Fatal(err)
	}
	if len(storage.Services) != 2 {
		t.Fatalf("expect dynamic + static service, got %d", len(storage.Services))
	}
	ids := map[model.ServiceId]bool{}
	for _, svc := range storage.Services {
		ids[svc.Id] = true
	}
	if !ids[dynamicId] || !ids[staticStorage.Id] {
		t.Fatalf("union missing a service: %v", ids)
	}
}

// TestMultiReplica runs two registry replicas. Each has its own in-memory
// store, so this only checks that load-balanced calls succeed against both.
func TestMultiReplica(t *testing.T) {
	startRegistry(t, ":19503")
	startRegistry(t, ":19504")

	loc := replica.NewStaticLocator("127.0.0.1:19503", "127.0.0.1:19504")
	cli := client.New(loc, &loadbalance.RoundRobinBalancer{}, codec.CodecTypeBinary, 1)

	for i := 0; i < 4; i++ {
		if _, err := cli.GetServices("storage"); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
}
