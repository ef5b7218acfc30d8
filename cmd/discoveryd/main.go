// Command discoveryd runs one discovery-registry replica: it ensures the
// backing schema, starts the dynamic store and its reaper, and serves the
// wire protocol until interrupted.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"discovery/clock"
	"discovery/middleware"
	"discovery/query"
	"discovery/replica"
	"discovery/servicecodec"
	"discovery/static"
	"discovery/store"
	"discovery/wire"
	"discovery/wire/server"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("discoveryd: %v", err)
	}

	etcdClient, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.EtcdEndpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		log.Fatalf("discoveryd: connect backing store: %v", err)
	}
	defer etcdClient.Close()

	// Schema must be in place before any read or write; a failure here is
	// fatal to the process.
	schema := store.NewSchemaManager(etcdClient, cfg.Keyspace)
	if err := schema.Ensure(context.Background()); err != nil {
		log.Fatalf("discoveryd: ensure schema: %v", err)
	}

	dynamicStore := store.NewEtcd(etcdClient, cfg.Keyspace, servicecodec.JSON{}, clock.System{}, cfg.MaxAge)
	if err := dynamicStore.Initialize(); err != nil {
		log.Fatalf("discoveryd: %v", err)
	}
	defer dynamicStore.Shutdown()

	staticStore := static.NewInMemoryStore(cfg.StaticServices...)
	resource := query.NewResource(dynamicStore, staticStore, cfg.Environment)

	svr := server.NewServer()
	svr.Use(middleware.LoggingMiddleware())
	svr.Use(middleware.RateLimitMiddleware(1000, 2000))
	svr.Use(middleware.TimeOutMiddleware(10 * time.Second))
	if err := svr.Register(wire.NewDiscovery(dynamicStore, resource)); err != nil {
		log.Fatalf("discoveryd: %v", err)
	}

	locator := replica.NewEtcdLocatorFromClient(etcdClient)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Println("discoveryd: shutting down")
		if err := svr.Shutdown(5 * time.Second); err != nil {
			log.Printf("discoveryd: shutdown: %v", err)
		}
	}()

	log.Printf("discoveryd: environment=%s listening on %s (advertising %s)",
		cfg.Environment, cfg.ListenAddr, cfg.AdvertiseAddr)
	if err := svr.Serve("tcp", cfg.ListenAddr, cfg.AdvertiseAddr, locator); err != nil {
		log.Fatalf("discoveryd: serve: %v", err)
	}
}
