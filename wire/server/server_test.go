package server

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"discovery/clock"
	"discovery/model"
	"discovery/query"
	"discovery/servicecodec"
	"discovery/static"
	"discovery/store"
	"discovery/wire"
	"discovery/wire/codec"
	"discovery/wire/message"
	"discovery/wire/protocol"
)

func newTestDiscovery(t *testing.T) (*wire.Discovery, *store.Store) {
	t.Helper()
	dynamicStore := store.NewInMemory(servicecodec.JSON{}, clock.System{}, 30*time.Second)
	resource := query.NewResource(dynamicStore, static.NewInMemoryStore(), "testing")
	return wire.NewDiscovery(dynamicStore, resource), dynamicStore
}

// TestServer drives the server with a raw hand-built frame, below the
// client transport, to pin down the wire contract.
func TestServer(t *testing.T) {
	svr := NewServer()
	discovery, dynamicStore := newTestDiscovery(t)
	if err := svr.Register(discovery); err != nil {
		t.Fatalf("failed to register receiver: %v", err)
	}

	go svr.Serve("tcp", ":19388", "", nil)
	time.Sleep(100 * time.Millisecond)
	defer svr.Shutdown(time.Second)

	nodeId := model.RandomNodeId()
	serviceId := model.RandomServiceId()
	_, err := dynamicStore.Put(context.Background(), nodeId, &model.DynamicAnnouncement{
		Environment: "testing",
		Location:    "/a/b/c",
		Pool:        "alpha",
		ServiceAnnouncements: []model.DynamicServiceAnnouncement{
			{Id: serviceId, Type: "storage", Properties: map[string]string{"key": "1"}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	conn, err := net.Dial("tcp", ":19388")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	payload, err := json.Marshal(&wire.ServicesArgs{Type: "storage"})
	if err != nil {
		t.Fatal(err)
	}

	env := message.Envelope{
		ServiceMethod: "Discovery.GetServices",
		Error:         "",
		Payload:       payload,
	}

	cdc := codec.GetCodec(codec.CodecTypeJSON)
	body, err := cdc.Encode(&env)
	if err != nil {
		t.Fatal(err)
	}

	header := protocol.Header{
		CodecType: protocol.CodecTypeJSON,
		MsgType:   protocol.MsgTypeRequest,
		Seq:       uint32(123),
		BodyLen:   uint32(len(body)),
	}

	if err := protocol.Encode(conn, &header, body); err != nil {
		t.Fatal(err)
	}

	replyHeader, responseBody, err := protocol.Decode(conn)
	if err != nil {
		t.Fatal(err)
	}

	if replyHeader.Seq != header.Seq {
		t.Fatalf("expect reply with seq %v, got %v", header.Seq, replyHeader.Seq)
	}
	if replyHeader.MsgType != protocol.MsgTypeResponse {
		t.Fatalf("expect response frame, got msgType %v", replyHeader.MsgType)
	}

	var responseEnv message.Envelope
	if err := cdc.Decode(responseBody, &responseEnv); err != nil {
		t.Fatal(err)
	}
	if responseEnv.Error != "" {
		t.Fatalf("unexpected error: %s", responseEnv.Error)
	}

	var reply wire.ServicesReply
	if err := json.Unmarshal(responseEnv.Payload, &reply); err != nil {
		t.Fatal(err)
	}

	if reply.Services.Environment != "testing" {
		t.Fatalf("expect environment 'testing', got %q", reply.Services.Environment)
	}
	if len(reply.Services.Services) != 1 {
		t.Fatalf("expect 1 storage service, got %d", len(reply.Services.Services))
	}
	if reply.Services.Services[0].Id != serviceId {
		t.Fatalf("expect service %s, got %s", serviceId, reply.Services.Services[0].Id)
	}
}

func TestServerUnknownMethod(t *testing.T) {
	svr := NewServer()
	discovery, _ := newTestDiscovery(t)
	if err := svr.Register(discovery); err != nil {
		t.Fatal(err)
	}

	go svr.Serve("tcp", ":19389", "", nil)
	time.Sleep(100 * time.Millisecond)
	defer svr.Shutdown(time.Second)

	conn, err := net.Dial("tcp", ":19389")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	env := message.Envelope{ServiceMethod: "Discovery.NoSuchMethod", Payload: []byte("{}")}
	cdc := codec.GetCodec(codec.CodecTypeJSON)
	body, err := cdc.Encode(&env)
	if err != nil {
		t.Fatal(err)
	}
	header := protocol.Header{
		CodecType: protocol.CodecTypeJSON,
		MsgType:   protocol.MsgTypeRequest,
		Seq:       7,
		BodyLen:   uint32(len(body)),
	}
	if err := protocol.Encode(conn, &header, body); err != nil {
		t.Fatal(err)
	}

	_, responseBody, err := protocol.Decode(conn)
	if err != nil {
		t.Fatal(err)
	}
	var responseEnv message.Envelope
	if err := cdc.Decode(responseBody, &responseEnv); err != nil {
		t.Fatal(err)
	}
	if responseEnv.Error == "" {
		t.Fatal("expect an error for an unknown method")
	}
}

func TestRegisterRejectsNonPointer(t *testing.T) {
	svr := NewServer()
	if err := svr.Register(struct{}{}); err == nil {
		t.Fatal("expect error when registering a non-pointer receiver")
	}
}
