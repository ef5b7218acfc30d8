// Package server implements the registry's wire server: receiver
// registration, a middleware chain, parallel request processing, replica
// self-registration, and graceful shutdown.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (single goroutine reads frames)
//	  → for each request: go handleRequest (parallel processing)
//	    → Codec.Decode → middleware chain → dispatch (reflect.Call) → Codec.Encode → write response
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"discovery/middleware"
	"discovery/replica"
	"discovery/wire/codec"
	"discovery/wire/message"
	"discovery/wire/protocol"
)

// replicaTTLSeconds is the locator lease TTL; the keep-alive renews it for
// the process lifetime.
const replicaTTLSeconds = 10

// Server accepts wire connections and dispatches requests to registered
// receivers.
type Server struct {
	serviceMap    map[string]*service     // registered receivers: "Discovery" → *service
	listener      net.Listener            // TCP listener
	wg            sync.WaitGroup          // tracks in-flight requests for graceful shutdown
	shutdown      atomic.Bool             // set during shutdown to suppress Accept errors
	middlewares   []middleware.Middleware // applied in registration order
	handler       middleware.HandlerFunc  // the built chain: mw1(mw2(...(dispatch)))
	locator       replica.Locator         // replica locator, nil if this replica is not announced
	advertiseAddr string                  // address announced to the locator; differs from the
	// listen address because ":8300" is not routable from other hosts
}

// NewServer creates a wire server with an empty receiver map.
func NewServer() *Server {
	s := new(Server)
	s.serviceMap = make(map[string]*service)
	return s
}

// Register makes a receiver's conforming methods callable over the wire.
func (svr *Server) Register(rcvr any) error {
	svc, err := newService(rcvr)
	if err != nil {
		return err
	}
	svr.serviceMap[svc.name] = svc
	return nil
}

// Use appends a middleware. Middlewares run in the order they are added.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// Serve listens on the given address, announces this replica to the locator
// (if one is provided), and runs the accept loop until Shutdown.
func (svr *Server) Serve(network, address, advertiseAddr string, loc replica.Locator) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	svr.listener = listener

	// Build the middleware chain once at startup, not per request.
	svr.handler = middleware.Chain(svr.middlewares...)(svr.dispatch)

	svr.advertiseAddr = advertiseAddr
	if loc != nil {
		svr.locator = loc
		err := loc.Announce(context.Background(), replica.Instance{
			Addr:   advertiseAddr,
			Weight: 1,
		}, replicaTTLSeconds)
		if err != nil {
			listener.Close()
			return err
		}
	}

	// Accept loop: one goroutine per connection.
	for {
		conn, err := listener.Accept()
		if err != nil {
			// During shutdown, closing the listener makes Accept fail.
			// The flag distinguishes that from a real error.
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		go svr.handleConn(conn)
	}
}

// handleConn reads frames sequentially (a TCP stream has one valid parse
// position) and dispatches each request onto its own goroutine, so a slow
// handler never blocks the requests queued behind it on the same connection.
func (svr *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	writeMu := &sync.Mutex{} // per-connection write lock, shared by all requests on this conn
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			break // connection closed or protocol error
		}

		// Heartbeats only keep the connection alive.
		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}

		go svr.handleRequest(header, body, conn, writeMu)
	}
}

// handleRequest processes one request: decode → middleware → dispatch →
// encode → write.
func (svr *Server) handleRequest(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	svr.wg.Add(1)
	defer svr.wg.Done()

	c := codec.GetCodec(codec.CodecType(header.CodecType))
	env := message.Envelope{}
	if err := c.Decode(body, &env); err != nil {
		log.Printf("server: failed to decode request body: %v", err)
		return
	}

	response := svr.handler(context.Background(), &env)

	writeMu.Lock()
	defer writeMu.Unlock()

	result, err := c.Encode(response)
	if err != nil {
		log.Printf("server: failed to encode response: %v", err)
		return
	}

	// Same Seq as the request — that is how the client matches it up.
	replyHeader := protocol.Header{
		CodecType: header.CodecType,
		MsgType:   protocol.MsgTypeResponse,
		Seq:       header.Seq,
		BodyLen:   uint32(len(result)),
	}
	if err := protocol.Encode(conn, &replyHeader, result); err != nil {
		log.Printf("server: failed to write response: %v", err)
	}
}

// Shutdown performs graceful shutdown:
//  1. Withdraw from the locator, so clients stop routing here
//  2. Set the shutdown flag, then close the listener
//  3. Wait for in-flight requests, bounded by timeout
func (svr *Server) Shutdown(timeout time.Duration) error {
	if svr.locator != nil {
		svr.locator.Withdraw(context.Background(), svr.advertiseAddr)
	}

	// Flag before close: otherwise Accept's error races ahead of the flag
	// and Serve returns a real error instead of nil.
	svr.shutdown.Store(true)
	svr.listener.Close()

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for ongoing requests to finish")
	}
}

// dispatch is the innermost handler: it parses "Service.Method", invokes the
// receiver via reflection, and wraps the reply in a response envelope. The
// middleware chain wraps it.
func (svr *Server) dispatch(ctx context.Context, req *message.Envelope) *message.Envelope {
	split := strings.Split(req.ServiceMethod, ".")
	if len(split) != 2 {
		return &message.Envelope{Error: "invalid service method format"}
	}
	serviceName := split[0]
	methodName := split[1]

	svc, ok := svr.serviceMap[serviceName]
	if !ok {
		return &message.Envelope{Error: fmt.Sprintf("unknown service: %s", serviceName)}
	}
	method, ok := svc.method[methodName]
	if !ok {
		return &message.Envelope{Error: fmt.Sprintf("unknown method: %s", req.ServiceMethod)}
	}

	argv := reflect.New(method.ArgType)
	replyv := reflect.New(method.ReplyType)

	if err := json.Unmarshal(req.Payload, argv.Interface()); err != nil {
		return &message.Envelope{Error: err.Error()}
	}

	methodErr := svc.call(method, argv, replyv)

	replyPayload, err := json.Marshal(replyv.Interface())
	if err != nil {
		return &message.Envelope{Error: err.Error()}
	}

	response := &message.Envelope{
		ServiceMethod: req.ServiceMethod,
		Payload:       replyPayload,
	}
	if methodErr != nil {
		response.Error = methodErr.Error()
	}
	return response
}
