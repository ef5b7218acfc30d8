// Package transport implements the client-side transport with multiplexing
// and heartbeat.
//
// ClientTransport runs many concurrent calls over one TCP connection: each
// request gets a unique sequence id, and a background goroutine (recvLoop)
// reads responses and routes each one to the caller waiting on that id.
//
//	goroutine-1 ──Send(seq=1)──┐
//	goroutine-2 ──Send(seq=2)──┼──→ single TCP conn ──→ registry
//	goroutine-3 ──Send(seq=3)──┘
//
//	recvLoop:  ←── response(seq=2) → pending[2] chan → goroutine-2 wakes up
package transport

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"discovery/wire/codec"
	"discovery/wire/message"
	"discovery/wire/protocol"
)

// ClientTransport manages a single multiplexed TCP connection.
type ClientTransport struct {
	conn    net.Conn        // underlying TCP connection
	codec   codec.CodecType // serialization format for this transport
	seq     uint32          // monotonically increasing sequence number (protected by sending mutex)
	pending sync.Map        // map[uint32]chan *message.Envelope — each request waits on its own channel
	sending sync.Mutex      // write lock; concurrent writers would interleave frames
}

// NewClientTransport wraps the connection and starts two background
// goroutines: recvLoop routes responses to pending callers, heartbeatLoop
// probes the connection so the registry doesn't close it as idle.
func NewClientTransport(conn net.Conn, codecType codec.CodecType) *ClientTransport {
	t := &ClientTransport{
		conn:  conn,
		codec: codecType,
	}
	go t.recvLoop()
	go t.heartbeatLoop(30 * time.Second)
	return t
}

// Send serializes and writes one request, returning the sequence number and
// the channel its response will arrive on.
//
// The sending mutex makes the whole frame (header + body) one atomic write;
// without it, concurrent requests would interleave bytes on the wire.
func (t *ClientTransport) Send(serviceMethod string, args any) (uint32, <-chan *message.Envelope, error) {
	t.sending.Lock()
	defer t.sending.Unlock()

	t.seq++
	seq := t.seq

	payload, err := json.Marshal(args)
	if err != nil {
		return 0, nil, err
	}

	env := message.Envelope{
		ServiceMethod: serviceMethod,
		Error:         "",
		Payload:       payload,
	}
	cdc := codec.GetCodec(t.codec)
	body, err := cdc.Encode(&env)
	if err != nil {
		return 0, nil, err
	}

	header := protocol.Header{
		CodecType: byte(t.codec),
		MsgType:   protocol.MsgTypeRequest,
		Seq:       seq,
		BodyLen:   uint32(len(body)),
	}

	// Register the response channel BEFORE writing, so recvLoop cannot see
	// the response first. Buffered so recvLoop never blocks on delivery.
	respChan := make(chan *message.Envelope, 1)
	t.pending.Store(seq, respChan)

	if err := protocol.Encode(t.conn, &header, body); err != nil {
		t.pending.Delete(seq)
		return 0, nil, err
	}

	return seq, respChan, nil
}

// recvLoop is the single reader for this connection: TCP is a byte stream,
// so frame boundaries only parse correctly with sequential reads. Each
// response is routed to its caller by sequence number; responses may arrive
// in any order.
func (t *ClientTransport) recvLoop() {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			// Connection broken — unblock every pending caller.
			t.closeAllPending(err)
			return
		}

		responseEnv := message.Envelope{}
		cdc := codec.GetCodec(codec.CodecType(header.CodecType))
		cdc.Decode(body, &responseEnv)

		if channel, ok := t.pending.LoadAndDelete(header.Seq); ok {
			channel.(chan *message.Envelope) <- &responseEnv
		}
	}
}

// closeAllPending delivers an error envelope to every pending caller so
// nobody blocks forever on a dead connection.
func (t *ClientTransport) closeAllPending(err error) {
	t.pending.Range(func(key, value any) bool {
		channel := value.(chan *message.Envelope)
		channel <- &message.Envelope{Error: err.Error()}
		return true
	})
	t.pending.Clear()
}

// Conn returns the underlying TCP connection.
func (t *ClientTransport) Conn() net.Conn {
	return t.conn
}

// heartbeatLoop sends periodic heartbeat frames (MsgType=Heartbeat, no body)
// so an otherwise idle connection is not closed by the peer.
func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		header := &protocol.Header{
			MsgType: protocol.MsgTypeHeartbeat,
			BodyLen: 0,
		}
		// Heartbeats share the connection, so they take the write lock too.
		t.sending.Lock()
		err := protocol.Encode(t.conn, header, nil)
		t.sending.Unlock()
		if err != nil {
			return
		}
	}
}
