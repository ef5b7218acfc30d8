// Package announce keeps a node's announcement alive. A long-running
// service process hands its announcement to an Announcer, which re-puts it
// on a timer well inside the registry's max age, so the node never lapses
// from query results while it is healthy.
package announce

import (
	"errors"
	"log"
	"time"

	"discovery/model"
)

// Putter is the slice of the registry client the announcer uses.
type Putter interface {
	Put(nodeId model.NodeId, announcement model.DynamicAnnouncement) (bool, error)
}

// Announcer periodically refreshes one node's announcement.
type Announcer struct {
	client       Putter
	nodeId       model.NodeId
	announcement model.DynamicAnnouncement
	interval     time.Duration
	stop         chan struct{}
	done         chan struct{}
}

// New creates an announcer refreshing at half the registry's max age, so a
// single missed tick from scheduling jitter does not expire the node.
func New(client Putter, nodeId model.NodeId, announcement model.DynamicAnnouncement, maxAge time.Duration) *Announcer {
	return &Announcer{
		client:       client,
		nodeId:       nodeId,
		announcement: announcement,
		interval:     maxAge / 2,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start performs the initial announcement, then refreshes on a ticker until
// Close. The initial put must succeed; refresh failures are logged and
// retried on the next tick.
func (a *Announcer) Start() error {
	if a.interval <= 0 {
		return errors.New("announce interval must be positive")
	}
	if _, err := a.client.Put(a.nodeId, a.announcement); err != nil {
		return err
	}

	go func() {
		defer close(a.done)
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-a.stop:
				return
			case <-ticker.C:
				if _, err := a.client.Put(a.nodeId, a.announcement); err != nil {
					log.Printf("announce: refresh for node %s failed: %v", a.nodeId, err)
				}
			}
		}
	}()
	return nil
}

// Close stops refreshing and waits for the refresh goroutine to exit. Only
// valid after a successful Start. It does not delete the announcement: an
// unrefreshed node lapses on its own via TTL, and explicit withdrawal is the
// operator's call.
func (a *Announcer) Close() {
	select {
	case <-a.stop:
	default:
		close(a.stop)
	}
	<-a.done
}
