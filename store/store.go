// Package store implements the dynamic announcement store: a TTL-keyed,
// node-addressed, last-writer-wins registry of service announcements.
//
// Expiration is data, not workflow. Every stored column carries its absolute
// expiration time in its name; queries exclude dead columns by predicate and
// the reaper merely reclaims their space. The set of live services is defined
// purely by (now, stored columns), so correctness never depends on the reaper
// having run.
package store

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync/atomic"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"discovery/clock"
	"discovery/model"
	"discovery/servicecodec"
)

// ColumnFamily names the backing column family for dynamic announcements.
const ColumnFamily = "dynamic_announcements"

const (
	pageSize     = 1000
	reapInterval = time.Minute
)

// Store is the dynamic announcement store. It is safe for concurrent use
// from arbitrary goroutines; the backing keyspace handle is shared and the
// reaper runs on a goroutine the store exclusively owns.
type Store struct {
	backend backend
	codec   servicecodec.Codec
	clock   clock.Clock
	maxAge  time.Duration

	initialized atomic.Bool
	stop        chan struct{}

	reapPasses    atomic.Int64
	reapedColumns atomic.Int64
}

// New builds a store over the given backend. Most callers want NewEtcd or
// NewInMemory instead.
func New(b backend, codec servicecodec.Codec, clk clock.Clock, maxAge time.Duration) *Store {
	return &Store{
		backend: b,
		codec:   codec,
		clock:   clk,
		maxAge:  maxAge,
		stop:    make(chan struct{}),
	}
}

// NewEtcd builds a store persisted to an etcd cluster under the given
// keyspace prefix. The client is shared and not owned by the store.
func NewEtcd(client *clientv3.Client, keyspace string, codec servicecodec.Codec, clk clock.Clock, maxAge time.Duration) *Store {
	return New(newEtcdBackend(client, keyspace), codec, clk, maxAge)
}

// NewInMemory builds a store over process-local memory, for tests and
// single-process deployments.
func NewInMemory(codec servicecodec.Codec, clk clock.Clock, maxAge time.Duration) *Store {
	return New(newMemoryBackend(), codec, clk, maxAge)
}

// Initialize starts the background reaper. Calling it twice is a programming
// error and fails with an "already initialized" error.
func (s *Store) Initialize() error {
	if !s.initialized.CompareAndSwap(false, true) {
		return errors.New("already initialized")
	}
	go s.reapLoop()
	return nil
}

// Shutdown cancels future reaper runs. It does not wait for an in-flight
// pass to finish.
func (s *Store) Shutdown() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Put writes one announcement column for the node and reports whether this
// looks like a fresh insert. The boolean is best-effort only: it is computed
// by reading back the row's live columns after the write, with no
// serialization against concurrent announcers, and callers must not rely on
// it for mutual exclusion.
func (s *Store) Put(ctx context.Context, nodeId model.NodeId, announcement *model.DynamicAnnouncement) (bool, error) {
	if nodeId == "" {
		return false, errors.New("nodeId is null")
	}
	if announcement == nil {
		return false, errors.New("announcement is null")
	}

	services := announcement.Services(nodeId)
	value, err := s.codec.Encode(services)
	if err != nil {
		return false, err
	}

	now := s.clock.NowMillis()
	expiration := now + s.maxAge.Milliseconds()

	err = s.backend.putColumn(ctx, string(nodeId), column{
		expiration: expiration,
		value:      value,
		clock:      now,
	})
	if err != nil {
		return false, err
	}

	// A live column written before ours means a prior announcement already
	// existed at the time of this write.
	cols, err := s.backend.listColumns(ctx, string(nodeId))
	if err != nil {
		return false, err
	}
	for _, col := range cols {
		if col.expiration > now && col.clock < now {
			return false, nil
		}
	}
	return true, nil
}

// Delete removes the node's row and reports whether any not-yet-fully-expired
// entry was present. The existence check is not serialized with the deletion;
// a concurrent Put can make the boolean lie. The next reaper pass or Put
// converges the state.
func (s *Store) Delete(ctx context.Context, nodeId model.NodeId) (bool, error) {
	if nodeId == "" {
		return false, errors.New("nodeId is null")
	}

	cutoff := s.clock.NowMillis() - s.maxAge.Milliseconds()
	cols, err := s.backend.listColumns(ctx, string(nodeId))
	if err != nil {
		return false, err
	}
	existed := false
	for _, col := range cols {
		if col.expiration > cutoff {
			existed = true
			break
		}
	}

	if err := s.backend.deleteRow(ctx, string(nodeId)); err != nil {
		return false, err
	}
	return existed, nil
}

// GetAll scans every row and returns the union of each node's chosen column:
// the live column with the largest write timestamp. Columns that fail to
// decode are logged and skipped rather than failing the whole query.
func (s *Store) GetAll(ctx context.Context) ([]model.Service, error) {
	now := s.clock.NowMillis()
	seen := make(map[model.ServiceId]model.Service)

	start := ""
	for {
		rows, next, err := s.backend.scanRows(ctx, start, pageSize)
		if err != nil {
			return nil, err
		}

		for _, r := range rows {
			live := make([]column, 0, len(r.columns))
			for _, col := range r.columns {
				if col.expiration >= now {
					live = append(live, col)
				}
			}
			// Newest write first; fall through to the next candidate if the
			// chosen column's value turns out to be malformed. Stable sort
			// keeps the tiebreak on equal clocks deterministic (columns
			// arrive expiration-ascending from the backend).
			sort.SliceStable(live, func(i, j int) bool { return live[i].clock > live[j].clock })
			for _, col := range live {
				services, err := s.codec.Decode(col.value)
				if err != nil {
					log.Printf("store: skipping malformed column for node %s: %v", r.key, err)
					continue
				}
				for _, svc := range services {
					seen[svc.Id] = svc
				}
				break
			}
		}

		if next == "" {
			break
		}
		start = next
	}

	services := make([]model.Service, 0, len(seen))
	for _, svc := range seen {
		services = append(services, svc)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Id < services[j].Id })
	return services, nil
}

// Get returns all live services of the given type.
func (s *Store) Get(ctx context.Context, serviceType string) ([]model.Service, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]model.Service, 0, len(all))
	for _, svc := range all {
		if svc.MatchesType(serviceType) {
			matched = append(matched, svc)
		}
	}
	return matched, nil
}

// GetByPool returns all live services of the given type in the given pool.
func (s *Store) GetByPool(ctx context.Context, serviceType, pool string) ([]model.Service, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]model.Service, 0, len(all))
	for _, svc := range all {
		if svc.MatchesType(serviceType) && svc.MatchesPool(pool) {
			matched = append(matched, svc)
		}
	}
	return matched, nil
}

// ReapStats returns the number of completed reaper passes and the total
// number of columns physically removed.
func (s *Store) ReapStats() (passes, columns int64) {
	return s.reapPasses.Load(), s.reapedColumns.Load()
}

// reapLoop runs removeExpired every reapInterval with fixed delay: the next
// run starts one interval after the previous one finished.
func (s *Store) reapLoop() {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-timer.C:
			s.reapTick()
			s.reapPasses.Add(1)
			timer.Reset(reapInterval)
		}
	}
}

// reapTick runs one reaper pass, containing both errors and panics. A
// failure inside a pass must never kill the loop: a panic escaping this
// goroutine would take down the whole process and silently halt expiration
// reclamation for every row.
func (s *Store) reapTick() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("store: reaper pass panicked: %v", r)
		}
	}()
	if err := s.removeExpired(context.Background()); err != nil {
		log.Printf("store: reaper pass failed: %v", err)
	}
}

// removeExpired deletes every column whose expiration has passed. It never
// touches a column whose expiration is in the future.
func (s *Store) removeExpired(ctx context.Context) error {
	now := s.clock.NowMillis()

	start := ""
	for {
		rows, next, err := s.backend.scanRows(ctx, start, pageSize)
		if err != nil {
			return err
		}

		for _, r := range rows {
			var expired []int64
			for _, col := range r.columns {
				if col.expiration <= now {
					expired = append(expired, col.expiration)
				}
			}
			if len(expired) == 0 {
				continue
			}
			if err := s.backend.deleteColumns(ctx, r.key, expired); err != nil {
				return err
			}
			s.reapedColumns.Add(int64(len(expired)))
		}

		if next == "" {
			return nil
		}
		start = next
	}
}
