package store

import (
	"context"
	"hash/fnv"
	"sync"

	"beacon/internal/node/models"
	"beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

// numShards spreads handles over independent map locks. Per-record mutexes
// serialize updates to one handle; different handles never contend on a record.
const numShards = 64

type entry struct {
	mu   sync.Mutex
	node *models.Node
}

type shard struct {
	mu    sync.RWMutex
	nodes map[domain.Handle]*entry
}

// InMemoryStore is a sharded, lock-per-record node store. There is no global lock.
type InMemoryStore struct {
	shards [numShards]shard
}

func NewInMemoryStore() *InMemoryStore {
	s := &InMemoryStore{}
	for i := range s.shards {
		s.shards[i].nodes = make(map[domain.Handle]*entry)
	}
	return s
}

func (s *InMemoryStore) shardFor(handle domain.Handle) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(handle))
	return &s.shards[h.Sum32()%numShards]
}

func (s *InMemoryStore) lookup(handle domain.Handle) (*entry, bool) {
	sh := s.shardFor(handle)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.nodes[handle]
	return e, ok
}

// Create inserts a new node. Returns sentinel.ErrConflict if the handle exists.
func (s *InMemoryStore) Create(_ context.Context, node *models.Node) error {
	sh := s.shardFor(node.Handle)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.nodes[node.Handle]; exists {
		return sentinel.ErrConflict
	}
	sh.nodes[node.Handle] = &entry{node: node.Clone()}
	return nil
}

// Get returns a copy of the node. Returns sentinel.ErrNotFound for unknown handles.
func (s *InMemoryStore) Get(_ context.Context, handle domain.Handle) (*models.Node, error) {
	e, ok := s.lookup(handle)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.node.Clone(), nil
}

// Update applies fn to a working copy under the record lock and commits it
// only when fn succeeds, so a failed update leaves the record untouched.
func (s *InMemoryStore) Update(_ context.Context, handle domain.Handle, fn func(*models.Node) error) (*models.Node, error) {
	e, ok := s.lookup(handle)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.node.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	e.node = working
	return working.Clone(), nil
}

// GetMany returns copies of the known nodes among handles. Unknown handles are skipped.
func (s *InMemoryStore) GetMany(ctx context.Context, handles []domain.Handle) ([]*models.Node, error) {
	out := make([]*models.Node, 0, len(handles))
	for _, h := range handles {
		node, err := s.Get(ctx, h)
		if err != nil {
			continue
		}
		out = append(out, node)
	}
	return out, nil
}

// List returns a point-in-time copy of every node. Each record is copied under
// its own lock; no lock is held across the whole walk.
func (s *InMemoryStore) List(_ context.Context) ([]*models.Node, error) {
	var entries []*entry
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, e := range sh.nodes {
			entries = append(entries, e)
		}
		sh.mu.RUnlock()
	}

	out := make([]*models.Node, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.node.Clone())
		e.mu.Unlock()
	}
	return out, nil
}
