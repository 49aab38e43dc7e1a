package tagindex

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"

	"beacon/pkg/domain"
)

const numStripes = 64

type handleState struct {
	tags     domain.Tags
	revision int64
}

type handleShard struct {
	mu      sync.Mutex
	handles map[domain.Handle]handleState
}

type tagStripe struct {
	mu   sync.RWMutex
	tags map[string]map[domain.Handle]struct{}
}

// InMemoryIndex stripes tags and handles across independent locks.
// Replace holds its handle's shard lock while touching tag stripes one at a
// time, so per-handle replacements are serialized and never deadlock.
type InMemoryIndex struct {
	handles [numStripes]handleShard
	stripes [numStripes]tagStripe
}

func NewInMemoryIndex() *InMemoryIndex {
	idx := &InMemoryIndex{}
	for i := range idx.handles {
		idx.handles[i].handles = make(map[domain.Handle]handleState)
		idx.stripes[i].tags = make(map[string]map[domain.Handle]struct{})
	}
	return idx
}

func stripeOf(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % numStripes
}

func (idx *InMemoryIndex) Replace(_ context.Context, handle domain.Handle, tags domain.Tags, revision int64) error {
	hs := &idx.handles[stripeOf(string(handle))]
	hs.mu.Lock()
	defer hs.mu.Unlock()

	prev, known := hs.handles[handle]
	if known && revision <= prev.revision {
		return nil
	}

	for _, tag := range prev.tags {
		if !tags.Contains(tag) {
			idx.remove(tag, handle)
		}
	}
	for _, tag := range tags {
		if !prev.tags.Contains(tag) {
			idx.add(tag, handle)
		}
	}
	hs.handles[handle] = handleState{tags: append(domain.Tags(nil), tags...), revision: revision}
	return nil
}

func (idx *InMemoryIndex) add(tag string, handle domain.Handle) {
	st := &idx.stripes[stripeOf(tag)]
	st.mu.Lock()
	defer st.mu.Unlock()
	set, ok := st.tags[tag]
	if !ok {
		set = make(map[domain.Handle]struct{})
		st.tags[tag] = set
	}
	set[handle] = struct{}{}
}

func (idx *InMemoryIndex) remove(tag string, handle domain.Handle) {
	st := &idx.stripes[stripeOf(tag)]
	st.mu.Lock()
	defer st.mu.Unlock()
	set := st.tags[tag]
	delete(set, handle)
	if len(set) == 0 {
		delete(st.tags, tag)
	}
}

func (idx *InMemoryIndex) Lookup(_ context.Context, tags domain.Tags) (map[domain.Handle]domain.Tags, error) {
	out := make(map[domain.Handle]domain.Tags)
	for _, tag := range tags {
		st := &idx.stripes[stripeOf(tag)]
		st.mu.RLock()
		for h := range st.tags[tag] {
			out[h] = append(out[h], tag)
		}
		st.mu.RUnlock()
	}
	for h := range out {
		sort.Strings(out[h])
	}
	return out, nil
}
