// Package ownership records which client created which file.
package ownership

import (
	"hash/fnv"
	"sort"
	"sync"

	"github.com/ajaxzhan/fileserver/pkg/types"
)

// Registry maps a client identity to the resolved paths it has created.
// Implementations must be safe for concurrent use.
type Registry interface {
	// IsOwner reports whether id has recorded ownership of path.
	// An identity with no records owns nothing.
	IsOwner(id types.ClientID, path string) bool

	// Record adds path to id's set. Recording twice is a no-op.
	Record(id types.ClientID, path string)

	// Owned returns a sorted snapshot of id's paths.
	Owned(id types.ClientID) []string
}

// New returns a MemoryRegistry for shards <= 1, otherwise a ShardedRegistry.
func New(shards int) Registry {
	if shards <= 1 {
		return NewMemoryRegistry()
	}
	return NewShardedRegistry(shards)
}

type pathSet map[string]struct{}

// MemoryRegistry guards all identities with a single lock.
type MemoryRegistry struct {
	mu     sync.RWMutex
	owners map[types.ClientID]pathSet
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		owners: make(map[types.ClientID]pathSet),
	}
}

// IsOwner reports whether id has recorded ownership of path.
func (r *MemoryRegistry) IsOwner(id types.ClientID, path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.owners[id][path]
	return ok
}

// Record adds path to id's set.
func (r *MemoryRegistry) Record(id types.ClientID, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.owners[id]
	if !ok {
		set = make(pathSet, 1)
		r.owners[id] = set
	}
	set[path] = struct{}{}
}

// Owned returns a sorted snapshot of id's paths.
func (r *MemoryRegistry) Owned(id types.ClientID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedPaths(r.owners[id])
}

// ShardedRegistry stripes identities over independently locked shards, so
// clients on different shards never contend.
type ShardedRegistry struct {
	shards []*MemoryRegistry
}

// NewShardedRegistry creates a registry with n shards (minimum 1).
func NewShardedRegistry(n int) *ShardedRegistry {
	if n < 1 {
		n = 1
	}
	shards := make([]*MemoryRegistry, n)
	for i := range shards {
		shards[i] = NewMemoryRegistry()
	}
	return &ShardedRegistry{shards: shards}
}

func (r *ShardedRegistry) shard(id types.ClientID) *MemoryRegistry {
	h := fnv.New32a()
	h.Write([]byte(id))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

// IsOwner reports whether id has recorded ownership of path.
func (r *ShardedRegistry) IsOwner(id types.ClientID, path string) bool {
	return r.shard(id).IsOwner(id, path)
}

// Record adds path to id's set.
func (r *ShardedRegistry) Record(id types.ClientID, path string) {
	r.shard(id).Record(id, path)
}

// Owned returns a sorted snapshot of id's paths.
func (r *ShardedRegistry) Owned(id types.ClientID) []string {
	return r.shard(id).Owned(id)
}

func sortedPaths(set pathSet) []string {
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Ensure implementations satisfy the interface
var (
	_ Registry = (*MemoryRegistry)(nil)
	_ Registry = (*ShardedRegistry)(nil)
)
