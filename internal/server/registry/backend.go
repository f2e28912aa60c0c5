// Package registry is the persistence layer for patient registries, sessions,
// invites and access requests. Records are JSON values stored under a
// (collection, key) pair in a pluggable Backend. The Store adds per-key
// locking on top so read-modify-write sequences never lose updates.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/medkeeper/internal/common"
)

// Collection names a group of records.
type Collection string

const (
	Pending        Collection = "pending"
	Authorized     Collection = "authorized"
	Emails         Collection = "emails"
	Sessions       Collection = "sessions"
	Invites        Collection = "invites"
	AccessRequests Collection = "access_requests"
	PasswordResets Collection = "password_resets"
)

// Record is a raw stored value.
type Record struct {
	Key   string
	Value []byte
}

type OpKind int

const (
	OpPut OpKind = iota
	OpDelete
)

// Op is one write in an atomic batch.
type Op struct {
	Kind       OpKind
	Collection Collection
	Key        string
	Value      []byte
}

func PutOp(c Collection, key string, value []byte) Op {
	return Op{Kind: OpPut, Collection: c, Key: key, Value: value}
}

func DeleteOp(c Collection, key string) Op {
	return Op{Kind: OpDelete, Collection: c, Key: key}
}

// Backend stores raw records. Get returns common.ErrorNotFound for a missing
// key. List returns records ordered by key. Apply must be atomic: readers see
// either none or all of the batch.
type Backend interface {
	Get(ctx context.Context, c Collection, key string) ([]byte, error)
	List(ctx context.Context, c Collection) ([]Record, error)
	Apply(ctx context.Context, ops ...Op) error
	Close() error
}

// MemoryBackend keeps everything in process memory. It is used by tests and
// by the "memory" storage setting.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[Collection]map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[Collection]map[string][]byte)}
}

func (m *MemoryBackend) Get(ctx context.Context, c Collection, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[c][key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(v), nil
}

func (m *MemoryBackend) List(ctx context.Context, c Collection) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.data[c]))
	for k, v := range m.data[c] {
		out = append(out, Record{Key: k, Value: clone(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryBackend) Apply(ctx context.Context, ops ...Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case OpPut:
			col, ok := m.data[op.Collection]
			if !ok {
				col = make(map[string][]byte)
				m.data[op.Collection] = col
			}
			col[op.Key] = clone(op.Value)
		case OpDelete:
			delete(m.data[op.Collection], op.Key)
		}
	}
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
