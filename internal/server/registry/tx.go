package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/medkeeper/internal/common"
)

// ErrNotLocked is returned when a Tx writes a key whose lock it does not hold.
var ErrNotLocked = errors.New("registry: write outside of held lock")

type opKey struct {
	c   Collection
	key string
}

// Tx buffers the writes of one Store.Update call. Reads see the buffered
// writes first.
type Tx struct {
	ctx    context.Context
	store  *Store
	held   map[string]struct{}
	ops    []Op
	staged map[opKey]int
}

func newTx(ctx context.Context, s *Store, lockKeys []string) *Tx {
	held := make(map[string]struct{}, len(lockKeys))
	for _, k := range lockKeys {
		held[k] = struct{}{}
	}
	return &Tx{ctx: ctx, store: s, held: held, staged: make(map[opKey]int)}
}

// Context returns the context Update was called with.
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// Get returns the raw value of (c, key) as seen by this transaction.
func (tx *Tx) Get(c Collection, key string) ([]byte, bool, error) {
	if i, ok := tx.staged[opKey{c, key}]; ok {
		op := tx.ops[i]
		if op.Kind == OpDelete {
			return nil, false, nil
		}
		return clone(op.Value), true, nil
	}
	b, err := tx.store.backend.Get(tx.ctx, c, key)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Put stages a write.
func (tx *Tx) Put(c Collection, key string, value []byte) error {
	return tx.stage(PutOp(c, key, value))
}

// Delete stages a removal.
func (tx *Tx) Delete(c Collection, key string) error {
	return tx.stage(DeleteOp(c, key))
}

func (tx *Tx) stage(op Op) error {
	if _, ok := tx.held[LockKey(op.Collection, op.Key)]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotLocked, op.Collection, op.Key)
	}
	k := opKey{op.Collection, op.Key}
	if i, ok := tx.staged[k]; ok {
		tx.ops[i] = op
		return nil
	}
	tx.staged[k] = len(tx.ops)
	tx.ops = append(tx.ops, op)
	return nil
}

// TxGet decodes (c, key) as seen by tx.
func TxGet[T any](tx *Tx, c Collection, key string) (T, bool, error) {
	var v T
	b, found, err := tx.Get(c, key)
	if err != nil || !found {
		return v, found, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, false, fmt.Errorf("decode %s/%s: %w", c, key, err)
	}
	return v, true, nil
}

// TxPut encodes v and stages it under (c, key).
func TxPut(tx *Tx, c Collection, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c, key, err)
	}
	return tx.Put(c, key, b)
}
