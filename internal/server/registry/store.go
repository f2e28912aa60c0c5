package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/medkeeper/internal/common"
	"github.com/dmitrijs2005/medkeeper/internal/keylock"
)

// State is where a patient_id currently lives.
type State string

const (
	StateUnseen     State = "unseen"
	StatePending    State = "pending"
	StateAuthorized State = "authorized"
)

// Store wraps a Backend with per-entity locks.
type Store struct {
	backend Backend
	locks   *keylock.Table
}

func NewStore(b Backend) *Store {
	return &Store{backend: b, locks: keylock.New()}
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// LockKey is the lock name guarding (c, key). Pending and authorized records
// of one patient share a lock so the move between them is a single critical
// section.
func LockKey(c Collection, key string) string {
	switch c {
	case Pending, Authorized:
		return "patient/" + key
	default:
		return string(c) + "/" + key
	}
}

// PatientLock is the lock name for a patient's registry state.
func PatientLock(patientID string) string {
	return LockKey(Pending, patientID)
}

// Raw returns the stored bytes without locking.
func (s *Store) Raw(ctx context.Context, c Collection, key string) ([]byte, error) {
	return s.backend.Get(ctx, c, key)
}

// List returns every record of c, ordered by key.
func (s *Store) List(ctx context.Context, c Collection) ([]Record, error) {
	return s.backend.List(ctx, c)
}

// Put stores v under (c, key).
func (s *Store) Put(ctx context.Context, c Collection, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c, key, err)
	}
	unlock := s.locks.Lock(LockKey(c, key))
	defer unlock()
	return s.backend.Apply(ctx, PutOp(c, key, b))
}

// Delete removes (c, key). Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, c Collection, key string) error {
	unlock := s.locks.Lock(LockKey(c, key))
	defer unlock()
	return s.backend.Apply(ctx, DeleteOp(c, key))
}

// Update runs fn while holding every lock in lockKeys and applies the writes
// it buffered as one atomic batch. Nothing is written if fn fails.
func (s *Store) Update(ctx context.Context, lockKeys []string, fn func(tx *Tx) error) error {
	unlock := s.locks.LockAll(lockKeys...)
	defer unlock()

	tx := newTx(ctx, s, lockKeys)
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.ops) == 0 {
		return nil
	}
	return s.backend.Apply(ctx, tx.ops...)
}

// Locate reports whether patientID is pending, authorized or unseen. It reads
// under the patient lock so a concurrent authorization is never observed
// half-way.
func (s *Store) Locate(ctx context.Context, patientID string) (State, error) {
	unlock := s.locks.Lock(PatientLock(patientID))
	defer unlock()

	if _, err := s.backend.Get(ctx, Authorized, patientID); err == nil {
		return StateAuthorized, nil
	} else if !errors.Is(err, common.ErrorNotFound) {
		return "", err
	}
	if _, err := s.backend.Get(ctx, Pending, patientID); err == nil {
		return StatePending, nil
	} else if !errors.Is(err, common.ErrorNotFound) {
		return "", err
	}
	return StateUnseen, nil
}

// Get decodes the record at (c, key) into a T.
func Get[T any](ctx context.Context, s *Store, c Collection, key string) (T, error) {
	var v T
	b, err := s.backend.Get(ctx, c, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("decode %s/%s: %w", c, key, err)
	}
	return v, nil
}

// List decodes every record of c.
func List[T any](ctx context.Context, s *Store, c Collection) ([]T, error) {
	recs, err := s.backend.List(ctx, c)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		var v T
		if err := json.Unmarshal(r.Value, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", c, r.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Merge reads (c, key) under its lock, passes it to fn and writes the result
// back. found is false when the record did not exist.
func Merge[T any](ctx context.Context, s *Store, c Collection, key string, fn func(cur T, found bool) (T, error)) (T, error) {
	var out T
	err := s.Update(ctx, []string{LockKey(c, key)}, func(tx *Tx) error {
		cur, found, err := TxGet[T](tx, c, key)
		if err != nil {
			return err
		}
		next, err := fn(cur, found)
		if err != nil {
			return err
		}
		out = next
		return TxPut(tx, c, key, next)
	})
	return out, err
}
