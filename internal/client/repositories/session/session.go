// Package session persists the CLI's patient session between invocations.
// At most one session is cached at a time.
package session

import (
	"context"
	"time"
)

// Session is a cached bearer token with the patient it belongs to.
type Session struct {
	Token     string
	PatientID string
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type Repository interface {
	// Get returns (nil, nil) when nothing is cached.
	Get(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}
