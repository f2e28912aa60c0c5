// Package services contains application services for the MedKeeper CLI.
// This file defines the authentication service: patient login with a cached
// session, logout, and admin token minting from the shared secret.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/medkeeper/internal/client/client"
	"github.com/dmitrijs2005/medkeeper/internal/client/repositories/session"
	"github.com/dmitrijs2005/medkeeper/internal/server/auth"
)

// AdminTokenTTL is the validity of admin tokens minted by the CLI.
const AdminTokenTTL = 15 * time.Minute

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Login: authenticate against the server and cache the session locally.
//   - Restore: load the cached session into the client, or fail with
//     client.ErrNotLoggedIn when there is none or it has expired.
//   - Logout: revoke the session on the server and drop the local copy.
//   - UseAdmin: mint an admin token from the shared secret and attach it.
type AuthService interface {
	Login(ctx context.Context, identifier string, password []byte) (*session.Session, error)
	Restore(ctx context.Context) (*session.Session, error)
	Logout(ctx context.Context) error
	UseAdmin(secret string) (string, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client client.Client
	repo   session.Repository
	now    func() time.Time
}

// NewAuthService constructs an AuthService bound to the given API client and
// the local session cache in db.
func NewAuthService(c client.Client, db *sql.DB) AuthService {
	return newAuthService(c, session.NewSQLiteRepository(db))
}

func newAuthService(c client.Client, repo session.Repository) *authService {
	return &authService{client: c, repo: repo, now: time.Now}
}

func (a *authService) Login(ctx context.Context, identifier string, password []byte) (*session.Session, error) {
	resp, err := a.client.Login(ctx, identifier, string(password))
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}

	s := session.Session{Token: resp.Token, PatientID: resp.PatientID, ExpiresAt: resp.ExpiresAt}
	if err := a.repo.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("session saving error: %w", err)
	}
	return &s, nil
}

func (a *authService) Restore(ctx context.Context) (*session.Session, error) {
	s, err := a.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, client.ErrNotLoggedIn
	}
	if s.Expired(a.now()) {
		if err := a.repo.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, client.ErrNotLoggedIn
	}
	a.client.SetSessionToken(s.Token)
	return s, nil
}

// Logout revokes the cached session. A session the server no longer knows
// is still removed locally.
func (a *authService) Logout(ctx context.Context) error {
	if _, err := a.Restore(ctx); err != nil {
		return err
	}
	if err := a.client.Logout(ctx); err != nil && !errors.Is(err, client.ErrUnauthorized) {
		return err
	}
	a.client.SetSessionToken("")
	return a.repo.Clear(ctx)
}

func (a *authService) UseAdmin(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("admin secret is not configured")
	}
	token, err := auth.GenerateAdminToken("cli", []byte(secret), AdminTokenTTL)
	if err != nil {
		return "", err
	}
	a.client.SetAdminToken(token)
	return token, nil
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
