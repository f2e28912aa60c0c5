package services

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/medkeeper/internal/api"
	"github.com/dmitrijs2005/medkeeper/internal/client/client"
	"github.com/dmitrijs2005/medkeeper/internal/client/repositories/session"
	"github.com/dmitrijs2005/medkeeper/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- helpers ----

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ---- fake client ----

// fakeClient implements client.Client; calls not overridden panic through
// the nil embedded interface.
type fakeClient struct {
	client.Client

	LoginResp *api.LoginResponse
	LoginErr  error
	LogoutErr error
	PingErr   error

	LastIdentifier string
	LastPassword   string
	LogoutCalls    int
	Closed         bool

	SessionToken string
	AdminToken   string
}

func (f *fakeClient) Login(ctx context.Context, identifier, password string) (*api.LoginResponse, error) {
	f.LastIdentifier = identifier
	f.LastPassword = password
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	f.SessionToken = f.LoginResp.Token
	return f.LoginResp, nil
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.LogoutCalls++
	return f.LogoutErr
}

func (f *fakeClient) Ping(ctx context.Context) error { return f.PingErr }
func (f *fakeClient) Close() error {
	f.Closed = true
	return nil
}
func (f *fakeClient) SetSessionToken(token string) { f.SessionToken = token }
func (f *fakeClient) SetAdminToken(token string) { f.AdminToken = token }

// ---- tests ----

func TestLogin_CachesSession(t *testing.T) {
	db := setupDB(t)
	exp := time.Now().Add(time.Hour).Truncate(time.Second).UTC()
	fc := &fakeClient{LoginResp: &api.LoginResponse{Token: "tok", PatientID: "p1", ExpiresAt: exp}}
	svc := NewAuthService(fc, db)

	s, err := svc.Login(context.Background(), "mario@example.com", []byte("correct-horse"))
	require.NoError(t, err)
	assert.Equal(t, "p1", s.PatientID)
	assert.Equal(t, "mario@example.com", fc.LastIdentifier)
	assert.Equal(t, "correct-horse", fc.LastPassword)

	cached, err := session.NewSQLiteRepository(db).Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "tok", cached.Token)
	assert.True(t, exp.Equal(cached.ExpiresAt))
}

func TestLogin_ErrorNotCached(t *testing.T) {
	db := setupDB(t)
	fc := &fakeClient{LoginErr: client.ErrUnauthorized}
	svc := NewAuthService(fc, db)

	_, err := svc.Login(context.Background(), "x", []byte("y"))
	require.ErrorIs(t, err, client.ErrUnauthorized)

	cached, err := session.NewSQLiteRepository(db).Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestRestore(t *testing.T) {
	db := setupDB(t)
	repo := session.NewSQLiteRepository(db)
	ctx := context.Background()
	fc := &fakeClient{}
	svc := newAuthService(fc, repo)

	_, err := svc.Restore(ctx)
	require.ErrorIs(t, err, client.ErrNotLoggedIn)

	require.NoError(t, repo.Save(ctx, session.Session{Token: "tok", PatientID: "p1", ExpiresAt: time.Now().Add(time.Hour)}))
	s, err := svc.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p1", s.PatientID)
	assert.Equal(t, "tok", fc.SessionToken)
}

func TestRestore_ExpiredIsDropped(t *testing.T) {
	db := setupDB(t)
	repo := session.NewSQLiteRepository(db)
	ctx := context.Background()
	fc := &fakeClient{}
	svc := newAuthService(fc, repo)

	require.NoError(t, repo.Save(ctx, session.Session{Token: "tok", PatientID: "p1", ExpiresAt: time.Now().Add(time.Hour)}))
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err := svc.Restore(ctx)
	require.ErrorIs(t, err, client.ErrNotLoggedIn)
	assert.Empty(t, fc.SessionToken)

	cached, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestLogout(t *testing.T) {
	tests := []struct {
		name      string
		logoutErr error
		wantErr   bool
		cleared   bool
	}{
		{name: "ok", cleared: true},
		{name: "server forgot session", logoutErr: client.ErrUnauthorized, cleared: true},
		{name: "server down", logoutErr: client.ErrUnavailable, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupDB(t)
			repo := session.NewSQLiteRepository(db)
			ctx := context.Background()
			require.NoError(t, repo.Save(ctx, session.Session{Token: "tok", PatientID: "p1", ExpiresAt: time.Now().Add(time.Hour)}))

			fc := &fakeClient{LogoutErr: tt.logoutErr}
			err := newAuthService(fc, repo).Logout(ctx)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, 1, fc.LogoutCalls)

			cached, err := repo.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.cleared, cached == nil)
		})
	}
}

func TestLogout_NotLoggedIn(t *testing.T) {
	fc := &fakeClient{}
	err := NewAuthService(fc, setupDB(t)).Logout(context.Background())
	require.ErrorIs(t, err, client.ErrNotLoggedIn)
	assert.Zero(t, fc.LogoutCalls)
}

func TestUseAdmin(t *testing.T) {
	fc := &fakeClient{}
	svc := NewAuthService(fc, setupDB(t))

	_, err := svc.UseAdmin("")
	require.Error(t, err)

	token, err := svc.UseAdmin("shared-secret")
	require.NoError(t, err)
	assert.Equal(t, token, fc.AdminToken)

	subject, err := auth.ParseAdminToken(token, []byte("shared-secret"))
	require.NoError(t, err)
	assert.Equal(t, "cli", subject)
}

func TestPingAndClose(t *testing.T) {
	fc := &fakeClient{PingErr: errors.New("down")}
	svc := NewAuthService(fc, setupDB(t))

	require.Error(t, svc.Ping(context.Background()))
	require.NoError(t, svc.Close(context.Background()))
	assert.True(t, fc.Closed)
}
