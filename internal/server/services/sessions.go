package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/medkeeper/internal/common"
	"github.com/dmitrijs2005/medkeeper/internal/cryptox"
	"github.com/dmitrijs2005/medkeeper/internal/logging"
	"github.com/dmitrijs2005/medkeeper/internal/server/models"
	"github.com/dmitrijs2005/medkeeper/internal/server/registry"
)

// DefaultSessionTTL is used when no session lifetime is configured.
const DefaultSessionTTL = 24 * time.Hour

const sessionTokenBytes = 24

// SessionToken is what a successful login hands back to the caller.
type SessionToken struct {
	Token     string
	PatientID string
	ExpiresAt time.Time
}

// SessionService issues and validates patient bearer tokens.
type SessionService struct {
	store  *registry.Store
	logger logging.Logger
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionService(store *registry.Store, logger logging.Logger, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{
		store:  store,
		logger: logger.With("module", "sessions"),
		ttl:    ttl,
		now:    time.Now,
	}
}

var (
	dummyOnce sync.Once
	dummyHash string
	dummySalt string
)

// burnVerify spends the same work as a real password check so that unknown
// identifiers cannot be told apart by response time.
func burnVerify(password string) {
	dummyOnce.Do(func() {
		dummyHash, dummySalt = cryptox.HashSecret("medkeeper-dummy-password")
	})
	cryptox.VerifySecret(password, dummyHash, dummySalt)
}

// Login checks the password of the account named by identifier (a patient_id
// or a registered email) and opens a session. Every failure is reported as
// ErrAuthentication.
func (s *SessionService) Login(ctx context.Context, identifier, password string) (SessionToken, error) {
	profile, err := findAccount(ctx, s.store, identifier)
	if err != nil && !isNotFound(err) {
		return SessionToken{}, err
	}
	if err != nil || !profile.Registered() {
		burnVerify(password)
		s.logger.Warn(ctx, "login rejected", "reason", "unknown account")
		return SessionToken{}, common.ErrAuthentication
	}

	c := profile.Credentials
	if !cryptox.VerifySecret(password, c.PasswordHash, c.PasswordSalt) {
		s.logger.Warn(ctx, "login rejected", "patient_id", profile.PatientID, "reason", "bad password")
		return SessionToken{}, common.ErrAuthentication
	}

	return s.open(ctx, profile.PatientID)
}

func (s *SessionService) open(ctx context.Context, patientID string) (SessionToken, error) {
	token, err := common.RandomToken(sessionTokenBytes)
	if err != nil {
		return SessionToken{}, fmt.Errorf("generate session token: %w", err)
	}
	now := s.now().UTC()
	sess := models.Session{
		PatientID: patientID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		LastSeen:  now,
	}
	if err := s.store.Put(ctx, registry.Sessions, cryptox.TokenDigest(token), sess); err != nil {
		return SessionToken{}, err
	}
	s.logger.Info(ctx, "session opened", "patient_id", patientID)
	return SessionToken{Token: token, PatientID: patientID, ExpiresAt: sess.ExpiresAt}, nil
}

// Validate returns the session behind token. Unknown and expired tokens both
// yield ErrInvalidSession; an expired session is deleted on the way.
func (s *SessionService) Validate(ctx context.Context, token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, common.ErrInvalidSession
	}
	key := cryptox.TokenDigest(token)
	now := s.now().UTC()

	var (
		sess    models.Session
		expired bool
	)
	err := s.store.Update(ctx, []string{registry.LockKey(registry.Sessions, key)}, func(tx *registry.Tx) error {
		cur, found, err := registry.TxGet[models.Session](tx, registry.Sessions, key)
		if err != nil {
			return err
		}
		if !found {
			return common.ErrInvalidSession
		}
		if cur.Expired(now) {
			expired = true
			return tx.Delete(registry.Sessions, key)
		}
		cur.LastSeen = now
		sess = cur
		return registry.TxPut(tx, registry.Sessions, key, cur)
	})
	if err != nil {
		return models.Session{}, err
	}
	if expired {
		return models.Session{}, common.ErrInvalidSession
	}
	return sess, nil
}

// Logout drops the session behind token. Unknown tokens are ignored.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.Delete(ctx, registry.Sessions, cryptox.TokenDigest(token))
}

// RevokeAll ends every session of patientID except the one behind keepToken
// (which may be empty). It returns how many sessions were removed.
func (s *SessionService) RevokeAll(ctx context.Context, patientID, keepToken string) (int, error) {
	keep := ""
	if keepToken != "" {
		keep = cryptox.TokenDigest(keepToken)
	}

	recs, err := s.store.List(ctx, registry.Sessions)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, r := range recs {
		if r.Key == keep {
			continue
		}
		sess, err := registry.Get[models.Session](ctx, s.store, registry.Sessions, r.Key)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return n, err
		}
		if sess.PatientID != patientID {
			continue
		}
		if err := s.store.Delete(ctx, registry.Sessions, r.Key); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		s.logger.Info(ctx, "sessions revoked", "patient_id", patientID, "count", n)
	}
	return n, nil
}
