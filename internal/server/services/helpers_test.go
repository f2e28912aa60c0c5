package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/medkeeper/internal/cryptox"
	"github.com/dmitrijs2005/medkeeper/internal/identity"
	"github.com/dmitrijs2005/medkeeper/internal/logging"
	"github.com/dmitrijs2005/medkeeper/internal/server/models"
	"github.com/dmitrijs2005/medkeeper/internal/server/registry"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// clock is a settable time source shared by the services under test.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: t0} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMail struct {
	To, Subject, Body string
}

type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

func (f *fakeSender) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (f *fakeSender) Sent() []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMail(nil), f.sent...)
}

type fixture struct {
	store    *registry.Store
	clock    *clock
	sender   *fakeSender
	patients *PatientService
	sessions *SessionService
	accounts *AccountService
	sharing  *SharingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := registry.NewStore(registry.NewMemoryBackend())
	t.Cleanup(func() { _ = store.Close() })

	c := newClock()
	sender := &fakeSender{}
	log := logging.Nop{}

	f := &fixture{
		store:    store,
		clock:    c,
		sender:   sender,
		patients: NewPatientService(store, log),
		sessions: NewSessionService(store, log, time.Hour),
		sharing:  NewSharingService(store, log),
	}
	f.accounts = NewAccountService(store, f.sessions, sender, log, AccountConfig{})

	f.patients.now = c.Now
	f.sessions.now = c.Now
	f.accounts.now = c.Now
	f.sharing.now = c.Now
	return f
}

func rossi() identity.Identity {
	id, err := identity.Resolve(identity.Metadata{FiscalCode: "RSSMRA80A01H501U", Name: "Mario Rossi", DateOfBirth: "1980-01-01"})
	if err != nil {
		panic(err)
	}
	return id
}

func doc(name, hash string) models.Document {
	return models.Document{Filename: name, ContentHash: hash, Specialty: "cardiologia", Therapies: []string{"ramipril"}}
}

// seedAccount puts a registered profile straight into the store.
func seedAccount(t *testing.T, f *fixture, patientID, email, password string) {
	t.Helper()
	ctx := context.Background()
	hash, salt := cryptox.HashSecret(password)
	ah, as := cryptox.HashSecret(cryptox.NormalizeAnswer("Fido"))
	p := models.Profile{
		PatientID:   patientID,
		Name:        "Mario Rossi",
		FiscalCode:  "RSSMRA80A01H501U",
		DateOfBirth: "1980-01-01",
		Email:       email,
		Credentials: &models.Credentials{
			PasswordHash:     hash,
			PasswordSalt:     salt,
			SecurityQuestion: "Name of your first pet?",
			AnswerHash:       ah,
			AnswerSalt:       as,
		},
		CreatedAt: t0,
		UpdatedAt: t0,
	}
	require.NoError(t, f.store.Put(ctx, registry.Authorized, patientID, p))
	if email != "" {
		require.NoError(t, f.store.Put(ctx, registry.Emails, email, patientID))
	}
}

func exists(t *testing.T, f *fixture, c registry.Collection, key string) bool {
	t.Helper()
	_, err := f.store.Raw(context.Background(), c, key)
	if err == nil {
		return true
	}
	require.True(t, isNotFound(err), "unexpected error: %v", err)
	return false
}

var errBoom = errors.New("boom")
