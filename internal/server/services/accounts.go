package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/medkeeper/internal/common"
	"github.com/dmitrijs2005/medkeeper/internal/cryptox"
	"github.com/dmitrijs2005/medkeeper/internal/identity"
	"github.com/dmitrijs2005/medkeeper/internal/logging"
	"github.com/dmitrijs2005/medkeeper/internal/server/models"
	"github.com/dmitrijs2005/medkeeper/internal/server/notify"
	"github.com/dmitrijs2005/medkeeper/internal/server/registry"
)

const (
	DefaultMinPasswordLength = 8
	DefaultResetTTL          = 60 * time.Minute
	MinResetTTL              = 5 * time.Minute
	// MaxResetAttempts is how many wrong answers revoke a reset token.
	MaxResetAttempts = 5

	resetTokenBytes = 24
	resetMethod     = "security_question"
)

// ResetMessage is returned by InitPasswordReset whatever the identifier.
const ResetMessage = "If the account exists, password reset instructions have been issued."

// AccountConfig tunes AccountService. Zero values select the defaults.
type AccountConfig struct {
	MinPasswordLength int
	ResetTTL          time.Duration
}

// Registration is a patient setting up credentials on an authorized profile.
// One of FiscalCode or DateOfBirth proves the identity.
type Registration struct {
	PatientID        string
	FiscalCode       string
	DateOfBirth      string
	Email            string
	Password         string
	SecurityQuestion string
	SecurityAnswer   string
}

// SignupRequest is a patient asking to activate their own pending record.
type SignupRequest struct {
	PatientID        string
	FiscalCode       string
	DateOfBirth      string
	Email            string
	Phone            string
	SecurityQuestion string
	SecurityAnswer   string
}

// SignupResult reports the outcome of Signup. The generated password is
// only ever delivered by email.
type SignupResult struct {
	PatientID string
	EmailSent bool
}

// ResetChallenge is the answer to a password reset request. Accounts that
// cannot be reset get a decoy question and a token that is never stored, so
// the response does not reveal whether the account exists.
type ResetChallenge struct {
	Message  string
	Question string
	Token    string
}

// AccountService manages patient credentials.
type AccountService struct {
	store    *registry.Store
	sessions *SessionService
	sender   notify.Sender
	logger   logging.Logger

	minPasswordLength int
	resetTTL          time.Duration
	decoyKey          []byte
	now               func() time.Time
}

var decoyQuestions = []string{
	"Name of your first pet?",
	"City where you were born?",
	"Your mother's maiden name?",
	"Name of your primary school?",
	"Model of your first car?",
}

func NewAccountService(store *registry.Store, sessions *SessionService, sender notify.Sender, logger logging.Logger, cfg AccountConfig) *AccountService {
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = DefaultMinPasswordLength
	}
	switch {
	case cfg.ResetTTL <= 0:
		cfg.ResetTTL = DefaultResetTTL
	case cfg.ResetTTL < MinResetTTL:
		cfg.ResetTTL = MinResetTTL
	}
	return &AccountService{
		store:             store,
		sessions:          sessions,
		sender:            sender,
		logger:            logger.With("module", "accounts"),
		minPasswordLength: cfg.MinPasswordLength,
		resetTTL:          cfg.ResetTTL,
		decoyKey:          common.RandomBytes(32),
		now:               time.Now,
	}
}

// Register sets the credentials of an authorized, not yet registered patient.
func (s *AccountService) Register(ctx context.Context, r Registration) (models.Profile, error) {
	r.PatientID = strings.TrimSpace(r.PatientID)
	r.Email = models.NormalizeEmail(r.Email)
	if r.PatientID == "" || !strings.Contains(r.Email, "@") {
		return models.Profile{}, fmt.Errorf("%w: patient_id and a valid email are required", common.ErrValidation)
	}
	if strings.TrimSpace(r.FiscalCode) == "" && strings.TrimSpace(r.DateOfBirth) == "" {
		return models.Profile{}, fmt.Errorf("%w: fiscal code or date of birth is required", common.ErrValidation)
	}
	if strings.TrimSpace(r.SecurityQuestion) == "" || cryptox.NormalizeAnswer(r.SecurityAnswer) == "" {
		return models.Profile{}, fmt.Errorf("%w: security question and answer are required", common.ErrValidation)
	}
	if len(r.Password) < s.minPasswordLength {
		return models.Profile{}, common.ErrWeakPassword
	}

	passHash, passSalt := cryptox.HashSecret(r.Password)
	answerHash, answerSalt := cryptox.HashSecret(cryptox.NormalizeAnswer(r.SecurityAnswer))

	pick := func(tx *registry.Tx) ([]string, error) {
		p, found, err := registry.TxGet[models.Profile](tx, registry.Authorized, r.PatientID)
		if err != nil || !found {
			return nil, err
		}
		return []string{p.Email, r.Email}, nil
	}

	var out models.Profile
	err := updateWithEmails(ctx, s.store, r.PatientID, pick, func(tx *registry.Tx) error {
		p, found, err := registry.TxGet[models.Profile](tx, registry.Authorized, r.PatientID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: patient %s is not authorized", common.ErrForbidden, r.PatientID)
		}
		if p.Registered() {
			return common.ErrAlreadyRegistered
		}
		if !proofMatches(p.FiscalCode, p.DateOfBirth, r.FiscalCode, r.DateOfBirth) {
			return fmt.Errorf("%w: identity proof does not match", common.ErrForbidden)
		}

		if err := claimEmail(tx, r.Email, r.PatientID); err != nil {
			return err
		}
		if p.Email != r.Email {
			if err := releaseEmail(tx, p.Email, r.PatientID); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		p.Email = r.Email
		p.Credentials = &models.Credentials{
			PasswordHash:     passHash,
			PasswordSalt:     passSalt,
			SecurityQuestion: strings.TrimSpace(r.SecurityQuestion),
			AnswerHash:       answerHash,
			AnswerSalt:       answerSalt,
			UpdatedAt:        now,
		}
		p.UpdatedAt = now
		out = p
		return registry.TxPut(tx, registry.Authorized, r.PatientID, p)
	})
	if err != nil {
		return models.Profile{}, err
	}

	s.logger.Info(ctx, "account registered", "patient_id", r.PatientID)
	return out.Public(), nil
}

// proofMatches compares the caller's proof with the recorded identity. A
// provided fiscal code is checked first; otherwise the date of birth. A
// field the record does not have never matches.
func proofMatches(knownCF, knownDOB, cf, dob string) bool {
	if cf = identity.NormalizeFiscalCode(cf); cf != "" {
		return knownCF != "" && identity.NormalizeFiscalCode(knownCF) == cf
	}
	if dob = strings.TrimSpace(dob); dob != "" {
		return knownDOB != "" && identity.NormalizeDate(knownDOB) == identity.NormalizeDate(dob)
	}
	return false
}

// ChangePassword replaces the password after checking the current one. All
// sessions except keepToken are revoked.
func (s *AccountService) ChangePassword(ctx context.Context, patientID, keepToken, current, next string) error {
	if len(next) < s.minPasswordLength {
		return common.ErrWeakPassword
	}
	hash, salt := cryptox.HashSecret(next)

	p, err := registry.Merge(ctx, s.store, registry.Authorized, patientID, func(p models.Profile, found bool) (models.Profile, error) {
		if !found {
			return p, common.ErrorNotFound
		}
		if !p.Registered() {
			return p, common.ErrNotRegistered
		}
		if !cryptox.VerifySecret(current, p.Credentials.PasswordHash, p.Credentials.PasswordSalt) {
			return p, common.ErrAuthentication
		}
		now := s.now().UTC()
		p.Credentials.PasswordHash, p.Credentials.PasswordSalt = hash, salt
		p.Credentials.UpdatedAt = now
		p.UpdatedAt = now
		return p, nil
	})
	if err != nil {
		return err
	}

	if _, err := s.sessions.RevokeAll(ctx, patientID, keepToken); err != nil {
		s.logger.Error(ctx, "revoke sessions after password change", "patient_id", patientID, "error", err)
	}
	s.logger.Info(ctx, "password changed", "patient_id", patientID)
	s.notify(ctx, p.Email, "MedKeeper: password changed",
		"The password of your MedKeeper account has been changed. If this was not you, contact support.")
	return nil
}

// InitPasswordReset starts the security-question reset flow. The response
// has the same shape whether or not the account exists.
func (s *AccountService) InitPasswordReset(ctx context.Context, identifier string) (ResetChallenge, error) {
	p, err := findAccount(ctx, s.store, identifier)
	if isNotFound(err) {
		return s.decoyChallenge(identifier), nil
	}
	if err != nil {
		return ResetChallenge{}, err
	}
	if !p.Registered() || p.Credentials.SecurityQuestion == "" {
		return s.decoyChallenge(identifier), nil
	}

	token, err := common.RandomToken(resetTokenBytes)
	if err != nil {
		return ResetChallenge{}, fmt.Errorf("generate reset token: %w", err)
	}
	now := s.now().UTC()
	reset := models.PasswordReset{
		Token:     token,
		PatientID: p.PatientID,
		Method:    resetMethod,
		CreatedAt: now,
		ExpiresAt: now.Add(s.resetTTL),
		Status:    models.TokenActive,
	}
	if err := s.store.Put(ctx, registry.PasswordResets, token, reset); err != nil {
		return ResetChallenge{}, err
	}

	s.logger.Info(ctx, "password reset issued", "patient_id", p.PatientID)
	return ResetChallenge{Message: ResetMessage, Question: p.Credentials.SecurityQuestion, Token: token}, nil
}

// decoyChallenge derives a stable question and token from identifier. The
// token has the length of a real one and is never stored.
func (s *AccountService) decoyChallenge(identifier string) ResetChallenge {
	mac := hmac.New(sha256.New, s.decoyKey)
	mac.Write([]byte(strings.ToLower(strings.TrimSpace(identifier))))
	sum := mac.Sum(nil)
	return ResetChallenge{
		Message:  ResetMessage,
		Question: decoyQuestions[int(sum[0])%len(decoyQuestions)],
		Token:    hex.EncodeToString(sum[:resetTokenBytes]),
	}
}

// CompletePasswordReset redeems a reset token. A wrong answer counts against
// the token, which is revoked after MaxResetAttempts failures. Success claims
// the token and revokes every session.
func (s *AccountService) CompletePasswordReset(ctx context.Context, token, answer, next string) error {
	if len(next) < s.minPasswordLength {
		return common.ErrWeakPassword
	}
	if token == "" {
		return common.ErrResetTokenInvalid
	}

	peek, err := registry.Get[models.PasswordReset](ctx, s.store, registry.PasswordResets, token)
	if isNotFound(err) {
		return common.ErrResetTokenInvalid
	}
	if err != nil {
		return err
	}
	patientID := peek.PatientID

	hash, salt := cryptox.HashSecret(next)
	locks := []string{
		registry.LockKey(registry.PasswordResets, token),
		registry.PatientLock(patientID),
	}

	var (
		email string
		wrong bool
	)
	err = s.store.Update(ctx, locks, func(tx *registry.Tx) error {
		reset, found, err := registry.TxGet[models.PasswordReset](tx, registry.PasswordResets, token)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if !found || reset.PatientID != patientID || !reset.Usable(now) {
			return common.ErrResetTokenInvalid
		}

		p, found, err := registry.TxGet[models.Profile](tx, registry.Authorized, patientID)
		if err != nil {
			return err
		}
		if !found || !p.Registered() {
			return common.ErrResetTokenInvalid
		}
		c := p.Credentials
		if !cryptox.VerifySecret(cryptox.NormalizeAnswer(answer), c.AnswerHash, c.AnswerSalt) {
			wrong = true
			reset.Attempts++
			if reset.Attempts >= MaxResetAttempts {
				reset.Status = models.TokenRevoked
			}
			return registry.TxPut(tx, registry.PasswordResets, token, reset)
		}

		reset.Status = models.TokenClaimed
		reset.ClaimedAt = &now
		c.PasswordHash, c.PasswordSalt = hash, salt
		c.UpdatedAt = now
		p.UpdatedAt = now
		email = p.Email

		if err := registry.TxPut(tx, registry.PasswordResets, token, reset); err != nil {
			return err
		}
		return registry.TxPut(tx, registry.Authorized, patientID, p)
	})
	if err != nil {
		return err
	}
	if wrong {
		s.logger.Warn(ctx, "wrong security answer", "patient_id", patientID)
		return common.ErrAuthentication
	}

	if _, err := s.sessions.RevokeAll(ctx, patientID, ""); err != nil {
		s.logger.Error(ctx, "revoke sessions after password reset", "patient_id", patientID, "error", err)
	}
	s.logger.Info(ctx, "password reset completed", "patient_id", patientID)
	s.notify(ctx, email, "MedKeeper: password reset",
		"The password of your MedKeeper account has been reset. If this was not you, contact support.")
	return nil
}

// Signup lets a patient activate their own pending record. The caller must
// prove the identity with a fiscal code or date of birth already on file and
// use the email the documents arrived with. Authorization and the account
// with a generated password are written in one section, then the password
// is sent by email.
func (s *AccountService) Signup(ctx context.Context, r SignupRequest) (SignupResult, error) {
	r.PatientID = strings.TrimSpace(r.PatientID)
	r.Email = models.NormalizeEmail(r.Email)
	if r.PatientID == "" || !strings.Contains(r.Email, "@") {
		return SignupResult{}, fmt.Errorf("%w: patient_id and a valid email are required", common.ErrValidation)
	}
	if strings.TrimSpace(r.SecurityQuestion) == "" || cryptox.NormalizeAnswer(r.SecurityAnswer) == "" {
		return SignupResult{}, fmt.Errorf("%w: security question and answer are required", common.ErrValidation)
	}

	password, err := common.RandomToken(max(6, (s.minPasswordLength+1)/2))
	if err != nil {
		return SignupResult{}, fmt.Errorf("generate password: %w", err)
	}
	passHash, passSalt := cryptox.HashSecret(password)
	answerHash, answerSalt := cryptox.HashSecret(cryptox.NormalizeAnswer(r.SecurityAnswer))

	pick := func(tx *registry.Tx) ([]string, error) {
		pending, found, err := registry.TxGet[models.PendingEntry](tx, registry.Pending, r.PatientID)
		if err != nil || !found {
			return nil, err
		}
		return []string{pending.Email}, nil
	}

	var documents int
	err = updateWithEmails(ctx, s.store, r.PatientID, pick, func(tx *registry.Tx) error {
		if _, found, err := tx.Get(registry.Authorized, r.PatientID); err != nil {
			return err
		} else if found {
			return common.ErrAlreadyRegistered
		}
		pending, found, err := registry.TxGet[models.PendingEntry](tx, registry.Pending, r.PatientID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", common.ErrUnknownPendingPatient, r.PatientID)
		}
		if !proofMatches(pending.FiscalCode, pending.DateOfBirth, r.FiscalCode, r.DateOfBirth) {
			return fmt.Errorf("%w: identity proof does not match", common.ErrForbidden)
		}
		if pending.Email == "" || models.NormalizeEmail(pending.Email) != r.Email {
			return fmt.Errorf("%w: email does not match the one on file", common.ErrForbidden)
		}

		now := s.now().UTC()
		p := models.NewProfile(pending, now)
		applyOverrides(&p, AuthorizeOverrides{Phone: r.Phone})
		p.Email = r.Email
		p.Credentials = &models.Credentials{
			PasswordHash:     passHash,
			PasswordSalt:     passSalt,
			SecurityQuestion: strings.TrimSpace(r.SecurityQuestion),
			AnswerHash:       answerHash,
			AnswerSalt:       answerSalt,
			UpdatedAt:        now,
		}

		if err := claimEmail(tx, p.Email, r.PatientID); err != nil {
			return err
		}
		if err := tx.Delete(registry.Pending, r.PatientID); err != nil {
			return err
		}
		documents = len(p.Documents)
		return registry.TxPut(tx, registry.Authorized, r.PatientID, p)
	})
	if err != nil {
		return SignupResult{}, err
	}

	sent := s.notify(ctx, r.Email, "MedKeeper: your account",
		fmt.Sprintf("Your MedKeeper account is active.\n\nPatient ID: %s\nPassword: %s\n\nChange the password after the first login.", r.PatientID, password))
	s.logger.Info(ctx, "signup completed", "patient_id", r.PatientID, "documents", documents, "email_sent", sent)
	return SignupResult{PatientID: r.PatientID, EmailSent: sent}, nil
}

// notify sends a message and logs failures. It reports whether the message
// was handed to the sender.
func (s *AccountService) notify(ctx context.Context, to, subject, body string) bool {
	if to == "" || s.sender == nil {
		return false
	}
	if err := s.sender.Send(ctx, to, subject, body); err != nil {
		s.logger.Error(ctx, "notification failed", "to", to, "subject", subject, "error", err)
		return false
	}
	return true
}
