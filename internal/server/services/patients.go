// Package services contains the server-side business logic: the patient
// registry state machine, accounts and sessions, and the sharing broker.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/medkeeper/internal/common"
	"github.com/dmitrijs2005/medkeeper/internal/identity"
	"github.com/dmitrijs2005/medkeeper/internal/logging"
	"github.com/dmitrijs2005/medkeeper/internal/server/models"
	"github.com/dmitrijs2005/medkeeper/internal/server/registry"
)

// Sighting is one classified document attributed to a resolved identity.
type Sighting struct {
	Identity identity.Identity
	Email    string
	Document models.Document
}

// AuthorizeOverrides carry administrative corrections applied when a pending
// patient is authorized. Empty fields keep the pending values.
type AuthorizeOverrides struct {
	Name        string
	FiscalCode  string
	DateOfBirth string
	Email       string
	Phone       string
	Note        string
}

// ProfileUpdate lists the editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Name        *string
	DateOfBirth *string
	Phone       *string
	Note        *string
}

// PatientService drives the unseen -> pending -> authorized state machine.
type PatientService struct {
	store  *registry.Store
	logger logging.Logger
	now    func() time.Time
}

func NewPatientService(store *registry.Store, logger logging.Logger) *PatientService {
	return &PatientService{
		store:  store,
		logger: logger.With("module", "patients"),
		now:    time.Now,
	}
}

// RecordDocument files a document under its identity: into the authorized
// profile when one exists, otherwise into the pending entry, creating it on
// first sight. It returns the state the patient is in afterwards.
func (s *PatientService) RecordDocument(ctx context.Context, in Sighting) (registry.State, error) {
	id := in.Identity.PatientID
	if id == "" {
		return "", common.ErrIdentityResolution
	}
	now := s.now().UTC()
	if in.Document.ReceivedAt.IsZero() {
		in.Document.ReceivedAt = now
	}

	var state registry.State
	err := s.store.Update(ctx, []string{registry.PatientLock(id)}, func(tx *registry.Tx) error {
		profile, found, err := registry.TxGet[models.Profile](tx, registry.Authorized, id)
		if err != nil {
			return err
		}
		if found {
			profile.Absorb(in.Identity, in.Document, now)
			state = registry.StateAuthorized
			return registry.TxPut(tx, registry.Authorized, id, profile)
		}

		pending, found, err := registry.TxGet[models.PendingEntry](tx, registry.Pending, id)
		if err != nil {
			return err
		}
		if found {
			pending.Absorb(in.Identity, in.Email, in.Document, now)
		} else {
			pending = models.NewPendingEntry(in.Identity, in.Email, in.Document, now)
		}
		state = registry.StatePending
		return registry.TxPut(tx, registry.Pending, id, pending)
	})
	if err != nil {
		return "", err
	}

	s.logger.Info(ctx, "document recorded",
		"patient_id", id,
		"state", string(state),
		"confidence", string(in.Identity.Confidence),
		"filename", in.Document.Filename,
	)
	return state, nil
}

// Authorize promotes a pending patient to an authorized profile. The pending
// entry is removed, and the profile and its email index entry are written, in
// one batch. Authorizing an already authorized patient returns the stored
// profile untouched.
func (s *PatientService) Authorize(ctx context.Context, patientID string, o AuthorizeOverrides) (models.Profile, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return models.Profile{}, fmt.Errorf("%w: patient_id is required", common.ErrValidation)
	}

	pick := func(tx *registry.Tx) ([]string, error) {
		if _, found, err := tx.Get(registry.Authorized, patientID); err != nil || found {
			return nil, err
		}
		pending, found, err := registry.TxGet[models.PendingEntry](tx, registry.Pending, patientID)
		if err != nil || !found {
			return nil, err
		}
		return []string{firstNonEmpty(o.Email, pending.Email)}, nil
	}

	var out models.Profile
	existed := false
	err := updateWithEmails(ctx, s.store, patientID, pick, func(tx *registry.Tx) error {
		profile, found, err := registry.TxGet[models.Profile](tx, registry.Authorized, patientID)
		if err != nil {
			return err
		}
		if found {
			out, existed = profile, true
			return nil
		}

		pending, found, err := registry.TxGet[models.PendingEntry](tx, registry.Pending, patientID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", common.ErrUnknownPendingPatient, patientID)
		}

		profile = models.NewProfile(pending, s.now().UTC())
		applyOverrides(&profile, o)

		if err := claimEmail(tx, profile.Email, patientID); err != nil {
			return err
		}
		if err := tx.Delete(registry.Pending, patientID); err != nil {
			return err
		}
		out = profile
		return registry.TxPut(tx, registry.Authorized, patientID, profile)
	})
	if err != nil {
		return models.Profile{}, err
	}

	if existed {
		s.logger.Info(ctx, "patient already authorized", "patient_id", patientID)
	} else {
		s.logger.Info(ctx, "patient authorized", "patient_id", patientID, "documents", len(out.Documents))
	}
	return out.Public(), nil
}

func applyOverrides(p *models.Profile, o AuthorizeOverrides) {
	if v := strings.TrimSpace(o.Name); v != "" {
		p.Name = v
	}
	if v := identity.NormalizeFiscalCode(o.FiscalCode); v != "" {
		p.FiscalCode = v
	}
	if v := strings.TrimSpace(o.DateOfBirth); v != "" {
		p.DateOfBirth = identity.NormalizeDate(v)
	}
	if v := models.NormalizeEmail(o.Email); v != "" {
		p.Email = v
	}
	if v := strings.TrimSpace(o.Phone); v != "" {
		p.Phone = v
	}
	if v := strings.TrimSpace(o.Note); v != "" {
		p.Note = v
	}
}

// Locate reports the registry state of patientID.
func (s *PatientService) Locate(ctx context.Context, patientID string) (registry.State, error) {
	return s.store.Locate(ctx, patientID)
}

// ListPending returns every pending entry ordered by patient_id.
func (s *PatientService) ListPending(ctx context.Context) ([]models.PendingEntry, error) {
	return registry.List[models.PendingEntry](ctx, s.store, registry.Pending)
}

func (s *PatientService) GetPending(ctx context.Context, patientID string) (models.PendingEntry, error) {
	return registry.Get[models.PendingEntry](ctx, s.store, registry.Pending, patientID)
}

// ListAuthorized returns every authorized profile without credentials.
func (s *PatientService) ListAuthorized(ctx context.Context) ([]models.Profile, error) {
	all, err := registry.List[models.Profile](ctx, s.store, registry.Authorized)
	if err != nil {
		return nil, err
	}
	for i := range all {
		all[i] = all[i].Public()
	}
	return all, nil
}

// GetProfile returns the authorized profile of patientID without credentials.
func (s *PatientService) GetProfile(ctx context.Context, patientID string) (models.Profile, error) {
	p, err := registry.Get[models.Profile](ctx, s.store, registry.Authorized, patientID)
	if err != nil {
		return models.Profile{}, err
	}
	return p.Public(), nil
}

// UpdateProfile edits the contact and descriptive fields of a profile.
func (s *PatientService) UpdateProfile(ctx context.Context, patientID string, u ProfileUpdate) (models.Profile, error) {
	p, err := registry.Merge(ctx, s.store, registry.Authorized, patientID, func(p models.Profile, found bool) (models.Profile, error) {
		if !found {
			return p, common.ErrorNotFound
		}
		if u.Name != nil {
			p.Name = strings.TrimSpace(*u.Name)
		}
		if u.DateOfBirth != nil {
			p.DateOfBirth = identity.NormalizeDate(*u.DateOfBirth)
		}
		if u.Phone != nil {
			p.Phone = strings.TrimSpace(*u.Phone)
		}
		if u.Note != nil {
			p.Note = strings.TrimSpace(*u.Note)
		}
		p.UpdatedAt = s.now().UTC()
		return p, nil
	})
	if err != nil {
		return models.Profile{}, err
	}
	return p.Public(), nil
}

// Document finds a document of an authorized patient by stored reference or
// file name.
func (s *PatientService) Document(ctx context.Context, patientID, ref string) (models.Document, error) {
	p, err := registry.Get[models.Profile](ctx, s.store, registry.Authorized, patientID)
	if err != nil {
		return models.Document{}, err
	}
	d, ok := models.FindDocument(p.Documents, ref)
	if !ok {
		return models.Document{}, fmt.Errorf("document %q: %w", ref, common.ErrorNotFound)
	}
	return d, nil
}

// AddDocument records doc on an authorized profile. Unlike RecordDocument it
// never creates a pending entry: an unknown patient is ErrorNotFound.
func (s *PatientService) AddDocument(ctx context.Context, patientID string, doc models.Document) (models.Document, error) {
	if strings.TrimSpace(doc.Filename) == "" && doc.ContentHash == "" {
		return models.Document{}, fmt.Errorf("%w: document needs a filename or content hash", common.ErrValidation)
	}
	now := s.now().UTC()
	if doc.ReceivedAt.IsZero() {
		doc.ReceivedAt = now
	}

	_, err := registry.Merge(ctx, s.store, registry.Authorized, patientID, func(p models.Profile, found bool) (models.Profile, error) {
		if !found {
			return p, fmt.Errorf("patient %s: %w", patientID, common.ErrorNotFound)
		}
		p.Absorb(identity.Identity{PatientID: patientID}, doc, now)
		return p, nil
	})
	if err != nil {
		return models.Document{}, err
	}

	s.logger.Info(ctx, "document added", "patient_id", patientID, "filename", doc.Filename)
	return doc, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrorNotFound)
}
