package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/medkeeper/internal/common"
	"github.com/dmitrijs2005/medkeeper/internal/server/models"
	"github.com/dmitrijs2005/medkeeper/internal/server/registry"
)

// maxEmailAttempts bounds how often updateWithEmails re-locks when the set of
// addresses involved keeps changing under it.
const maxEmailAttempts = 5

// emailPicker returns the addresses whose index entries a section will touch.
type emailPicker func(tx *registry.Tx) ([]string, error)

// updateWithEmails runs fn holding the patient lock and the index locks of
// every address pick reports. pick first runs without locks to learn the
// addresses, then again inside the section; a different answer means a
// concurrent change and the section is retried.
func updateWithEmails(ctx context.Context, store *registry.Store, patientID string, pick emailPicker, fn func(tx *registry.Tx) error) error {
	for attempt := 0; attempt < maxEmailAttempts; attempt++ {
		var want []string
		if err := store.Update(ctx, nil, func(tx *registry.Tx) error {
			var err error
			want, err = pickSorted(tx, pick)
			return err
		}); err != nil {
			return err
		}

		locks := []string{registry.PatientLock(patientID)}
		for _, e := range want {
			locks = append(locks, registry.LockKey(registry.Emails, e))
		}

		retry := false
		err := store.Update(ctx, locks, func(tx *registry.Tx) error {
			got, err := pickSorted(tx, pick)
			if err != nil {
				return err
			}
			if !slices.Equal(got, want) {
				retry = true
				return nil
			}
			return fn(tx)
		})
		if err != nil || !retry {
			return err
		}
	}
	return fmt.Errorf("%w: email index kept changing for %s", common.ErrorInternal, patientID)
}

func pickSorted(tx *registry.Tx, pick emailPicker) ([]string, error) {
	raw, err := pick(tx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if e = models.NormalizeEmail(e); e != "" {
			out = append(out, e)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// claimEmail points the index entry of email at patientID. It fails with
// ErrEmailInUse when another patient owns the address.
func claimEmail(tx *registry.Tx, email, patientID string) error {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil
	}
	owner, found, err := registry.TxGet[string](tx, registry.Emails, email)
	if err != nil {
		return err
	}
	if found && owner != patientID {
		return common.ErrEmailInUse
	}
	return registry.TxPut(tx, registry.Emails, email, patientID)
}

// releaseEmail drops the index entry of email if patientID owns it.
func releaseEmail(tx *registry.Tx, email, patientID string) error {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil
	}
	owner, found, err := registry.TxGet[string](tx, registry.Emails, email)
	if err != nil || !found || owner != patientID {
		return err
	}
	return tx.Delete(registry.Emails, email)
}

// findAccount resolves a login identifier to an authorized profile. An
// identifier containing "@" is looked up in the email index, anything else
// is taken as a patient_id (retried upper-cased, fiscal codes being stored
// that way).
func findAccount(ctx context.Context, store *registry.Store, identifier string) (models.Profile, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return models.Profile{}, common.ErrorNotFound
	}

	if strings.Contains(identifier, "@") {
		id, err := registry.Get[string](ctx, store, registry.Emails, models.NormalizeEmail(identifier))
		if err != nil {
			return models.Profile{}, err
		}
		return registry.Get[models.Profile](ctx, store, registry.Authorized, id)
	}

	p, err := registry.Get[models.Profile](ctx, store, registry.Authorized, identifier)
	if errors.Is(err, common.ErrorNotFound) && strings.ToUpper(identifier) != identifier {
		return registry.Get[models.Profile](ctx, store, registry.Authorized, strings.ToUpper(identifier))
	}
	return p, err
}
