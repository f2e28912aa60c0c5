package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/medkeeper/internal/common"
	"github.com/dmitrijs2005/medkeeper/internal/logging"
	"github.com/dmitrijs2005/medkeeper/internal/server/auth"
	"github.com/dmitrijs2005/medkeeper/internal/server/models"
	"github.com/dmitrijs2005/medkeeper/internal/server/registry"
	"github.com/google/uuid"
)

// Invite lifetime bounds, in hours.
const (
	DefaultInviteTTLHours = 48
	MinInviteTTLHours     = 1
	MaxInviteTTLHours     = 336
)

const inviteTokenBytes = 16

// ClampInviteTTL maps a requested lifetime onto the allowed range. Zero
// selects the default.
func ClampInviteTTL(hours int) time.Duration {
	if hours == 0 {
		hours = DefaultInviteTTLHours
	}
	hours = min(max(hours, MinInviteTTLHours), MaxInviteTTLHours)
	return time.Duration(hours) * time.Hour
}

// InviteRequest describes a new invite.
type InviteRequest struct {
	PatientID string
	TTLHours  int
	Note      string
	CreatedBy string
}

// AccessRequestInput is an unauthenticated request for access to a patient.
type AccessRequestInput struct {
	PatientID string
	Requester string
	Contact   string
	Message   string
}

// SharingService brokers invites and access requests. Neither ever grants
// access by itself: invites are claimed once, requests are decided by the
// patient.
type SharingService struct {
	store  *registry.Store
	logger logging.Logger
	now    func() time.Time
}

func NewSharingService(store *registry.Store, logger logging.Logger) *SharingService {
	return &SharingService{
		store:  store,
		logger: logger.With("module", "sharing"),
		now:    time.Now,
	}
}

// CreateInvite issues a single-use token for an authorized patient.
func (s *SharingService) CreateInvite(ctx context.Context, caller auth.Principal, req InviteRequest) (models.Invite, error) {
	if !caller.CanActFor(req.PatientID) {
		return models.Invite{}, common.ErrForbidden
	}
	state, err := s.store.Locate(ctx, req.PatientID)
	if err != nil {
		return models.Invite{}, err
	}
	if state != registry.StateAuthorized {
		return models.Invite{}, fmt.Errorf("%w: patient %s is not authorized", common.ErrorNotFound, req.PatientID)
	}

	token, err := common.RandomToken(inviteTokenBytes)
	if err != nil {
		return models.Invite{}, fmt.Errorf("generate invite token: %w", err)
	}
	createdBy := strings.TrimSpace(req.CreatedBy)
	if createdBy == "" {
		createdBy = caller.Name()
	}
	now := s.now().UTC()
	inv := models.Invite{
		Token:     token,
		PatientID: req.PatientID,
		CreatedBy: createdBy,
		Note:      strings.TrimSpace(req.Note),
		CreatedAt: now,
		ExpiresAt: now.Add(ClampInviteTTL(req.TTLHours)),
		Status:    models.TokenActive,
	}
	if err := s.store.Put(ctx, registry.Invites, token, inv); err != nil {
		return models.Invite{}, err
	}

	s.logger.Info(ctx, "invite created", "patient_id", inv.PatientID, "created_by", createdBy, "expires_at", inv.ExpiresAt)
	return inv, nil
}

// ListInvites returns the invites of patientID, newest first. Active invites
// past their deadline are reported as expired; they are hidden unless
// includeExpired is set.
func (s *SharingService) ListInvites(ctx context.Context, caller auth.Principal, patientID string, includeExpired bool) ([]models.Invite, error) {
	if !caller.CanActFor(patientID) {
		return nil, common.ErrForbidden
	}
	all, err := registry.List[models.Invite](ctx, s.store, registry.Invites)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	out := make([]models.Invite, 0)
	for _, inv := range all {
		if inv.PatientID != patientID {
			continue
		}
		inv.Expire(now)
		if inv.Status == models.TokenExpired && !includeExpired {
			continue
		}
		out = append(out, inv)
	}
	slices.SortStableFunc(out, func(a, b models.Invite) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// ClaimInvite consumes an invite. Exactly one of any number of concurrent
// claimers succeeds.
func (s *SharingService) ClaimInvite(ctx context.Context, token string) (models.Invite, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Invite{}, common.ErrInviteNotFound
	}

	var (
		out     models.Invite
		expired bool
	)
	err := s.store.Update(ctx, []string{registry.LockKey(registry.Invites, token)}, func(tx *registry.Tx) error {
		inv, found, err := registry.TxGet[models.Invite](tx, registry.Invites, token)
		if err != nil {
			return err
		}
		if !found {
			return common.ErrInviteNotFound
		}
		now := s.now().UTC()
		if inv.Expire(now) {
			expired = true
			return registry.TxPut(tx, registry.Invites, token, inv)
		}
		switch inv.Status {
		case models.TokenActive:
		case models.TokenExpired:
			return common.ErrInviteExpired
		default:
			return common.ErrInviteAlreadyClaimed
		}
		inv.Status = models.TokenClaimed
		inv.ClaimedAt = &now
		out = inv
		return registry.TxPut(tx, registry.Invites, token, inv)
	})
	if err != nil {
		return models.Invite{}, err
	}
	if expired {
		return models.Invite{}, common.ErrInviteExpired
	}

	s.logger.Info(ctx, "invite claimed", "patient_id", out.PatientID)
	return out, nil
}

// RevokeInvite cancels an active invite.
func (s *SharingService) RevokeInvite(ctx context.Context, caller auth.Principal, token string) (models.Invite, error) {
	var out models.Invite
	err := s.store.Update(ctx, []string{registry.LockKey(registry.Invites, token)}, func(tx *registry.Tx) error {
		inv, found, err := registry.TxGet[models.Invite](tx, registry.Invites, token)
		if err != nil {
			return err
		}
		if !found || !caller.CanActFor(inv.PatientID) {
			return common.ErrInviteNotFound
		}
		if inv.Expire(s.now().UTC()) {
			return common.ErrInviteExpired
		}
		if inv.Status != models.TokenActive {
			return common.ErrInviteAlreadyClaimed
		}
		inv.Status = models.TokenRevoked
		out = inv
		return registry.TxPut(tx, registry.Invites, token, inv)
	})
	if err != nil {
		return models.Invite{}, err
	}
	s.logger.Info(ctx, "invite revoked", "patient_id", out.PatientID, "by", caller.Name())
	return out, nil
}

// CreateAccessRequest records a request for access. It is open to anyone and
// does not reveal whether the patient exists.
func (s *SharingService) CreateAccessRequest(ctx context.Context, in AccessRequestInput) (models.AccessRequest, error) {
	in.PatientID = strings.TrimSpace(in.PatientID)
	in.Requester = strings.TrimSpace(in.Requester)
	if in.PatientID == "" || in.Requester == "" {
		return models.AccessRequest{}, fmt.Errorf("%w: patient_id and requester are required", common.ErrValidation)
	}

	req := models.AccessRequest{
		ID:        uuid.NewString(),
		PatientID: in.PatientID,
		Requester: in.Requester,
		Contact:   strings.TrimSpace(in.Contact),
		Message:   strings.TrimSpace(in.Message),
		Status:    models.RequestPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Put(ctx, registry.AccessRequests, req.ID, req); err != nil {
		return models.AccessRequest{}, err
	}
	s.logger.Info(ctx, "access request created", "request_id", req.ID, "patient_id", req.PatientID)
	return req, nil
}

// ListAccessRequests returns the requests addressed to patientID, oldest
// first, optionally filtered by status. Administrators may pass an empty
// patientID to list every request.
func (s *SharingService) ListAccessRequests(ctx context.Context, caller auth.Principal, patientID string, status models.AccessRequestStatus) ([]models.AccessRequest, error) {
	if patientID == "" && !caller.Admin {
		patientID = caller.PatientID
	}
	if patientID != "" && !caller.CanActFor(patientID) {
		return nil, common.ErrForbidden
	}
	if patientID == "" && !caller.Admin {
		return nil, common.ErrForbidden
	}

	all, err := registry.List[models.AccessRequest](ctx, s.store, registry.AccessRequests)
	if err != nil {
		return nil, err
	}
	out := make([]models.AccessRequest, 0)
	for _, r := range all {
		if patientID != "" && r.PatientID != patientID {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b models.AccessRequest) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// DecideAccessRequest approves or rejects a pending request. Only the
// patient the request is addressed to may decide it; requests of other
// patients are reported as not found.
func (s *SharingService) DecideAccessRequest(ctx context.Context, caller auth.Principal, requestID string, decision models.AccessRequestStatus, note string) (models.AccessRequest, error) {
	if caller.PatientID == "" {
		return models.AccessRequest{}, common.ErrForbidden
	}
	if decision != models.RequestApproved && decision != models.RequestRejected {
		return models.AccessRequest{}, fmt.Errorf("%w: decision must be approved or rejected", common.ErrValidation)
	}

	var out models.AccessRequest
	err := s.store.Update(ctx, []string{registry.LockKey(registry.AccessRequests, requestID)}, func(tx *registry.Tx) error {
		r, found, err := registry.TxGet[models.AccessRequest](tx, registry.AccessRequests, requestID)
		if err != nil {
			return err
		}
		if !found || r.PatientID != caller.PatientID {
			return common.ErrAccessRequestNotFound
		}
		if r.Status != models.RequestPending {
			return common.ErrRequestAlreadyDecided
		}
		now := s.now().UTC()
		r.Status = decision
		r.Note = strings.TrimSpace(note)
		r.UpdatedAt = &now
		out = r
		return registry.TxPut(tx, registry.AccessRequests, requestID, r)
	})
	if err != nil {
		return models.AccessRequest{}, err
	}
	s.logger.Info(ctx, "access request decided", "request_id", requestID, "patient_id", out.PatientID, "status", string(decision))
	return out, nil
}
