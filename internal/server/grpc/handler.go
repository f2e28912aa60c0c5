package grpc

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dmitrijs2005/medkeeper/internal/api"
	"github.com/dmitrijs2005/medkeeper/internal/common"
	"github.com/dmitrijs2005/medkeeper/internal/server/auth"
	"github.com/dmitrijs2005/medkeeper/internal/server/ingest"
	"github.com/dmitrijs2005/medkeeper/internal/server/models"
	"github.com/dmitrijs2005/medkeeper/internal/server/services"
	"github.com/dmitrijs2005/medkeeper/internal/server/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// statusCodes maps sentinel errors to gRPC codes. The first match wins.
var statusCodes = []struct {
	err  error
	code codes.Code
}{
	{common.ErrAuthentication, codes.Unauthenticated},
	{common.ErrInvalidSession, codes.Unauthenticated},
	{common.ErrInvalidToken, codes.Unauthenticated},
	{common.ErrTokenExpired, codes.Unauthenticated},
	{common.ErrorUnauthorized, codes.Unauthenticated},
	{common.ErrForbidden, codes.PermissionDenied},
	{common.ErrUnknownPendingPatient, codes.NotFound},
	{common.ErrInviteNotFound, codes.NotFound},
	{common.ErrAccessRequestNotFound, codes.NotFound},
	{common.ErrorNotFound, codes.NotFound},
	{common.ErrInviteExpired, codes.FailedPrecondition},
	{common.ErrInviteAlreadyClaimed, codes.FailedPrecondition},
	{common.ErrRequestAlreadyDecided, codes.FailedPrecondition},
	{common.ErrNotRegistered, codes.FailedPrecondition},
	{common.ErrResetTokenInvalid, codes.FailedPrecondition},
	{common.ErrEmailInUse, codes.AlreadyExists},
	{common.ErrAlreadyRegistered, codes.AlreadyExists},
	{common.ErrWeakPassword, codes.InvalidArgument},
	{common.ErrIdentityResolution, codes.InvalidArgument},
	{common.ErrValidation, codes.InvalidArgument},
	{context.Canceled, codes.Canceled},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
}

// toStatus converts a service error into a gRPC status carrying the sentinel
// message. Unknown errors are logged and reported as internal.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, m := range statusCodes {
		if errors.Is(err, m.err) {
			return status.Error(m.code, m.err.Error())
		}
	}
	s.logger.Error(ctx, "request failed", "error", err.Error())
	return status.Error(codes.Internal, common.ErrorInternal.Error())
}

// target picks the patient a request is about: the explicit id, or the
// caller's own when omitted.
func target(p auth.Principal, patientID string) (string, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		patientID = p.PatientID
	}
	if patientID == "" {
		return "", status.Error(codes.InvalidArgument, "patient_id is required")
	}
	if !p.CanActFor(patientID) {
		return "", status.Error(codes.PermissionDenied, common.ErrForbidden.Error())
	}
	return patientID, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *api.Empty) (*api.PingResponse, error) {

	return &api.PingResponse{Status: "OK"}, nil

}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {

	tok, err := s.sessions.Login(ctx, req.Identifier, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.LoginResponse{Token: tok.Token, PatientID: tok.PatientID, ExpiresAt: tok.ExpiresAt}, nil

}

func (s *GRPCServer) Logout(ctx context.Context, req *api.Empty) (*api.Empty, error) {

	if err := s.sessions.Logout(ctx, sessionToken(ctx)); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.Empty{}, nil

}

func (s *GRPCServer) Me(ctx context.Context, req *api.Empty) (*api.ProfileResponse, error) {

	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.patients.GetProfile(ctx, p.PatientID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.ProfileResponse{Profile: profile}, nil

}

func (s *GRPCServer) Signup(ctx context.Context, req *api.SignupRequest) (*api.SignupResponse, error) {

	s.logger.Info(ctx, "Signup request", "patient_id", req.PatientID)

	res, err := s.accounts.Signup(ctx, services.SignupRequest{
		PatientID:        req.PatientID,
		FiscalCode:       req.FiscalCode,
		DateOfBirth:      req.DateOfBirth,
		Email:            req.Email,
		Phone:            req.Phone,
		SecurityQuestion: req.SecurityQuestion,
		SecurityAnswer:   req.SecurityAnswer,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	msg := "account created, credentials sent by email"
	if !res.EmailSent {
		msg = "account created, credentials could not be delivered: use password reset"
	}
	return &api.SignupResponse{PatientID: res.PatientID, EmailSent: res.EmailSent, Message: msg}, nil

}

func (s *GRPCServer) RegisterAccount(ctx context.Context, req *api.RegisterAccountRequest) (*api.ProfileResponse, error) {

	s.logger.Info(ctx, "Registration request", "patient_id", req.PatientID)

	profile, err := s.accounts.Register(ctx, services.Registration{
		PatientID:        req.PatientID,
		FiscalCode:       req.FiscalCode,
		DateOfBirth:      req.DateOfBirth,
		Email:            req.Email,
		Password:         req.Password,
		SecurityQuestion: req.SecurityQuestion,
		SecurityAnswer:   req.SecurityAnswer,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.ProfileResponse{Profile: profile}, nil

}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *api.ChangePasswordRequest) (*api.Empty, error) {

	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.ChangePassword(ctx, p.PatientID, sessionToken(ctx), req.CurrentPassword, req.NewPassword); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.Empty{}, nil

}

func (s *GRPCServer) InitPasswordReset(ctx context.Context, req *api.InitPasswordResetRequest) (*api.InitPasswordResetResponse, error) {

	ch, err := s.accounts.InitPasswordReset(ctx, req.Identifier)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.InitPasswordResetResponse{Message: ch.Message, Question: ch.Question, Token: ch.Token}, nil

}

func (s *GRPCServer) CompletePasswordReset(ctx context.Context, req *api.CompletePasswordResetRequest) (*api.Empty, error) {

	if err := s.accounts.CompletePasswordReset(ctx, req.Token, req.Answer, req.NewPassword); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.Empty{}, nil

}

func (s *GRPCServer) UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.ProfileResponse, error) {

	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.patients.UpdateProfile(ctx, p.PatientID, services.ProfileUpdate{
		Name:        req.Name,
		DateOfBirth: req.DateOfBirth,
		Phone:       req.Phone,
		Note:        req.Note,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.ProfileResponse{Profile: profile}, nil

}

func (s *GRPCServer) GetProfile(ctx context.Context, req *api.GetProfileRequest) (*api.ProfileResponse, error) {

	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	id, err := target(p, req.PatientID)
	if err != nil {
		return nil, err
	}

	profile, err := s.patients.GetProfile(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.ProfileResponse{Profile: profile}, nil

}

// DownloadDocument returns a presigned URL when the storage can sign one,
// the content otherwise.
func (s *GRPCServer) DownloadDocument(ctx context.Context, req *api.DownloadDocumentRequest) (*api.DownloadDocumentResponse, error) {

	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	id, err := target(p, req.PatientID)
	if err != nil {
		return nil, err
	}

	doc, err := s.patients.Document(ctx, id, req.Ref)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if doc.StoredRef == "" || s.storage == nil {
		return nil, s.toStatus(ctx, fmt.Errorf("content of %q: %w", doc.Filename, common.ErrorNotFound))
	}

	resp := &api.DownloadDocumentResponse{Document: doc}
	if signer, ok := s.storage.(storage.URLSigner); ok {
		resp.URL, err = signer.SignedURL(ctx, doc.StoredRef, s.opts.DownloadURLTTL)
	} else {
		resp.Content, err = s.storage.Retrieve(ctx, doc.StoredRef)
	}
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Document downloaded", "patient_id", id, "ref", doc.StoredRef, "by", p.Name())
	return resp, nil

}

// UploadDocument stores a file sent by the patient and records it on their
// authorized profile.
func (s *GRPCServer) UploadDocument(ctx context.Context, req *api.UploadDocumentRequest) (*api.UploadDocumentResponse, error) {

	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	id, err := target(p, req.PatientID)
	if err != nil {
		return nil, err
	}
	if len(req.Content) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty document")
	}
	if s.storage == nil {
		return nil, status.Error(codes.FailedPrecondition, "document storage is not configured")
	}
	if _, err := s.patients.GetProfile(ctx, id); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	filename := filepath.Base(strings.ReplaceAll(strings.TrimSpace(req.Filename), `\`, "/"))
	if filename == "" || filename == "." || filename == "/" {
		filename = "document.pdf"
	}

	ref, err := s.storage.Store(ctx, id, filename, req.Content)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	doc, err := s.patients.AddDocument(ctx, id, models.Document{
		Filename:     filename,
		StoredRef:    ref,
		ContentHash:  storage.ContentHash(req.Content),
		DocumentType: req.DocumentType,
		DocumentDate: req.DocumentDate,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Document uploaded", "patient_id", id, "ref", ref, "size", len(req.Content), "by", p.Name())
	return &api.UploadDocumentResponse{Document: doc, Size: len(req.Content)}, nil

}

// DownloadAll returns every stored document of a profile as one zip archive.
func (s *GRPCServer) DownloadAll(ctx context.Context, req *api.DownloadAllRequest) (*api.DownloadAllResponse, error) {

	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	id, err := target(p, req.PatientID)
	if err != nil {
		return nil, err
	}

	profile, err := s.patients.GetProfile(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if s.storage == nil {
		return nil, s.toStatus(ctx, fmt.Errorf("documents of %s: %w", id, common.ErrorNotFound))
	}

	entries := make([]storage.ArchiveEntry, 0, len(profile.Documents))
	for _, d := range profile.Documents {
		entries = append(entries, storage.ArchiveEntry{Name: d.Filename, Ref: d.StoredRef})
	}
	content, count, err := storage.Bundle(ctx, s.storage, entries)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Documents archived", "patient_id", id, "count", count, "by", p.Name())
	return &api.DownloadAllResponse{
		Filename: strings.ReplaceAll(id, " ", "_") + "_documents.zip",
		Content:  content,
		Count:    count,
	}, nil

}

func (s *GRPCServer) CreateInvite(ctx context.Context, req *api.CreateInviteRequest) (*api.InviteResponse, error) {

	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	id, err := target(p, req.PatientID)
	if err != nil {
		return nil, err
	}

	inv, err := s.sharing.CreateInvite(ctx, p, services.InviteRequest{
		PatientID: id,
		TTLHours:  req.TTLHours,
		Note:      req.Note,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.InviteResponse{Invite: inv}, nil

}

func (s *GRPCServer) ListInvites(ctx context.Context, req *api.ListInvitesRequest) (*api.ListInvitesResponse, error) {

	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	id, err := target(p, req.PatientID)
	if err != nil {
		return nil, err
	}

	invites, err := s.sharing.ListInvites(ctx, p, id, req.IncludeExpired)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.ListInvitesResponse{Invites: invites}, nil

}

func (s *GRPCServer) RevokeInvite(ctx context.Context, req *api.RevokeInviteRequest) (*api.InviteResponse, error) {

	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	inv, err := s.sharing.RevokeInvite(ctx, p, req.Token)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.InviteResponse{Invite: inv}, nil

}

func (s *GRPCServer) ClaimInvite(ctx context.Context, req *api.ClaimInviteRequest) (*api.ClaimInviteResponse, error) {

	inv, err := s.sharing.ClaimInvite(ctx, req.Token)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	profile, err := s.patients.GetProfile(ctx, inv.PatientID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.ClaimInviteResponse{Invite: inv, Profile: profile}, nil

}

func (s *GRPCServer) CreateAccessRequest(ctx context.Context, req *api.CreateAccessRequestRequest) (*api.AccessRequestResponse, error) {

	ar, err := s.sharing.CreateAccessRequest(ctx, services.AccessRequestInput{
		PatientID: req.PatientID,
		Requester: req.Requester,
		Contact:   req.Contact,
		Message:   req.Message,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.AccessRequestResponse{Request: ar}, nil

}

func (s *GRPCServer) ListAccessRequests(ctx context.Context, req *api.ListAccessRequestsRequest) (*api.ListAccessRequestsResponse, error) {

	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	requests, err := s.sharing.ListAccessRequests(ctx, p, req.PatientID, models.AccessRequestStatus(req.Status))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.ListAccessRequestsResponse{Requests: requests}, nil

}

func (s *GRPCServer) DecideAccessRequest(ctx context.Context, req *api.DecideAccessRequestRequest) (*api.AccessRequestResponse, error) {

	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	ar, err := s.sharing.DecideAccessRequest(ctx, p, req.RequestID, models.AccessRequestStatus(req.Decision), req.Note)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.AccessRequestResponse{Request: ar}, nil

}

func (s *GRPCServer) ListPending(ctx context.Context, req *api.Empty) (*api.ListPendingResponse, error) {

	pending, err := s.patients.ListPending(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.ListPendingResponse{Pending: pending}, nil

}

func (s *GRPCServer) AuthorizePatient(ctx context.Context, req *api.AuthorizePatientRequest) (*api.ProfileResponse, error) {

	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.patients.Authorize(ctx, req.PatientID, services.AuthorizeOverrides{
		Name:        req.Name,
		FiscalCode:  req.FiscalCode,
		DateOfBirth: req.DateOfBirth,
		Email:       req.Email,
		Phone:       req.Phone,
		Note:        req.Note,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Patient authorized", "patient_id", profile.PatientID, "by", p.Name())
	return &api.ProfileResponse{Profile: profile}, nil

}

func (s *GRPCServer) ListPatients(ctx context.Context, req *api.Empty) (*api.ListPatientsResponse, error) {

	patients, err := s.patients.ListAuthorized(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.ListPatientsResponse{Patients: patients}, nil

}

// IngestDocument ingests a batch. Records that do not decode are reported
// as failures next to the ones the coordinator rejects.
func (s *GRPCServer) IngestDocument(ctx context.Context, req *api.IngestDocumentRequest) (*api.IngestDocumentResponse, error) {

	if len(req.Records) == 0 {
		return nil, status.Error(codes.InvalidArgument, "no records")
	}

	var (
		records  []ingest.Record
		index    []int
		failures []ingest.Failure
	)
	for i, raw := range req.Records {
		r, err := ingest.DecodeRecord(raw)
		if err != nil {
			failures = append(failures, ingest.Failure{Index: i, Error: err.Error()})
			continue
		}
		records = append(records, r)
		index = append(index, i)
	}

	workers := req.Workers
	if workers <= 0 {
		workers = s.opts.IngestWorkers
	}

	batch, err := s.ingest.IngestBatch(ctx, records, workers)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	for _, f := range batch.Failures {
		f.Index = index[f.Index]
		failures = append(failures, f)
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Index < failures[j].Index })

	return &api.IngestDocumentResponse{Results: batch.Results, Failures: failures}, nil

}
