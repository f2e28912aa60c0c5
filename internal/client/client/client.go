package client

import (
	"context"

	"github.com/dmitrijs2005/medkeeper/internal/api"
)

// Client is the set of MedKeeper calls used by the CLI. Errors are mapped to
// the sentinels of this package.
type Client interface {
	Close() error
	SetSessionToken(token string)
	SetAdminToken(token string)

	Ping(ctx context.Context) error
	Login(ctx context.Context, identifier, password string) (*api.LoginResponse, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*api.ProfileResponse, error)
	Signup(ctx context.Context, req *api.SignupRequest) (*api.SignupResponse, error)
	RegisterAccount(ctx context.Context, req *api.RegisterAccountRequest) (*api.ProfileResponse, error)
	ChangePassword(ctx context.Context, current, next string) error
	InitPasswordReset(ctx context.Context, identifier string) (*api.InitPasswordResetResponse, error)
	CompletePasswordReset(ctx context.Context, req *api.CompletePasswordResetRequest) error
	UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.ProfileResponse, error)
	GetProfile(ctx context.Context, patientID string) (*api.ProfileResponse, error)
	DownloadDocument(ctx context.Context, patientID, ref string) (*api.DownloadDocumentResponse, error)
	UploadDocument(ctx context.Context, req *api.UploadDocumentRequest) (*api.UploadDocumentResponse, error)
	DownloadAll(ctx context.Context, patientID string) (*api.DownloadAllResponse, error)

	CreateInvite(ctx context.Context, req *api.CreateInviteRequest) (*api.InviteResponse, error)
	ListInvites(ctx context.Context, patientID string, includeExpired bool) (*api.ListInvitesResponse, error)
	RevokeInvite(ctx context.Context, token string) (*api.InviteResponse, error)
	ClaimInvite(ctx context.Context, token string) (*api.ClaimInviteResponse, error)
	CreateAccessRequest(ctx context.Context, req *api.CreateAccessRequestRequest) (*api.AccessRequestResponse, error)
	ListAccessRequests(ctx context.Context, patientID, status string) (*api.ListAccessRequestsResponse, error)
	DecideAccessRequest(ctx context.Context, req *api.DecideAccessRequestRequest) (*api.AccessRequestResponse, error)

	ListPending(ctx context.Context) (*api.ListPendingResponse, error)
	AuthorizePatient(ctx context.Context, req *api.AuthorizePatientRequest) (*api.ProfileResponse, error)
	ListPatients(ctx context.Context) (*api.ListPatientsResponse, error)
	IngestDocument(ctx context.Context, req *api.IngestDocumentRequest) (*api.IngestDocumentResponse, error)
}
