package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/medkeeper/internal/api"
	"github.com/dmitrijs2005/medkeeper/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      *api.MedKeeperClient

	mu           sync.RWMutex
	sessionToken string
	adminToken   string
}

var _ Client = (*GRPCClient)(nil)

// withTokens returns ctx with the given tokens set as outgoing metadata.
// Empty tokens are not sent.
func withTokens(ctx context.Context, sessionToken, adminToken string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.SessionTokenHeaderName)
	md.Delete(common.AdminTokenHeaderName)
	if sessionToken != "" {
		md.Set(common.SessionTokenHeaderName, sessionToken)
	}
	if adminToken != "" {
		md.Set(common.AdminTokenHeaderName, adminToken)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) tokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	s.mu.RLock()
	ctx = withTokens(ctx, s.sessionToken, s.adminToken)
	s.mu.RUnlock()

	return invoker(ctx, method, req, reply, cc, opts...)
}

func NewGRPCClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.tokenInterceptor))
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = api.NewMedKeeperClient(conn)
	return nil
}

func (s *GRPCClient) SetSessionToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionToken = token
}

func (s *GRPCClient) SetAdminToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminToken = token
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// mapError converts a gRPC status into one of the package sentinels, keeping
// the server message.
func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	var sentinel error
	switch st.Code() {
	case codes.Unauthenticated:
		sentinel = ErrUnauthorized
	case codes.PermissionDenied:
		sentinel = ErrForbidden
	case codes.NotFound:
		sentinel = ErrNotFound
	case codes.Unavailable, codes.DeadlineExceeded:
		sentinel = ErrUnavailable
	case codes.InvalidArgument, codes.FailedPrecondition, codes.AlreadyExists:
		sentinel = ErrRejected
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}

func result[T any](s *GRPCClient, v *T, err error) (*T, error) {
	if err != nil {
		return nil, s.mapError(err)
	}
	return v, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx)
	if err != nil {
		return s.mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Login(ctx context.Context, identifier, password string) (*api.LoginResponse, error) {
	resp, err := s.client.Login(ctx, &api.LoginRequest{Identifier: identifier, Password: password})
	if err != nil {
		return nil, s.mapError(err)
	}
	s.SetSessionToken(resp.Token)
	return resp, nil
}

func (s *GRPCClient) Logout(ctx context.Context) error {
	if err := s.client.Logout(ctx); err != nil {
		return s.mapError(err)
	}
	s.SetSessionToken("")
	return nil
}

func (s *GRPCClient) Me(ctx context.Context) (*api.ProfileResponse, error) {
	resp, err := s.client.Me(ctx)
	return result(s, resp, err)
}

func (s *GRPCClient) Signup(ctx context.Context, req *api.SignupRequest) (*api.SignupResponse, error) {
	resp, err := s.client.Signup(ctx, req)
	return result(s, resp, err)
}

func (s *GRPCClient) RegisterAccount(ctx context.Context, req *api.RegisterAccountRequest) (*api.ProfileResponse, error) {
	resp, err := s.client.RegisterAccount(ctx, req)
	return result(s, resp, err)
}

func (s *GRPCClient) ChangePassword(ctx context.Context, current, next string) error {
	return s.mapError(s.client.ChangePassword(ctx, &api.ChangePasswordRequest{CurrentPassword: current, NewPassword: next}))
}

func (s *GRPCClient) InitPasswordReset(ctx context.Context, identifier string) (*api.InitPasswordResetResponse, error) {
	resp, err := s.client.InitPasswordReset(ctx, &api.InitPasswordResetRequest{Identifier: identifier})
	return result(s, resp, err)
}

func (s *GRPCClient) CompletePasswordReset(ctx context.Context, req *api.CompletePasswordResetRequest) error {
	return s.mapError(s.client.CompletePasswordReset(ctx, req))
}

func (s *GRPCClient) UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.ProfileResponse, error) {
	resp, err := s.client.UpdateProfile(ctx, req)
	return result(s, resp, err)
}

func (s *GRPCClient) GetProfile(ctx context.Context, patientID string) (*api.ProfileResponse, error) {
	resp, err := s.client.GetProfile(ctx, &api.GetProfileRequest{PatientID: patientID})
	return result(s, resp, err)
}

func (s *GRPCClient) DownloadDocument(ctx context.Context, patientID, ref string) (*api.DownloadDocumentResponse, error) {
	resp, err := s.client.DownloadDocument(ctx, &api.DownloadDocumentRequest{PatientID: patientID, Ref: ref})
	return result(s, resp, err)
}

func (s *GRPCClient) UploadDocument(ctx context.Context, req *api.UploadDocumentRequest) (*api.UploadDocumentResponse, error) {
	resp, err := s.client.UploadDocument(ctx, req)
	return result(s, resp, err)
}

func (s *GRPCClient) DownloadAll(ctx context.Context, patientID string) (*api.DownloadAllResponse, error) {
	resp, err := s.client.DownloadAll(ctx, &api.DownloadAllRequest{PatientID: patientID})
	return result(s, resp, err)
}

func (s *GRPCClient) CreateInvite(ctx context.Context, req *api.CreateInviteRequest) (*api.InviteResponse, error) {
	resp, err := s.client.CreateInvite(ctx, req)
	return result(s, resp, err)
}

func (s *GRPCClient) ListInvites(ctx context.Context, patientID string, includeExpired bool) (*api.ListInvitesResponse, error) {
	resp, err := s.client.ListInvites(ctx, &api.ListInvitesRequest{PatientID: patientID, IncludeExpired: includeExpired})
	return result(s, resp, err)
}

func (s *GRPCClient) RevokeInvite(ctx context.Context, token string) (*api.InviteResponse, error) {
	resp, err := s.client.RevokeInvite(ctx, &api.RevokeInviteRequest{Token: token})
	return result(s, resp, err)
}

func (s *GRPCClient) ClaimInvite(ctx context.Context, token string) (*api.ClaimInviteResponse, error) {
	resp, err := s.client.ClaimInvite(ctx, &api.ClaimInviteRequest{Token: token})
	return result(s, resp, err)
}

func (s *GRPCClient) CreateAccessRequest(ctx context.Context, req *api.CreateAccessRequestRequest) (*api.AccessRequestResponse, error) {
	resp, err := s.client.CreateAccessRequest(ctx, req)
	return result(s, resp, err)
}

func (s *GRPCClient) ListAccessRequests(ctx context.Context, patientID, status string) (*api.ListAccessRequestsResponse, error) {
	resp, err := s.client.ListAccessRequests(ctx, &api.ListAccessRequestsRequest{PatientID: patientID, Status: status})
	return result(s, resp, err)
}

func (s *GRPCClient) DecideAccessRequest(ctx context.Context, req *api.DecideAccessRequestRequest) (*api.AccessRequestResponse, error) {
	resp, err := s.client.DecideAccessRequest(ctx, req)
	return result(s, resp, err)
}

func (s *GRPCClient) ListPending(ctx context.Context) (*api.ListPendingResponse, error) {
	resp, err := s.client.ListPending(ctx)
	return result(s, resp, err)
}

func (s *GRPCClient) AuthorizePatient(ctx context.Context, req *api.AuthorizePatientRequest) (*api.ProfileResponse, error) {
	resp, err := s.client.AuthorizePatient(ctx, req)
	return result(s, resp, err)
}

func (s *GRPCClient) ListPatients(ctx context.Context) (*api.ListPatientsResponse, error) {
	resp, err := s.client.ListPatients(ctx)
	return result(s, resp, err)
}

func (s *GRPCClient) IngestDocument(ctx context.Context, req *api.IngestDocumentRequest) (*api.IngestDocumentResponse, error) {
	resp, err := s.client.IngestDocument(ctx, req)
	return result(s, resp, err)
}
