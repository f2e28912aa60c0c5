package api

import (
	"context"

	"google.golang.org/grpc"
)

// MedKeeperClient is a typed client over a gRPC connection using the JSON codec.
type MedKeeperClient struct {
	cc grpc.ClientConnInterface
}

func NewMedKeeperClient(cc grpc.ClientConnInterface) *MedKeeperClient {
	return &MedKeeperClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MedKeeperClient) Ping(ctx context.Context, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, MethodPing, &Empty{}, opts)
}

func (c *MedKeeperClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, MethodLogin, in, opts)
}

func (c *MedKeeperClient) Logout(ctx context.Context, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, MethodLogout, &Empty{}, opts)
	return err
}

func (c *MedKeeperClient) Me(ctx context.Context, opts ...grpc.CallOption) (*ProfileResponse, error) {
	return invoke[ProfileResponse](ctx, c.cc, MethodMe, &Empty{}, opts)
}

func (c *MedKeeperClient) Signup(ctx context.Context, in *SignupRequest, opts ...grpc.CallOption) (*SignupResponse, error) {
	return invoke[SignupResponse](ctx, c.cc, MethodSignup, in, opts)
}

func (c *MedKeeperClient) RegisterAccount(ctx context.Context, in *RegisterAccountRequest, opts ...grpc.CallOption) (*ProfileResponse, error) {
	return invoke[ProfileResponse](ctx, c.cc, MethodRegisterAccount, in, opts)
}

func (c *MedKeeperClient) ChangePassword(ctx context.Context, in *ChangePasswordRequest, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, MethodChangePassword, in, opts)
	return err
}

func (c *MedKeeperClient) InitPasswordReset(ctx context.Context, in *InitPasswordResetRequest, opts ...grpc.CallOption) (*InitPasswordResetResponse, error) {
	return invoke[InitPasswordResetResponse](ctx, c.cc, MethodInitPasswordReset, in, opts)
}

func (c *MedKeeperClient) CompletePasswordReset(ctx context.Context, in *CompletePasswordResetRequest, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, MethodCompletePasswordReset, in, opts)
	return err
}

func (c *MedKeeperClient) UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*ProfileResponse, error) {
	return invoke[ProfileResponse](ctx, c.cc, MethodUpdateProfile, in, opts)
}

func (c *MedKeeperClient) GetProfile(ctx context.Context, in *GetProfileRequest, opts ...grpc.CallOption) (*ProfileResponse, error) {
	return invoke[ProfileResponse](ctx, c.cc, MethodGetProfile, in, opts)
}

func (c *MedKeeperClient) DownloadDocument(ctx context.Context, in *DownloadDocumentRequest, opts ...grpc.CallOption) (*DownloadDocumentResponse, error) {
	return invoke[DownloadDocumentResponse](ctx, c.cc, MethodDownloadDocument, in, opts)
}

func (c *MedKeeperClient) UploadDocument(ctx context.Context, in *UploadDocumentRequest, opts ...grpc.CallOption) (*UploadDocumentResponse, error) {
	return invoke[UploadDocumentResponse](ctx, c.cc, MethodUploadDocument, in, opts)
}

func (c *MedKeeperClient) DownloadAll(ctx context.Context, in *DownloadAllRequest, opts ...grpc.CallOption) (*DownloadAllResponse, error) {
	return invoke[DownloadAllResponse](ctx, c.cc, MethodDownloadAll, in, opts)
}

func (c *MedKeeperClient) CreateInvite(ctx context.Context, in *CreateInviteRequest, opts ...grpc.CallOption) (*InviteResponse, error) {
	return invoke[InviteResponse](ctx, c.cc, MethodCreateInvite, in, opts)
}

func (c *MedKeeperClient) ListInvites(ctx context.Context, in *ListInvitesRequest, opts ...grpc.CallOption) (*ListInvitesResponse, error) {
	return invoke[ListInvitesResponse](ctx, c.cc, MethodListInvites, in, opts)
}

func (c *MedKeeperClient) RevokeInvite(ctx context.Context, in *RevokeInviteRequest, opts ...grpc.CallOption) (*InviteResponse, error) {
	return invoke[InviteResponse](ctx, c.cc, MethodRevokeInvite, in, opts)
}

func (c *MedKeeperClient) ClaimInvite(ctx context.Context, in *ClaimInviteRequest, opts ...grpc.CallOption) (*ClaimInviteResponse, error) {
	return invoke[ClaimInviteResponse](ctx, c.cc, MethodClaimInvite, in, opts)
}

func (c *MedKeeperClient) CreateAccessRequest(ctx context.Context, in *CreateAccessRequestRequest, opts ...grpc.CallOption) (*AccessRequestResponse, error) {
	return invoke[AccessRequestResponse](ctx, c.cc, MethodCreateAccessRequest, in, opts)
}

func (c *MedKeeperClient) ListAccessRequests(ctx context.Context, in *ListAccessRequestsRequest, opts ...grpc.CallOption) (*ListAccessRequestsResponse, error) {
	return invoke[ListAccessRequestsResponse](ctx, c.cc, MethodListAccessRequests, in, opts)
}

func (c *MedKeeperClient) DecideAccessRequest(ctx context.Context, in *DecideAccessRequestRequest, opts ...grpc.CallOption) (*AccessRequestResponse, error) {
	return invoke[AccessRequestResponse](ctx, c.cc, MethodDecideAccessRequest, in, opts)
}

func (c *MedKeeperClient) ListPending(ctx context.Context, opts ...grpc.CallOption) (*ListPendingResponse, error) {
	return invoke[ListPendingResponse](ctx, c.cc, MethodListPending, &Empty{}, opts)
}

func (c *MedKeeperClient) AuthorizePatient(ctx context.Context, in *AuthorizePatientRequest, opts ...grpc.CallOption) (*ProfileResponse, error) {
	return invoke[ProfileResponse](ctx, c.cc, MethodAuthorizePatient, in, opts)
}

func (c *MedKeeperClient) ListPatients(ctx context.Context, opts ...grpc.CallOption) (*ListPatientsResponse, error) {
	return invoke[ListPatientsResponse](ctx, c.cc, MethodListPatients, &Empty{}, opts)
}

func (c *MedKeeperClient) IngestDocument(ctx context.Context, in *IngestDocumentRequest, opts ...grpc.CallOption) (*IngestDocumentResponse, error) {
	return invoke[IngestDocumentResponse](ctx, c.cc, MethodIngestDocument, in, opts)
}
