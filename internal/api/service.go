package api

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "medkeeper.v1.MedKeeper"

const (
	MethodPing                  = "Ping"
	MethodLogin                 = "Login"
	MethodLogout                = "Logout"
	MethodMe                    = "Me"
	MethodSignup                = "Signup"
	MethodRegisterAccount       = "RegisterAccount"
	MethodChangePassword        = "ChangePassword"
	MethodInitPasswordReset     = "InitPasswordReset"
	MethodCompletePasswordReset = "CompletePasswordReset"
	MethodUpdateProfile         = "UpdateProfile"
	MethodGetProfile            = "GetProfile"
	MethodDownloadDocument      = "DownloadDocument"
	MethodUploadDocument        = "UploadDocument"
	MethodDownloadAll           = "DownloadAll"
	MethodCreateInvite          = "CreateInvite"
	MethodListInvites           = "ListInvites"
	MethodRevokeInvite          = "RevokeInvite"
	MethodClaimInvite           = "ClaimInvite"
	MethodCreateAccessRequest   = "CreateAccessRequest"
	MethodListAccessRequests    = "ListAccessRequests"
	MethodDecideAccessRequest   = "DecideAccessRequest"
	MethodListPending           = "ListPending"
	MethodAuthorizePatient      = "AuthorizePatient"
	MethodListPatients          = "ListPatients"
	MethodIngestDocument        = "IngestDocument"
)

// FullMethod returns the gRPC path of a method, e.g. "/medkeeper.v1.MedKeeper/Login".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// MedKeeperServer is implemented by the server handler.
type MedKeeperServer interface {
	Ping(context.Context, *Empty) (*PingResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Logout(context.Context, *Empty) (*Empty, error)
	Me(context.Context, *Empty) (*ProfileResponse, error)
	Signup(context.Context, *SignupRequest) (*SignupResponse, error)
	RegisterAccount(context.Context, *RegisterAccountRequest) (*ProfileResponse, error)
	ChangePassword(context.Context, *ChangePasswordRequest) (*Empty, error)
	InitPasswordReset(context.Context, *InitPasswordResetRequest) (*InitPasswordResetResponse, error)
	CompletePasswordReset(context.Context, *CompletePasswordResetRequest) (*Empty, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*ProfileResponse, error)
	GetProfile(context.Context, *GetProfileRequest) (*ProfileResponse, error)
	DownloadDocument(context.Context, *DownloadDocumentRequest) (*DownloadDocumentResponse, error)
	UploadDocument(context.Context, *UploadDocumentRequest) (*UploadDocumentResponse, error)
	DownloadAll(context.Context, *DownloadAllRequest) (*DownloadAllResponse, error)
	CreateInvite(context.Context, *CreateInviteRequest) (*InviteResponse, error)
	ListInvites(context.Context, *ListInvitesRequest) (*ListInvitesResponse, error)
	RevokeInvite(context.Context, *RevokeInviteRequest) (*InviteResponse, error)
	ClaimInvite(context.Context, *ClaimInviteRequest) (*ClaimInviteResponse, error)
	CreateAccessRequest(context.Context, *CreateAccessRequestRequest) (*AccessRequestResponse, error)
	ListAccessRequests(context.Context, *ListAccessRequestsRequest) (*ListAccessRequestsResponse, error)
	DecideAccessRequest(context.Context, *DecideAccessRequestRequest) (*AccessRequestResponse, error)
	ListPending(context.Context, *Empty) (*ListPendingResponse, error)
	AuthorizePatient(context.Context, *AuthorizePatientRequest) (*ProfileResponse, error)
	ListPatients(context.Context, *Empty) (*ListPatientsResponse, error)
	IngestDocument(context.Context, *IngestDocumentRequest) (*IngestDocumentResponse, error)
}

// unary adapts a typed server method into a grpc.MethodDesc.
func unary[Req, Resp any](name string, call func(MedKeeperServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MedKeeperServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MedKeeperServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MedKeeperServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodPing, MedKeeperServer.Ping),
		unary(MethodLogin, MedKeeperServer.Login),
		unary(MethodLogout, MedKeeperServer.Logout),
		unary(MethodMe, MedKeeperServer.Me),
		unary(MethodSignup, MedKeeperServer.Signup),
		unary(MethodRegisterAccount, MedKeeperServer.RegisterAccount),
		unary(MethodChangePassword, MedKeeperServer.ChangePassword),
		unary(MethodInitPasswordReset, MedKeeperServer.InitPasswordReset),
		unary(MethodCompletePasswordReset, MedKeeperServer.CompletePasswordReset),
		unary(MethodUpdateProfile, MedKeeperServer.UpdateProfile),
		unary(MethodGetProfile, MedKeeperServer.GetProfile),
		unary(MethodDownloadDocument, MedKeeperServer.DownloadDocument),
		unary(MethodUploadDocument, MedKeeperServer.UploadDocument),
		unary(MethodDownloadAll, MedKeeperServer.DownloadAll),
		unary(MethodCreateInvite, MedKeeperServer.CreateInvite),
		unary(MethodListInvites, MedKeeperServer.ListInvites),
		unary(MethodRevokeInvite, MedKeeperServer.RevokeInvite),
		unary(MethodClaimInvite, MedKeeperServer.ClaimInvite),
		unary(MethodCreateAccessRequest, MedKeeperServer.CreateAccessRequest),
		unary(MethodListAccessRequests, MedKeeperServer.ListAccessRequests),
		unary(MethodDecideAccessRequest, MedKeeperServer.DecideAccessRequest),
		unary(MethodListPending, MedKeeperServer.ListPending),
		unary(MethodAuthorizePatient, MedKeeperServer.AuthorizePatient),
		unary(MethodListPatients, MedKeeperServer.ListPatients),
		unary(MethodIngestDocument, MedKeeperServer.IngestDocument),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "medkeeper/v1/medkeeper.json",
}

// RegisterMedKeeperServer attaches srv to a gRPC server.
func RegisterMedKeeperServer(s grpc.ServiceRegistrar, srv MedKeeperServer) {
	s.RegisterService(&ServiceDesc, srv)
}
