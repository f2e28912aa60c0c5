package grpc

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/dmitrijs2005/medkeeper/internal/api"
	"github.com/dmitrijs2005/medkeeper/internal/common"
	"github.com/dmitrijs2005/medkeeper/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const sessionTokenKey ctxKey = "sessionToken"

// access is the credential a method demands.
type access int

const (
	accessPublic access = iota
	accessSession
	accessSessionOrAdmin
	accessAdmin
)

var methodAccess = map[string]access{
	api.FullMethod(api.MethodPing):                  accessPublic,
	api.FullMethod(api.MethodLogin):                 accessPublic,
	api.FullMethod(api.MethodSignup):                accessPublic,
	api.FullMethod(api.MethodRegisterAccount):       accessPublic,
	api.FullMethod(api.MethodInitPasswordReset):     accessPublic,
	api.FullMethod(api.MethodCompletePasswordReset): accessPublic,
	api.FullMethod(api.MethodClaimInvite):           accessPublic,
	api.FullMethod(api.MethodCreateAccessRequest):   accessPublic,

	api.FullMethod(api.MethodLogout):              accessSession,
	api.FullMethod(api.MethodMe):                  accessSession,
	api.FullMethod(api.MethodChangePassword):      accessSession,
	api.FullMethod(api.MethodUpdateProfile):       accessSession,
	api.FullMethod(api.MethodDecideAccessRequest): accessSession,

	api.FullMethod(api.MethodGetProfile):         accessSessionOrAdmin,
	api.FullMethod(api.MethodDownloadDocument):   accessSessionOrAdmin,
	api.FullMethod(api.MethodUploadDocument):     accessSessionOrAdmin,
	api.FullMethod(api.MethodDownloadAll):        accessSessionOrAdmin,
	api.FullMethod(api.MethodCreateInvite):       accessSessionOrAdmin,
	api.FullMethod(api.MethodListInvites):        accessSessionOrAdmin,
	api.FullMethod(api.MethodRevokeInvite):       accessSessionOrAdmin,
	api.FullMethod(api.MethodListAccessRequests): accessSessionOrAdmin,

	api.FullMethod(api.MethodListPending):      accessAdmin,
	api.FullMethod(api.MethodAuthorizePatient): accessAdmin,
	api.FullMethod(api.MethodListPatients):     accessAdmin,
	api.FullMethod(api.MethodIngestDocument):   accessAdmin,
}

func metadataValue(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(key)
		if len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// authInterceptor resolves the caller of every non-public method and stores
// it in the context. Methods missing from methodAccess are refused.
func (s *GRPCServer) authInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	level, ok := methodAccess[info.FullMethod]
	if !ok {
		return nil, status.Error(codes.PermissionDenied, "method not allowed")
	}
	if level == accessPublic {
		return handler(ctx, req)
	}

	adminToken := metadataValue(ctx, common.AdminTokenHeaderName)
	if adminToken != "" && level != accessSession {
		subject, err := auth.ParseAdminToken(adminToken, s.adminSecret)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		ctx = auth.WithPrincipal(ctx, auth.Principal{Admin: true, Subject: subject})
		return handler(ctx, req)
	}
	if level == accessAdmin {
		return nil, status.Error(codes.Unauthenticated, "missing admin token")
	}

	sessionToken := metadataValue(ctx, common.SessionTokenHeaderName)
	if sessionToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing session token")
	}

	session, err := s.sessions.Validate(ctx, sessionToken)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	ctx = auth.WithPrincipal(ctx, auth.Principal{PatientID: session.PatientID})
	ctx = context.WithValue(ctx, sessionTokenKey, sessionToken)

	return handler(ctx, req)
}

// recoverInterceptor turns a handler panic into an Internal status.
func (s *GRPCServer) recoverInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "panic in handler", "method", info.FullMethod, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = status.Error(codes.Internal, common.ErrorInternal.Error())
		}
	}()
	return handler(ctx, req)
}

func principal(ctx context.Context) (auth.Principal, error) {
	p, ok := auth.FromContext(ctx)
	if !ok {
		return auth.Principal{}, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return p, nil
}

func sessionToken(ctx context.Context) string {
	t, _ := ctx.Value(sessionTokenKey).(string)
	return t
}
