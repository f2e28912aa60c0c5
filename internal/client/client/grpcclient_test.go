package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/medkeeper/internal/api"
	"github.com/dmitrijs2005/medkeeper/internal/common"
	"github.com/dmitrijs2005/medkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

/*************
 * Fake connection
 *************/

// fakeConn records the last call and answers with resp copied through JSON.
type fakeConn struct {
	method string
	in     any
	resp   any
	err    error
}

func (f *fakeConn) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	f.method = method
	f.in = args
	if f.err != nil {
		return f.err
	}
	if f.resp == nil {
		return nil
	}
	b, err := json.Marshal(f.resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, reply)
}

func (f *fakeConn) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("streams not supported")
}

func newTestClient(f *fakeConn) *GRPCClient {
	return &GRPCClient{client: api.NewMedKeeperClient(f)}
}

/*************
 * tokenInterceptor tests
 *************/

func TestInterceptor_SetsBothTokens(t *testing.T) {
	c := &GRPCClient{}
	c.SetSessionToken("S1")
	c.SetAdminToken("A1")

	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		assert.Equal(t, []string{"S1"}, md.Get(common.SessionTokenHeaderName))
		assert.Equal(t, []string{"A1"}, md.Get(common.AdminTokenHeaderName))
		return nil
	}

	require.NoError(t, c.tokenInterceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker))
}

func TestInterceptor_SkipsEmptyTokensAndReplacesExisting(t *testing.T) {
	c := &GRPCClient{}
	c.SetSessionToken("fresh")

	ctx := metadata.AppendToOutgoingContext(context.Background(),
		common.SessionTokenHeaderName, "stale",
		common.AdminTokenHeaderName, "stale-admin",
		"x-trace", "t1")

	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		assert.Equal(t, []string{"fresh"}, md.Get(common.SessionTokenHeaderName))
		assert.Empty(t, md.Get(common.AdminTokenHeaderName))
		assert.Equal(t, []string{"t1"}, md.Get("x-trace"))
		return nil
	}

	require.NoError(t, c.tokenInterceptor(ctx, "/svc/Method", nil, nil, nil, invoker))
}

func TestInterceptor_PassesErrorThrough(t *testing.T) {
	c := &GRPCClient{}
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.Internal, "boom")
	}
	err := c.tokenInterceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	require.Equal(t, codes.Internal, status.Code(err))
}

/*************
 * mapError tests
 *************/

func TestMapError(t *testing.T) {
	c := &GRPCClient{}

	tests := []struct {
		code codes.Code
		want error
	}{
		{codes.Unauthenticated, ErrUnauthorized},
		{codes.PermissionDenied, ErrForbidden},
		{codes.NotFound, ErrNotFound},
		{codes.Unavailable, ErrUnavailable},
		{codes.DeadlineExceeded, ErrUnavailable},
		{codes.InvalidArgument, ErrRejected},
		{codes.FailedPrecondition, ErrRejected},
		{codes.AlreadyExists, ErrRejected},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			err := c.mapError(status.Error(tt.code, "server says no"))
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "server says no")
		})
	}

	require.NoError(t, c.mapError(nil))
	require.ErrorContains(t, c.mapError(status.Error(codes.Internal, "x")), "rpc error:")
	require.ErrorContains(t, c.mapError(errors.New("plain")), "rpc error:")
}

/*************
 * call tests
 *************/

func TestPing(t *testing.T) {
	f := &fakeConn{resp: &api.PingResponse{Status: "OK"}}
	require.NoError(t, newTestClient(f).Ping(context.Background()))
	assert.Equal(t, api.FullMethod(api.MethodPing), f.method)

	f = &fakeConn{resp: &api.PingResponse{Status: "NOT_OK"}}
	require.ErrorIs(t, newTestClient(f).Ping(context.Background()), ErrUnavailable)

	f = &fakeConn{err: status.Error(codes.Unavailable, "down")}
	require.ErrorIs(t, newTestClient(f).Ping(context.Background()), ErrUnavailable)
}

func TestLogin_StoresSessionToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).UTC()
	f := &fakeConn{resp: &api.LoginResponse{Token: "tok", PatientID: "p1", ExpiresAt: exp}}
	c := newTestClient(f)

	resp, err := c.Login(context.Background(), "mario@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "p1", resp.PatientID)
	assert.Equal(t, "tok", c.sessionToken)

	in, ok := f.in.(*api.LoginRequest)
	require.True(t, ok)
	assert.Equal(t, "mario@example.com", in.Identifier)
	assert.Equal(t, "pw", in.Password)
}

func TestLogin_Failure(t *testing.T) {
	f := &fakeConn{err: status.Error(codes.Unauthenticated, common.ErrAuthentication.Error())}
	c := newTestClient(f)

	_, err := c.Login(context.Background(), "x", "y")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, c.sessionToken)
}

func TestLogout_ClearsSessionToken(t *testing.T) {
	f := &fakeConn{}
	c := newTestClient(f)
	c.SetSessionToken("tok")

	require.NoError(t, c.Logout(context.Background()))
	assert.Empty(t, c.sessionToken)
	assert.Equal(t, api.FullMethod(api.MethodLogout), f.method)
}

func TestListInvites_BuildsRequest(t *testing.T) {
	f := &fakeConn{resp: &api.ListInvitesResponse{Invites: []models.Invite{{Token: "t1", Status: models.TokenActive}}}}

	resp, err := newTestClient(f).ListInvites(context.Background(), "p1", true)
	require.NoError(t, err)
	require.Len(t, resp.Invites, 1)
	assert.Equal(t, "t1", resp.Invites[0].Token)

	in := f.in.(*api.ListInvitesRequest)
	assert.Equal(t, "p1", in.PatientID)
	assert.True(t, in.IncludeExpired)
}

func TestClaimInvite_MapsAlreadyClaimed(t *testing.T) {
	f := &fakeConn{err: status.Error(codes.FailedPrecondition, common.ErrInviteAlreadyClaimed.Error())}

	_, err := newTestClient(f).ClaimInvite(context.Background(), "t1")
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), common.ErrInviteAlreadyClaimed.Error())
}

func TestChangePassword(t *testing.T) {
	f := &fakeConn{}
	require.NoError(t, newTestClient(f).ChangePassword(context.Background(), "old", "new-password"))

	in := f.in.(*api.ChangePasswordRequest)
	assert.Equal(t, "old", in.CurrentPassword)
	assert.Equal(t, "new-password", in.NewPassword)
}

func TestUploadDocument_PassesContent(t *testing.T) {
	f := &fakeConn{resp: &api.UploadDocumentResponse{Document: models.Document{Filename: "a.pdf", StoredRef: "p/documents/h.pdf"}, Size: 4}}

	resp, err := newTestClient(f).UploadDocument(context.Background(), &api.UploadDocumentRequest{Filename: "a.pdf", Content: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, "p/documents/h.pdf", resp.Document.StoredRef)
	assert.Equal(t, api.FullMethod(api.MethodUploadDocument), f.method)
	assert.Equal(t, []byte("%PDF"), f.in.(*api.UploadDocumentRequest).Content)
}

func TestDownloadAll_BuildsRequest(t *testing.T) {
	f := &fakeConn{resp: &api.DownloadAllResponse{Filename: "p1_documents.zip", Content: []byte("PK"), Count: 1}}

	resp, err := newTestClient(f).DownloadAll(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "p1", f.in.(*api.DownloadAllRequest).PatientID)

	f = &fakeConn{err: status.Error(codes.NotFound, common.ErrorNotFound.Error())}
	_, err = newTestClient(f).DownloadAll(context.Background(), "p1")
	require.Error(t, err)
}

func TestClose_NoConnection(t *testing.T) {
	require.NoError(t, (&GRPCClient{}).Close())
}

func TestNewGRPCClient_LazyConnect(t *testing.T) {
	c, err := NewGRPCClient("127.0.0.1:1")
	require.NoError(t, err)
	require.NoError(t, c.Close())
}
