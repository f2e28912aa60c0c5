// Package grpc exposes the MedKeeper services over gRPC with the JSON codec
// from internal/api.
package grpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/dmitrijs2005/medkeeper/internal/api"
	"github.com/dmitrijs2005/medkeeper/internal/logging"
	"github.com/dmitrijs2005/medkeeper/internal/server/auth"
	"github.com/dmitrijs2005/medkeeper/internal/server/ingest"
	"github.com/dmitrijs2005/medkeeper/internal/server/models"
	"github.com/dmitrijs2005/medkeeper/internal/server/services"
	"github.com/dmitrijs2005/medkeeper/internal/server/storage"
	"google.golang.org/grpc"
)

type patientService interface {
	ListPending(ctx context.Context) ([]models.PendingEntry, error)
	Authorize(ctx context.Context, patientID string, o services.AuthorizeOverrides) (models.Profile, error)
	ListAuthorized(ctx context.Context) ([]models.Profile, error)
	GetProfile(ctx context.Context, patientID string) (models.Profile, error)
	UpdateProfile(ctx context.Context, patientID string, u services.ProfileUpdate) (models.Profile, error)
	Document(ctx context.Context, patientID, ref string) (models.Document, error)
	AddDocument(ctx context.Context, patientID string, doc models.Document) (models.Document, error)
}

type sessionService interface {
	Login(ctx context.Context, identifier, password string) (services.SessionToken, error)
	Validate(ctx context.Context, token string) (models.Session, error)
	Logout(ctx context.Context, token string) error
}

type accountService interface {
	Register(ctx context.Context, r services.Registration) (models.Profile, error)
	ChangePassword(ctx context.Context, patientID, keepToken, current, next string) error
	InitPasswordReset(ctx context.Context, identifier string) (services.ResetChallenge, error)
	CompletePasswordReset(ctx context.Context, token, answer, next string) error
	Signup(ctx context.Context, r services.SignupRequest) (services.SignupResult, error)
}

type sharingService interface {
	CreateInvite(ctx context.Context, caller auth.Principal, req services.InviteRequest) (models.Invite, error)
	ListInvites(ctx context.Context, caller auth.Principal, patientID string, includeExpired bool) ([]models.Invite, error)
	ClaimInvite(ctx context.Context, token string) (models.Invite, error)
	RevokeInvite(ctx context.Context, caller auth.Principal, token string) (models.Invite, error)
	CreateAccessRequest(ctx context.Context, in services.AccessRequestInput) (models.AccessRequest, error)
	ListAccessRequests(ctx context.Context, caller auth.Principal, patientID string, status models.AccessRequestStatus) ([]models.AccessRequest, error)
	DecideAccessRequest(ctx context.Context, caller auth.Principal, requestID string, decision models.AccessRequestStatus, note string) (models.AccessRequest, error)
}

type ingester interface {
	IngestBatch(ctx context.Context, records []ingest.Record, workers int) (ingest.BatchResult, error)
}

// Services groups the collaborators of the gRPC server. Storage may be nil
// when document content is not kept.
type Services struct {
	Patients patientService
	Sessions sessionService
	Accounts accountService
	Sharing  sharingService
	Ingest   ingester
	Storage  storage.DocumentStorage
}

// Options tune request handling.
type Options struct {
	// IngestWorkers is the default batch parallelism of IngestDocument.
	IngestWorkers int
	// DownloadURLTTL is the lifetime of presigned download URLs.
	DownloadURLTTL time.Duration
}

type GRPCServer struct {
	address     string
	patients    patientService
	sessions    sessionService
	accounts    accountService
	sharing     sharingService
	ingest      ingester
	storage     storage.DocumentStorage
	logger      logging.Logger
	adminSecret []byte
	opts        Options
}

var _ api.MedKeeperServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, svc Services, adminSecret string, opts Options) (*GRPCServer, error) {
	if adminSecret == "" {
		return nil, errors.New("admin secret is required")
	}
	if opts.IngestWorkers <= 0 {
		opts.IngestWorkers = ingest.DefaultWorkers
	}
	if opts.DownloadURLTTL <= 0 {
		opts.DownloadURLTTL = storage.DefaultPresignTTL
	}
	return &GRPCServer{
		address:     a,
		logger:      l.With("module", "grpc_server"),
		patients:    svc.Patients,
		sessions:    svc.Sessions,
		accounts:    svc.Accounts,
		sharing:     svc.Sharing,
		ingest:      svc.Ingest,
		storage:     svc.Storage,
		adminSecret: []byte(adminSecret),
		opts:        opts,
	}, nil
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve runs the server on an existing listener until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoverInterceptor, s.authInterceptor))

	api.RegisterMedKeeperServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return nil
}
