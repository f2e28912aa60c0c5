package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/medkeeper/internal/api"
	"github.com/dmitrijs2005/medkeeper/internal/client/client"
	"github.com/dmitrijs2005/medkeeper/internal/client/config"
	"github.com/dmitrijs2005/medkeeper/internal/identity"
	"github.com/dmitrijs2005/medkeeper/internal/server/auth"
	"github.com/dmitrijs2005/medkeeper/internal/server/ingest"
	"github.com/dmitrijs2005/medkeeper/internal/server/models"
	"github.com/dmitrijs2005/medkeeper/internal/server/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "shared-secret"

// ---- fake client ----

// fakeClient implements client.Client. Calls that a test does not expect
// panic through the nil embedded interface.
type fakeClient struct {
	client.Client

	sessionToken string
	adminToken   string

	// token seen by the last call
	callSession string
	callAdmin   string

	loginPassword string
	logoutCalls   int

	profile models.Profile

	signupReq   *api.SignupRequest
	updateReq   *api.UpdateProfileRequest
	resetInit   *api.InitPasswordResetResponse
	resetReq    *api.CompletePasswordResetRequest
	download    *api.DownloadDocumentResponse
	uploadReq   *api.UploadDocumentRequest
	archive     *api.DownloadAllResponse
	archiveWant string
	inviteReq   *api.CreateInviteRequest
	accessReq   *api.CreateAccessRequestRequest
	decideReq   *api.DecideAccessRequestRequest
	pending     []models.PendingEntry
	ingestReq   *api.IngestDocumentRequest
	ingestResp  *api.IngestDocumentResponse
	profileWant string
}

func (f *fakeClient) seen() {
	f.callSession = f.sessionToken
	f.callAdmin = f.adminToken
}

func (f *fakeClient) Close() error { return nil }
func (f *fakeClient) SetSessionToken(token string) { f.sessionToken = token }
func (f *fakeClient) SetAdminToken(token string) { f.adminToken = token }
func (f *fakeClient) Ping(ctx context.Context) error {
	return nil
}

func (f *fakeClient) Login(ctx context.Context, identifier, password string) (*api.LoginResponse, error) {
	if password != "correct-horse" {
		return nil, client.ErrUnauthorized
	}
	f.loginPassword = password
	return &api.LoginResponse{Token: "tok", PatientID: "p1", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.seen()
	f.logoutCalls++
	return nil
}

func (f *fakeClient) Me(ctx context.Context) (*api.ProfileResponse, error) {
	f.seen()
	return &api.ProfileResponse{Profile: f.profile}, nil
}

func (f *fakeClient) GetProfile(ctx context.Context, patientID string) (*api.ProfileResponse, error) {
	f.seen()
	f.profileWant = patientID
	return &api.ProfileResponse{Profile: f.profile}, nil
}

func (f *fakeClient) Signup(ctx context.Context, req *api.SignupRequest) (*api.SignupResponse, error) {
	f.signupReq = req
	return &api.SignupResponse{PatientID: req.PatientID, Message: "account created"}, nil
}

func (f *fakeClient) UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.ProfileResponse, error) {
	f.seen()
	f.updateReq = req
	return &api.ProfileResponse{Profile: f.profile}, nil
}

func (f *fakeClient) InitPasswordReset(ctx context.Context, identifier string) (*api.InitPasswordResetResponse, error) {
	return f.resetInit, nil
}

func (f *fakeClient) CompletePasswordReset(ctx context.Context, req *api.CompletePasswordResetRequest) error {
	f.resetReq = req
	return nil
}

func (f *fakeClient) DownloadDocument(ctx context.Context, patientID, ref string) (*api.DownloadDocumentResponse, error) {
	f.seen()
	return f.download, nil
}

func (f *fakeClient) UploadDocument(ctx context.Context, req *api.UploadDocumentRequest) (*api.UploadDocumentResponse, error) {
	f.seen()
	f.uploadReq = req
	return &api.UploadDocumentResponse{
		Document: models.Document{Filename: req.Filename, StoredRef: "p1/documents/abc.pdf"},
		Size:     len(req.Content),
	}, nil
}

func (f *fakeClient) DownloadAll(ctx context.Context, patientID string) (*api.DownloadAllResponse, error) {
	f.seen()
	f.archiveWant = patientID
	return f.archive, nil
}

func (f *fakeClient) CreateInvite(ctx context.Context, req *api.CreateInviteRequest) (*api.InviteResponse, error) {
	f.seen()
	f.inviteReq = req
	return &api.InviteResponse{Invite: models.Invite{Token: "inv1", PatientID: req.PatientID, Status: models.TokenActive,
		ExpiresAt: time.Now().Add(48 * time.Hour)}}, nil
}

func (f *fakeClient) CreateAccessRequest(ctx context.Context, req *api.CreateAccessRequestRequest) (*api.AccessRequestResponse, error) {
	f.accessReq = req
	return &api.AccessRequestResponse{Request: models.AccessRequest{ID: "r1", Status: models.RequestPending}}, nil
}

func (f *fakeClient) DecideAccessRequest(ctx context.Context, req *api.DecideAccessRequestRequest) (*api.AccessRequestResponse, error) {
	f.seen()
	f.decideReq = req
	return &api.AccessRequestResponse{Request: models.AccessRequest{ID: req.RequestID,
		Status: models.AccessRequestStatus(req.Decision)}}, nil
}

func (f *fakeClient) ListPending(ctx context.Context) (*api.ListPendingResponse, error) {
	f.seen()
	return &api.ListPendingResponse{Pending: f.pending}, nil
}

func (f *fakeClient) IngestDocument(ctx context.Context, req *api.IngestDocumentRequest) (*api.IngestDocumentResponse, error) {
	f.seen()
	f.ingestReq = req
	return f.ingestResp, nil
}

// ---- helpers ----

type harness struct {
	t      *testing.T
	fc     *fakeClient
	dbPath string
	secret string
	dialed string
}

func newHarness(t *testing.T) *harness {
	return &harness{
		t:      t,
		fc:     &fakeClient{profile: models.Profile{PatientID: "p1", Name: "Mario Rossi"}},
		dbPath: filepath.Join(t.TempDir(), "cli.db"),
		secret: testSecret,
	}
}

// run executes one CLI invocation with input as standard input.
func (h *harness) run(input string, args ...string) (string, error) {
	h.t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SessionDB = h.dbPath
	cfg.AdminSecret = h.secret

	out := &bytes.Buffer{}
	a := NewApp(cfg)
	a.out = out
	a.reader = rdr(input)
	a.dial = func(addr string) (client.Client, error) {
		h.dialed = addr
		return h.fc, nil
	}

	err := a.Run(context.Background(), args)
	return out.String(), err
}

func (h *harness) login() {
	h.t.Helper()
	stubPasswords(h.t, "correct-horse")
	_, err := h.run("", "login", "mario@example.com")
	require.NoError(h.t, err)
}

// ---- account ----

func TestLoginThenMe(t *testing.T) {
	h := newHarness(t)

	stubPasswords(t, "correct-horse")
	out, err := h.run("", "login", "mario@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as p1")

	out, err = h.run("", "me")
	require.NoError(t, err)
	assert.Equal(t, "tok", h.fc.callSession)
	assert.Contains(t, out, `"patient_id": "p1"`)
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)

	stubPasswords(t, "nope")
	_, err := h.run("", "login", "mario@example.com")
	require.ErrorIs(t, err, client.ErrUnauthorized)

	_, err = h.run("", "me")
	require.ErrorIs(t, err, client.ErrNotLoggedIn)
}

func TestLogout_DropsCachedSession(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, err := h.run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
	assert.Equal(t, 1, h.fc.logoutCalls)
	assert.Equal(t, "tok", h.fc.callSession)

	_, err = h.run("", "me")
	require.ErrorIs(t, err, client.ErrNotLoggedIn)
}

func TestSignup_PromptsForAnswer(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("Fido\n", "signup", "RSSMRA80A01H501U",
		"--fiscal-code", "RSSMRA80A01H501U", "--email", "mario@example.com", "--question", "First pet?")
	require.NoError(t, err)
	assert.Contains(t, out, "account created")

	req := h.fc.signupReq
	require.NotNil(t, req)
	assert.Equal(t, "RSSMRA80A01H501U", req.PatientID)
	assert.Equal(t, "First pet?", req.SecurityQuestion)
	assert.Equal(t, "Fido", req.SecurityAnswer)
}

func TestSignup_RequiresEmail(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("Fido\n", "signup", "p1", "--question", "First pet?")
	require.Error(t, err)
	assert.Nil(t, h.fc.signupReq)
}

func TestReset_FullFlow(t *testing.T) {
	h := newHarness(t)
	h.fc.resetInit = &api.InitPasswordResetResponse{Message: "if the account exists", Question: "First pet?", Token: "rt"}

	stubPasswords(t, "new-password", "new-password")
	out, err := h.run("fido\n", "reset", "mario@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "if the account exists")
	assert.Contains(t, out, "First pet?")

	require.NotNil(t, h.fc.resetReq)
	assert.Equal(t, "rt", h.fc.resetReq.Token)
	assert.Equal(t, "fido", h.fc.resetReq.Answer)
	assert.Equal(t, "new-password", h.fc.resetReq.NewPassword)
}

func TestReset_NoChallengeStopsAfterMessage(t *testing.T) {
	h := newHarness(t)
	h.fc.resetInit = &api.InitPasswordResetResponse{Message: "if the account exists"}

	out, err := h.run("", "reset", "ghost@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "if the account exists")
	assert.Nil(t, h.fc.resetReq)
}

func TestProfileUpdate_OnlyChangedFields(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, err := h.run("", "profile", "update", "--phone", "+39 333 1234567")
	require.NoError(t, err)

	req := h.fc.updateReq
	require.NotNil(t, req)
	require.NotNil(t, req.Phone)
	assert.Equal(t, "+39 333 1234567", *req.Phone)
	assert.Nil(t, req.Name)
	assert.Nil(t, req.Note)

	_, err = h.run("", "profile", "update")
	require.ErrorContains(t, err, "nothing to update")
}

func TestProfileShow_AdminNeedsID(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "profile", "show", "--admin")
	require.ErrorContains(t, err, "patient id is required")

	out, err := h.run("", "profile", "show", "--admin", "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", h.fc.profileWant)
	assert.NotEmpty(t, h.fc.callAdmin)
	assert.Contains(t, out, "Mario Rossi")
}

// ---- sharing ----

func TestInviteCreate_AsAdmin(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "invite", "create", "--admin", "--patient", "p1", "--ttl-hours", "500", "--note", "for Dr. Bianchi")
	require.NoError(t, err)
	assert.Contains(t, out, "Invite inv1 for p1")

	req := h.fc.inviteReq
	require.NotNil(t, req)
	assert.Equal(t, "p1", req.PatientID)
	assert.Equal(t, 500, req.TTLHours)
	assert.Equal(t, "for Dr. Bianchi", req.Note)

	subject, err := auth.ParseAdminToken(h.fc.callAdmin, []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, "cli", subject)
}

func TestInviteCreate_WithoutSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "invite", "create")
	require.ErrorIs(t, err, client.ErrNotLoggedIn)
	assert.Nil(t, h.fc.inviteReq)
}

func TestRequestAccess_PromptsForMessage(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("please share\nthe last lab results\n\n", "request-access", "p1", "--requester", "Dr. Bianchi")
	require.NoError(t, err)
	assert.Contains(t, out, "Request r1 is pending")

	req := h.fc.accessReq
	require.NotNil(t, req)
	assert.Equal(t, "p1", req.PatientID)
	assert.Equal(t, "Dr. Bianchi", req.Requester)
	assert.Equal(t, "please share\nthe last lab results", req.Message)
}

func TestRequestsDecide(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "requests", "decide", "r1", "maybe")
	require.ErrorContains(t, err, "approved or rejected")
	assert.Nil(t, h.fc.decideReq)

	h.login()
	out, err := h.run("", "requests", "decide", "r1", "approved", "--note", "ok")
	require.NoError(t, err)
	assert.Contains(t, out, "Request r1 is approved")
	assert.Equal(t, "tok", h.fc.callSession)
	assert.Equal(t, "ok", h.fc.decideReq.Note)
}

// ---- documents ----

func TestDownload_SignedURL(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.fc.download = &api.DownloadDocumentResponse{
		Document: models.Document{Filename: "scans/referto.pdf"},
		URL:      "https://minio.local/p1/documents/abc.pdf?sig=1",
	}

	orig := downloadURL
	t.Cleanup(func() { downloadURL = orig })
	var gotURL string
	downloadURL = func(ctx context.Context, url string) ([]byte, error) {
		gotURL = url
		return []byte("%PDF"), nil
	}

	dest := filepath.Join(t.TempDir(), "out.pdf")
	out, err := h.run("", "download", "referto.pdf", "-o", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "(4 bytes)")
	assert.Equal(t, "https://minio.local/p1/documents/abc.pdf?sig=1", gotURL)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
}

func TestDownload_InlineContent(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.fc.download = &api.DownloadDocumentResponse{
		Document: models.Document{Filename: "referto.pdf"},
		Content:  []byte("inline"),
	}

	dest := filepath.Join(t.TempDir(), "copy.pdf")
	_, err := h.run("", "download", "referto.pdf", "--output", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "inline", string(data))
}

func TestUpload(t *testing.T) {
	h := newHarness(t)
	h.login()
	src := filepath.Join(t.TempDir(), "esame.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4"), 0o600))

	out, err := h.run("", "upload", src, "--type", "esame")
	require.NoError(t, err)
	assert.Contains(t, out, "Uploaded esame.pdf (8 bytes)")

	require.NotNil(t, h.fc.uploadReq)
	assert.Equal(t, "esame.pdf", h.fc.uploadReq.Filename)
	assert.Equal(t, []byte("%PDF-1.4"), h.fc.uploadReq.Content)
	assert.Equal(t, "esame", h.fc.uploadReq.DocumentType)
	assert.NotEmpty(t, h.fc.callSession)
}

func TestUpload_MissingFile(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, err := h.run("", "upload", filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.Nil(t, h.fc.uploadReq)
}

func TestDownloadAll(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.fc.archive = &api.DownloadAllResponse{Filename: "p1_documents.zip", Content: []byte("PK\x03\x04"), Count: 2}

	dest := filepath.Join(t.TempDir(), "all.zip")
	out, err := h.run("", "download-all", "-o", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved 2 documents")
	assert.Empty(t, h.fc.archiveWant)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("PK\x03\x04"), data)
}

// ---- admin ----

func TestAdminPending(t *testing.T) {
	h := newHarness(t)
	h.fc.pending = []models.PendingEntry{
		{PatientID: "RSSMRA80A01H501U", Name: "Mario Rossi", Confidence: identity.ConfidenceFiscalCode},
		{PatientID: "file_referto-mario", Confidence: identity.ConfidenceFilename, LowConfidence: true},
	}

	out, err := h.run("", "admin", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "RSSMRA80A01H501U")
	assert.Contains(t, out, "manual")
	assert.NotEmpty(t, h.fc.callAdmin)
	assert.Empty(t, h.fc.callSession)
}

func TestAdmin_NoSecret(t *testing.T) {
	h := newHarness(t)
	h.secret = ""

	_, err := h.run("", "admin", "pending")
	require.ErrorContains(t, err, "admin secret")
}

func TestAdmin_SecretFromFlag(t *testing.T) {
	h := newHarness(t)
	h.secret = ""

	out, err := h.run("", "admin", "token", "-k", "from-flag")
	require.NoError(t, err)

	_, err = auth.ParseAdminToken(string(bytes.TrimSpace([]byte(out))), []byte("from-flag"))
	require.NoError(t, err)
}

func TestAdminIngest(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	one := filepath.Join(dir, "one.json")
	many := filepath.Join(dir, "many.json")
	require.NoError(t, os.WriteFile(one, []byte(`{"file":"a.pdf"}`), 0o600))
	require.NoError(t, os.WriteFile(many, []byte(` [{"file":"b.pdf"}, {"file":"c.pdf"}] `), 0o600))

	h.fc.ingestResp = &api.IngestDocumentResponse{
		Results: []ingest.Result{
			{PatientID: "p1", State: registry.StatePending, Filename: "a.pdf"},
			{PatientID: "p2", State: registry.StateAuthorized, Filename: "b.pdf"},
		},
		Failures: []ingest.Failure{{Index: 2, Filename: "c.pdf", Error: "identity could not be resolved"}},
	}

	out, err := h.run("", "admin", "ingest", one, many, "--workers", "2")
	require.NoError(t, err)

	req := h.fc.ingestReq
	require.NotNil(t, req)
	require.Len(t, req.Records, 3)
	assert.Equal(t, 2, req.Workers)
	assert.JSONEq(t, `{"file":"c.pdf"}`, string(req.Records[2]))
	assert.Contains(t, out, "2 ingested, 1 skipped")
	assert.Contains(t, out, "skipped record 2 c.pdf")
}

func TestReadRecords(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	rs, err := readRecords(write("obj.json", `{"file":"x.pdf"}`))
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.True(t, json.Valid(rs[0]))

	_, err = readRecords(write("empty.json", "  \n"))
	require.ErrorContains(t, err, "empty file")

	_, err = readRecords(write("bad.json", `{"file":`))
	require.ErrorContains(t, err, "invalid JSON")

	_, err = readRecords(write("badarr.json", `[{"file":1},`))
	require.Error(t, err)

	_, err = readRecords(filepath.Join(dir, "absent.json"))
	require.Error(t, err)
}

// ---- root ----

func TestPing_UsesAddressFlag(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "-a", "srv.example:7000", "ping")
	require.NoError(t, err)
	assert.Equal(t, "OK\n", out)
	assert.Equal(t, "srv.example:7000", h.dialed)
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "frobnicate")
	require.Error(t, err)
}

func TestConnect_BadSessionDB(t *testing.T) {
	h := newHarness(t)
	h.dbPath = filepath.Join(t.TempDir(), "missing", "dir", "cli.db")

	_, err := h.run("", "ping")
	require.ErrorContains(t, err, "session cache")
}
