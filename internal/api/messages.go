package api

import (
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/medkeeper/internal/server/ingest"
	"github.com/dmitrijs2005/medkeeper/internal/server/models"
)

type Empty struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	PatientID string    `json:"patient_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SignupRequest struct {
	PatientID        string `json:"patient_id"`
	FiscalCode       string `json:"fiscal_code,omitempty"`
	DateOfBirth      string `json:"date_of_birth,omitempty"`
	Email            string `json:"email"`
	Phone            string `json:"phone,omitempty"`
	SecurityQuestion string `json:"security_question"`
	SecurityAnswer   string `json:"security_answer"`
}

type SignupResponse struct {
	PatientID string `json:"patient_id"`
	EmailSent bool   `json:"email_sent"`
	Message   string `json:"message"`
}

type RegisterAccountRequest struct {
	PatientID        string `json:"patient_id"`
	FiscalCode       string `json:"fiscal_code,omitempty"`
	DateOfBirth      string `json:"date_of_birth,omitempty"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	SecurityQuestion string `json:"security_question"`
	SecurityAnswer   string `json:"security_answer"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type InitPasswordResetRequest struct {
	Identifier string `json:"identifier"`
}

type InitPasswordResetResponse struct {
	Message  string `json:"message"`
	Question string `json:"question,omitempty"`
	Token    string `json:"token,omitempty"`
}

type CompletePasswordResetRequest struct {
	Token       string `json:"token"`
	Answer      string `json:"answer"`
	NewPassword string `json:"new_password"`
}

type ProfileResponse struct {
	Profile models.Profile `json:"profile"`
}

type UpdateProfileRequest struct {
	Name        *string `json:"name,omitempty"`
	DateOfBirth *string `json:"date_of_birth,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Note        *string `json:"note,omitempty"`
}

// GetProfileRequest names the patient. A patient session may leave it empty
// to mean itself.
type GetProfileRequest struct {
	PatientID string `json:"patient_id,omitempty"`
}

type DownloadDocumentRequest struct {
	PatientID string `json:"patient_id,omitempty"`
	Ref       string `json:"ref"`
}

// DownloadDocumentResponse carries either a presigned URL or the content.
type DownloadDocumentResponse struct {
	Document models.Document `json:"document"`
	URL      string          `json:"url,omitempty"`
	Content  []byte          `json:"content,omitempty"`
}

// UploadDocumentRequest adds a file to an authorized profile. PatientID may
// be empty for a patient session.
type UploadDocumentRequest struct {
	PatientID    string `json:"patient_id,omitempty"`
	Filename     string `json:"filename"`
	Content      []byte `json:"content"`
	DocumentType string `json:"document_type,omitempty"`
	DocumentDate string `json:"document_date,omitempty"`
}

type UploadDocumentResponse struct {
	Document models.Document `json:"document"`
	Size     int             `json:"size"`
}

type DownloadAllRequest struct {
	PatientID string `json:"patient_id,omitempty"`
}

// DownloadAllResponse is a zip archive of every stored document.
type DownloadAllResponse struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
	Count    int    `json:"count"`
}

type CreateInviteRequest struct {
	PatientID string `json:"patient_id,omitempty"`
	TTLHours  int    `json:"ttl_hours,omitempty"`
	Note      string `json:"note,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
}

type InviteResponse struct {
	Invite models.Invite `json:"invite"`
}

type ListInvitesRequest struct {
	PatientID      string `json:"patient_id,omitempty"`
	IncludeExpired bool   `json:"include_expired,omitempty"`
}

type ListInvitesResponse struct {
	Invites []models.Invite `json:"invites"`
}

type RevokeInviteRequest struct {
	Token string `json:"token"`
}

type ClaimInviteRequest struct {
	Token string `json:"token"`
}

// ClaimInviteResponse hands the claimer the shared profile.
type ClaimInviteResponse struct {
	Invite  models.Invite  `json:"invite"`
	Profile models.Profile `json:"profile"`
}

type CreateAccessRequestRequest struct {
	PatientID string `json:"patient_id"`
	Requester string `json:"requester"`
	Contact   string `json:"contact,omitempty"`
	Message   string `json:"message,omitempty"`
}

type AccessRequestResponse struct {
	Request models.AccessRequest `json:"request"`
}

type ListAccessRequestsRequest struct {
	PatientID string `json:"patient_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

type ListAccessRequestsResponse struct {
	Requests []models.AccessRequest `json:"requests"`
}

type DecideAccessRequestRequest struct {
	RequestID string `json:"request_id"`
	Decision  string `json:"decision"`
	Note      string `json:"note,omitempty"`
}

type ListPendingResponse struct {
	Pending []models.PendingEntry `json:"pending"`
}

type AuthorizePatientRequest struct {
	PatientID   string `json:"patient_id"`
	Name        string `json:"name,omitempty"`
	FiscalCode  string `json:"fiscal_code,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Note        string `json:"note,omitempty"`
}

type ListPatientsResponse struct {
	Patients []models.Profile `json:"patients"`
}

// IngestDocumentRequest carries analysis records as produced by the
// classification pipeline.
type IngestDocumentRequest struct {
	Records []json.RawMessage `json:"records"`
	Workers int               `json:"workers,omitempty"`
}

type IngestDocumentResponse struct {
	Results  []ingest.Result  `json:"results"`
	Failures []ingest.Failure `json:"failures,omitempty"`
}
