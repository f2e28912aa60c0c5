package models

import "time"

// TokenStatus is the lifecycle state of a single-use token.
type TokenStatus string

const (
	TokenActive  TokenStatus = "active"
	TokenClaimed TokenStatus = "claimed"
	TokenExpired TokenStatus = "expired"
	TokenRevoked TokenStatus = "revoked"
)

// Invite lets a third party claim access to a patient's profile once.
type Invite struct {
	Token     string      `json:"token"`
	PatientID string      `json:"patient_id"`
	CreatedBy string      `json:"created_by,omitempty"`
	Note      string      `json:"note,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
	ClaimedAt *time.Time  `json:"claimed_at,omitempty"`
	Status    TokenStatus `json:"status"`
}

// Expire moves an active invite past its deadline to expired. It returns
// true when the status changed.
func (i *Invite) Expire(now time.Time) bool {
	if i.Status == TokenActive && !now.Before(i.ExpiresAt) {
		i.Status = TokenExpired
		return true
	}
	return false
}

// PasswordReset is a single-use token for the security-question flow.
type PasswordReset struct {
	Token     string      `json:"token"`
	PatientID string      `json:"patient_id"`
	Method    string      `json:"method"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
	ClaimedAt *time.Time  `json:"claimed_at,omitempty"`
	Status    TokenStatus `json:"status"`
	// Attempts counts wrong security answers given with this token.
	Attempts int `json:"attempts,omitempty"`
}

// Usable reports whether the reset token can still be redeemed at now.
func (r PasswordReset) Usable(now time.Time) bool {
	return r.Status == TokenActive && now.Before(r.ExpiresAt)
}

// AccessRequestStatus is the decision state of an access request.
type AccessRequestStatus string

const (
	RequestPending  AccessRequestStatus = "pending"
	RequestApproved AccessRequestStatus = "approved"
	RequestRejected AccessRequestStatus = "rejected"
)

// AccessRequest is a third party asking a patient for access.
type AccessRequest struct {
	ID        string              `json:"request_id"`
	PatientID string              `json:"patient_id"`
	Requester string              `json:"requester"`
	Contact   string              `json:"contact,omitempty"`
	Message   string              `json:"message,omitempty"`
	Status    AccessRequestStatus `json:"status"`
	Note      string              `json:"note,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt *time.Time          `json:"updated_at,omitempty"`
}
