package models

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/medkeeper/internal/identity"
)

// PendingEntry accumulates what has been seen about an identity that no
// administrator has authorized yet.
type PendingEntry struct {
	PatientID     string              `json:"patient_id"`
	Name          string              `json:"name,omitempty"`
	FiscalCode    string              `json:"fiscal_code,omitempty"`
	DateOfBirth   string              `json:"date_of_birth,omitempty"`
	Email         string              `json:"email,omitempty"`
	Confidence    identity.Confidence `json:"confidence"`
	LowConfidence bool                `json:"low_confidence"`
	Documents     []Document          `json:"documents"`
	FirstSeen     time.Time           `json:"first_seen"`
	LastSeen      time.Time           `json:"last_seen"`
}

// NewPendingEntry creates the entry for the first sighting of id.
func NewPendingEntry(id identity.Identity, email string, doc Document, now time.Time) PendingEntry {
	p := PendingEntry{
		PatientID:     id.PatientID,
		Confidence:    id.Confidence,
		LowConfidence: id.LowConfidence(),
		FirstSeen:     now,
	}
	p.Absorb(id, email, doc, now)
	return p
}

// Absorb merges a later sighting. Only missing fields are filled; a fiscal
// code that is already recorded is never replaced.
func (p *PendingEntry) Absorb(id identity.Identity, email string, doc Document, now time.Time) {
	p.Name = fillMissing(p.Name, id.Name)
	p.FiscalCode = fillMissing(p.FiscalCode, id.FiscalCode)
	p.DateOfBirth = fillMissing(p.DateOfBirth, id.DateOfBirth)
	p.Email = fillMissing(p.Email, NormalizeEmail(email))
	if confidenceRank(id.Confidence) > confidenceRank(p.Confidence) {
		p.Confidence = id.Confidence
	}
	if id.LowConfidence() {
		p.LowConfidence = true
	}
	if doc.Filename != "" || doc.ContentHash != "" {
		p.Documents, _ = UpsertDocument(p.Documents, doc)
	}
	p.LastSeen = now
}

// Credentials hold the hashed login secrets of a registered patient.
type Credentials struct {
	PasswordHash     string    `json:"password_hash"`
	PasswordSalt     string    `json:"password_salt"`
	SecurityQuestion string    `json:"security_question,omitempty"`
	AnswerHash       string    `json:"answer_hash,omitempty"`
	AnswerSalt       string    `json:"answer_salt,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Profile is the record of an authorized patient.
type Profile struct {
	PatientID   string       `json:"patient_id"`
	Name        string       `json:"name,omitempty"`
	FiscalCode  string       `json:"fiscal_code,omitempty"`
	DateOfBirth string       `json:"date_of_birth,omitempty"`
	Email       string       `json:"email,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	Note        string       `json:"note,omitempty"`
	Documents   []Document   `json:"documents"`
	Aggregates  Aggregates   `json:"aggregates"`
	Credentials *Credentials `json:"credentials,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NewProfile seeds a profile from the pending entry it replaces.
func NewProfile(p PendingEntry, now time.Time) Profile {
	docs := append([]Document(nil), p.Documents...)
	return Profile{
		PatientID:   p.PatientID,
		Name:        p.Name,
		FiscalCode:  p.FiscalCode,
		DateOfBirth: p.DateOfBirth,
		Email:       NormalizeEmail(p.Email),
		Documents:   docs,
		Aggregates:  ComputeAggregates(docs),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Registered reports whether the patient has set a password.
func (p Profile) Registered() bool {
	return p.Credentials != nil && p.Credentials.PasswordHash != ""
}

// Public returns a copy without credentials, safe to hand to callers.
func (p Profile) Public() Profile {
	p.Credentials = nil
	return p
}

// Absorb records a document ingested after authorization. The email is
// left alone: it is owned by the email index and changes only through
// explicit account operations.
func (p *Profile) Absorb(id identity.Identity, doc Document, now time.Time) {
	p.Name = fillMissing(p.Name, id.Name)
	p.FiscalCode = fillMissing(p.FiscalCode, id.FiscalCode)
	p.DateOfBirth = fillMissing(p.DateOfBirth, id.DateOfBirth)
	if doc.Filename != "" || doc.ContentHash != "" {
		p.Documents, _ = UpsertDocument(p.Documents, doc)
	}
	p.Aggregates = ComputeAggregates(p.Documents)
	p.UpdatedAt = now
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func fillMissing(current, candidate string) string {
	if strings.TrimSpace(current) != "" {
		return current
	}
	return strings.TrimSpace(candidate)
}

func confidenceRank(c identity.Confidence) int {
	switch c {
	case identity.ConfidenceFiscalCode:
		return 3
	case identity.ConfidenceNameDOB:
		return 2
	case identity.ConfidenceFilename:
		return 1
	default:
		return 0
	}
}
