package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/medkeeper/internal/identity"
	"github.com/dmitrijs2005/medkeeper/internal/server/models"
)

// ErrMalformed marks a message that can never be ingested.
var ErrMalformed = errors.New("malformed ingest record")

// Record is one document analysis as produced by the classification
// pipeline. Field names follow the pipeline's JSON output.
type Record struct {
	File     string        `json:"file"`
	Document RecordDoc     `json:"documento"`
	Patient  RecordPatient `json:"paziente"`

	Summary      string   `json:"riassunto,omitempty"`
	Diagnoses    []string `json:"diagnosi_principali,omitempty"`
	Medications  []string `json:"farmaci_prescritti,omitempty"`
	Therapies    []string `json:"terapie,omitempty"`
	LabExams     []string `json:"esami_laboratorio,omitempty"`
	ImagingExams []string `json:"esami_diagnostica,omitempty"`
	MainExams    []string `json:"esami_principali,omitempty"`
	History      []string `json:"anamnesi,omitempty"`
	Notes        []string `json:"note_rilevanti,omitempty"`

	// Content is the original file, base64 in JSON. Optional.
	Content []byte `json:"content,omitempty"`
}

type RecordDoc struct {
	Type      string `json:"tipologia,omitempty"`
	Specialty string `json:"specialita,omitempty"`
	Date      string `json:"data_documento,omitempty"`
}

type RecordPatient struct {
	Name        string `json:"nome,omitempty"`
	FiscalCode  string `json:"codice_fiscale,omitempty"`
	DateOfBirth string `json:"data_nascita,omitempty"`
	Email       string `json:"email,omitempty"`
}

// DecodeRecord parses a message body.
func DecodeRecord(b []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return r, nil
}

// Filename is the base name of the source file.
func (r Record) Filename() string {
	f := strings.TrimSpace(r.File)
	if f == "" {
		return ""
	}
	return path.Base(filepath.ToSlash(strings.ReplaceAll(f, `\`, "/")))
}

// Metadata extracts the identity fields.
func (r Record) Metadata() identity.Metadata {
	return identity.Metadata{
		FiscalCode:  r.Patient.FiscalCode,
		Name:        r.Patient.Name,
		DateOfBirth: r.Patient.DateOfBirth,
		Filename:    r.File,
	}
}

// ToDocument maps the clinical fields onto a models.Document.
func (r Record) ToDocument() models.Document {
	return models.Document{
		Filename:     r.Filename(),
		DocumentDate: strings.TrimSpace(r.Document.Date),
		DocumentType: strings.TrimSpace(r.Document.Type),
		Specialty:    models.SelectSpecialty(r.Document.Specialty),
		Summary:      strings.TrimSpace(r.Summary),
		Diagnoses:    r.Diagnoses,
		Medications:  r.Medications,
		Therapies:    r.Therapies,
		LabExams:     r.LabExams,
		ImagingExams: r.ImagingExams,
		MainExams:    r.MainExams,
		History:      r.History,
		Notes:        r.Notes,
	}
}
