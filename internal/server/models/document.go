package models

import "time"

// Document is one classified source document attached to a pending entry
// or an authorized profile.
type Document struct {
	Filename     string    `json:"filename"`
	StoredRef    string    `json:"stored_ref,omitempty"`
	ContentHash  string    `json:"content_hash,omitempty"`
	DocumentDate string    `json:"document_date,omitempty"`
	DocumentType string    `json:"document_type,omitempty"`
	Specialty    string    `json:"specialty,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	Diagnoses    []string  `json:"diagnoses,omitempty"`
	Medications  []string  `json:"medications,omitempty"`
	Therapies    []string  `json:"therapies,omitempty"`
	LabExams     []string  `json:"lab_exams,omitempty"`
	ImagingExams []string  `json:"imaging_exams,omitempty"`
	MainExams    []string  `json:"main_exams,omitempty"`
	History      []string  `json:"history,omitempty"`
	Notes        []string  `json:"notes,omitempty"`
	ReceivedAt   time.Time `json:"received_at"`
}

// SameAs reports whether d and o describe the same source document: equal
// content hashes when both are known, equal file names otherwise.
func (d Document) SameAs(o Document) bool {
	if d.ContentHash != "" && o.ContentHash != "" {
		return d.ContentHash == o.ContentHash
	}
	return d.Filename != "" && d.Filename == o.Filename
}

// UpsertDocument replaces the matching document in docs or appends doc.
// The boolean result is true when doc was appended.
func UpsertDocument(docs []Document, doc Document) ([]Document, bool) {
	for i := range docs {
		if docs[i].SameAs(doc) {
			docs[i] = doc
			return docs, false
		}
	}
	return append(docs, doc), true
}

// FindDocument returns the document whose stored reference or file name
// equals ref.
func FindDocument(docs []Document, ref string) (Document, bool) {
	for _, d := range docs {
		if d.StoredRef == ref || d.Filename == ref {
			return d, true
		}
	}
	return Document{}, false
}
