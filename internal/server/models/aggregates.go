package models

// SpecialtyEntry is the per-specialty summary of a document.
type SpecialtyEntry struct {
	Filename     string `json:"filename"`
	StoredRef    string `json:"stored_ref,omitempty"`
	DocumentDate string `json:"document_date,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
	Summary      string `json:"summary,omitempty"`
}

// Aggregates are the clinical summaries recomputed from a profile's documents.
type Aggregates struct {
	History      []string                    `json:"history"`
	Therapies    []string                    `json:"therapies"`
	LabExams     []string                    `json:"lab_exams"`
	ImagingExams []string                    `json:"imaging_exams"`
	BySpecialty  map[string][]SpecialtyEntry `json:"by_specialty"`
}

// ComputeAggregates unions the clinical lists of docs in document order,
// dropping duplicates. Main exams are counted as laboratory exams.
func ComputeAggregates(docs []Document) Aggregates {
	var history, therapies, lab, imaging []string
	bySpecialty := make(map[string][]SpecialtyEntry)

	for _, d := range docs {
		history = append(history, d.History...)
		therapies = append(therapies, d.Therapies...)
		lab = append(lab, d.LabExams...)
		lab = append(lab, d.MainExams...)
		imaging = append(imaging, d.ImagingExams...)

		spec := SelectSpecialty(d.Specialty)
		bySpecialty[spec] = append(bySpecialty[spec], SpecialtyEntry{
			Filename:     d.Filename,
			StoredRef:    d.StoredRef,
			DocumentDate: d.DocumentDate,
			DocumentType: d.DocumentType,
			Summary:      d.Summary,
		})
	}

	return Aggregates{
		History:      unique(history),
		Therapies:    unique(therapies),
		LabExams:     unique(lab),
		ImagingExams: unique(imaging),
		BySpecialty:  bySpecialty,
	}
}

func unique(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == "" {
			continue
		}
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
