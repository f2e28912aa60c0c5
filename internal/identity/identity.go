package identity

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/dmitrijs2005/medkeeper/internal/common"
)

// Confidence tells how the patient_id was derived.
type Confidence string

const (
	ConfidenceFiscalCode Confidence = "fiscal_code"
	ConfidenceNameDOB    Confidence = "name_dob"
	ConfidenceFilename   Confidence = "filename"
)

// Metadata is the subset of extracted document fields used for resolution.
// Any field may be empty.
type Metadata struct {
	FiscalCode  string
	Name        string
	DateOfBirth string
	Filename    string
}

// Identity is the resolver output.
type Identity struct {
	PatientID   string     `json:"patient_id"`
	Confidence  Confidence `json:"confidence"`
	FiscalCode  string     `json:"fiscal_code,omitempty"`
	Name        string     `json:"name,omitempty"`
	DateOfBirth string     `json:"date_of_birth,omitempty"`
}

// LowConfidence reports whether the identity came from the filename only.
func (i Identity) LowConfidence() bool {
	return i.Confidence == ConfidenceFilename
}

var fiscalCodeRe = regexp.MustCompile(`^[A-Z]{6}[0-9LMNPQRSTUV]{2}[ABCDEHLMPRST][0-9LMNPQRSTUV]{2}[A-Z][0-9LMNPQRSTUV]{3}[A-Z]$`)

// copy suffix added by file managers, e.g. "referto (2)"
var copySuffixRe = regexp.MustCompile(`^(.*\S)\s+\(\d+\)$`)

// Day and month may have one or two digits in every layout.
var dateLayouts = []string{
	"2006-1-2",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2006/1/2",
}

// FilenamePrefix starts every filename-derived patient_id. Slugify never
// emits '_' and fiscal codes are upper-case, so such ids cannot collide with
// a fiscal code or name and date of birth key.
const FilenamePrefix = "file_"

// FromFilename reports whether patientID was derived from a filename.
func FromFilename(patientID string) bool {
	return strings.HasPrefix(patientID, FilenamePrefix)
}

// NormalizeFiscalCode removes every whitespace rune and upper-cases the rest.
func NormalizeFiscalCode(code string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, code))
}

// ValidFiscalCode checks the layout of an Italian personal fiscal code,
// including omocodia substitutions. The check character is not verified.
func ValidFiscalCode(code string) bool {
	return fiscalCodeRe.MatchString(NormalizeFiscalCode(code))
}

// NormalizeDate rewrites a recognised date of birth to ISO form. Values in an
// unknown layout are returned trimmed so the derived slug stays deterministic.
func NormalizeDate(value string) string {
	v := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return v
}

// Slugify lower-cases value and keeps letters and digits. Any run of other
// runes becomes a single "-" and leading or trailing separators are trimmed.
func Slugify(value string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(value) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// StripCopySuffix removes a trailing " (N)" added to duplicated file names.
func StripCopySuffix(value string) string {
	if m := copySuffixRe.FindStringSubmatch(value); m != nil {
		return m[1]
	}
	return value
}

// FilenameStem returns the base name of filename without extension and
// without a copy suffix. Both slash styles are treated as separators.
func FilenameStem(filename string) string {
	base := path.Base(filepath.ToSlash(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/")))
	if base == "." || base == "/" {
		return ""
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	return StripCopySuffix(strings.TrimSpace(base))
}

// Resolve derives the patient identity for one document.
func Resolve(m Metadata) (Identity, error) {
	name := strings.TrimSpace(m.Name)
	dob := NormalizeDate(m.DateOfBirth)

	if cf := NormalizeFiscalCode(m.FiscalCode); fiscalCodeRe.MatchString(cf) {
		return Identity{
			PatientID:   cf,
			Confidence:  ConfidenceFiscalCode,
			FiscalCode:  cf,
			Name:        name,
			DateOfBirth: dob,
		}, nil
	}

	if name != "" && dob != "" {
		if id := Slugify(name + " " + dob); id != "" {
			return Identity{
				PatientID:   id,
				Confidence:  ConfidenceNameDOB,
				Name:        name,
				DateOfBirth: dob,
			}, nil
		}
	}

	if stem := Slugify(FilenameStem(m.Filename)); stem != "" {
		return Identity{
			PatientID:   FilenamePrefix + stem,
			Confidence:  ConfidenceFilename,
			Name:        name,
			DateOfBirth: dob,
		}, nil
	}

	return Identity{}, fmt.Errorf("%w: no fiscal code, name with date of birth, or usable filename", common.ErrIdentityResolution)
}
