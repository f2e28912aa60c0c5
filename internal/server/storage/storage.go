// Package storage keeps the bytes of ingested documents. Objects are content
// addressed per patient, so storing the same file twice is a no-op.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/medkeeper/internal/common"
	"github.com/dmitrijs2005/medkeeper/internal/identity"
)

// DocumentStorage stores and retrieves document bytes by reference.
type DocumentStorage interface {
	Store(ctx context.Context, patientID, filename string, data []byte) (string, error)
	Retrieve(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// URLSigner is implemented by backends that can hand out time-limited
// download links.
type URLSigner interface {
	SignedURL(ctx context.Context, ref string, ttl time.Duration) (string, error)
}

// ContentHash returns the hex SHA-256 of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Ref builds the reference of data for patientID:
// <patient slug>/documents/<sha256><ext>. Filename-derived ids keep their
// prefix so their objects never share a directory with a stronger identity.
func Ref(patientID, filename string, data []byte) (string, error) {
	slug := identity.Slugify(patientID)
	if identity.FromFilename(patientID) {
		if rest := identity.Slugify(strings.TrimPrefix(patientID, identity.FilenamePrefix)); rest != "" {
			slug = identity.FilenamePrefix + rest
		} else {
			slug = ""
		}
	}
	if slug == "" {
		return "", fmt.Errorf("%w: empty patient id", common.ErrValidation)
	}
	ext := strings.ToLower(path.Ext(filepath.ToSlash(filename)))
	if len(ext) > 16 {
		ext = ""
	}
	return slug + "/documents/" + ContentHash(data) + ext, nil
}

// validRef rejects references that could escape the storage root.
func validRef(ref string) error {
	if ref == "" || strings.Contains(ref, `\`) || !filepath.IsLocal(filepath.FromSlash(ref)) || path.Clean(ref) != ref {
		return fmt.Errorf("%w: invalid document reference %q", common.ErrValidation, ref)
	}
	return nil
}
