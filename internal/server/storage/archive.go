package storage

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/dmitrijs2005/medkeeper/internal/common"
)

// ArchiveEntry names one stored object inside a bundle.
type ArchiveEntry struct {
	Name string
	Ref  string
}

// Bundle zips the content of entries. Objects missing from the storage are
// skipped; repeated names get an index suffix. It returns the archive and the
// number of files written, and ErrorNotFound when nothing could be added.
func Bundle(ctx context.Context, s DocumentStorage, entries []ArchiveEntry) ([]byte, int, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	seen := make(map[string]struct{}, len(entries))
	written := 0
	for i, e := range entries {
		if e.Ref == "" {
			continue
		}
		data, err := s.Retrieve(ctx, e.Ref)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("retrieve %s: %w", e.Ref, err)
		}

		name := archiveName(e.Name, i+1, seen)
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return nil, 0, fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, 0, fmt.Errorf("write %s: %w", name, err)
		}
		written++
	}
	if err := zw.Close(); err != nil {
		return nil, 0, fmt.Errorf("close archive: %w", err)
	}
	if written == 0 {
		return nil, 0, fmt.Errorf("no stored documents: %w", common.ErrorNotFound)
	}
	return buf.Bytes(), written, nil
}

func archiveName(name string, idx int, seen map[string]struct{}) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if base == "" || base == "." || base == "/" {
		base = fmt.Sprintf("document_%d.pdf", idx)
	}
	if _, dup := seen[base]; dup {
		ext := path.Ext(base)
		if ext == "" {
			ext = ".pdf"
		}
		base = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(base, path.Ext(base)), idx, ext)
	}
	seen[base] = struct{}{}
	return base
}
