// Package uploads stores profile pictures and hands back the URL a
// client can fetch them from.
package uploads

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// BlobStore persists an uploaded blob and returns its public URL
type BlobStore interface {
	Store(name string, data []byte) (string, error)
}

// ErrNotImage is returned when the uploaded content is not an image
var ErrNotImage = fmt.Errorf("uploaded content is not an image")

// DiskStore writes blobs to a local directory served statically
type DiskStore struct {
	dir       string
	baseURL   string
	urlPrefix string
}

// NewDiskStore creates the uploads directory if needed
func NewDiskStore(dir, baseURL, urlPrefix string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir: %w", err)
	}
	return &DiskStore{
		dir:       dir,
		baseURL:   strings.TrimRight(baseURL, "/"),
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
	}, nil
}

// Store sniffs the content, writes it under a timestamped name and
// returns the URL it will be served from. Non-image content is rejected.
func (s *DiskStore) Store(name string, data []byte) (string, error) {
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mime.String())
	}

	filename := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), sanitizeName(name))
	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	return fmt.Sprintf("%s%s/%s", s.baseURL, s.urlPrefix, filename), nil
}

// sanitizeName strips path components and characters that have no
// business in a filename
func sanitizeName(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "upload"
	}
	return b.String()
}
