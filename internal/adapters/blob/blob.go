// Package blob declares the consumed image-uploader contract: byte stream
// in, stable URL out.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Upload size cap, matching the submission form limit.
const maxUploadBytes = 5 << 20

// Sentinel kinds for upload errors.
var (
	ErrUpload   = errors.New("upload failed")
	ErrTooLarge = errors.New("file exceeds size limit")
	ErrBadType  = errors.New("unsupported file type")
)

// allowedExtensions mirrors the submission form's accepted image types.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// Uploader stores an image byte stream and returns a stable URL.
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}

// LocalUploader writes uploads under a directory served at /uploads/.
// It is the development and test stand-in for the external blob host.
type LocalUploader struct {
	dir string
}

// NewLocalUploader creates the uploader, ensuring the directory exists.
func NewLocalUploader(dir string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpload, err)
	}
	return &LocalUploader{dir: dir}, nil
}

// Upload implements Uploader. Filenames are replaced with a UUID to keep
// URLs stable and collision-free; only the extension survives.
func (u *LocalUploader) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: %q", ErrBadType, ext)
	}

	fileName := uuid.New().String() + ext
	path := filepath.Join(u.dir, fileName)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, maxUploadBytes+1))
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}
	if n > maxUploadBytes {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}

	return "/uploads/" + fileName, nil
}
