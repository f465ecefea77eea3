package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedFormat is returned for files that are not PDF or Word documents.
	ErrUnsupportedFormat = errors.New("storage: only PDF and Word documents are accepted")
	// ErrTooLarge is returned when an upload exceeds the configured size.
	ErrTooLarge = errors.New("storage: file exceeds size limit")
	// ErrForeignURL is returned when asked to delete a URL this store did not issue.
	ErrForeignURL = errors.New("storage: url not managed by this store")
)

var allowedExtensions = map[string]struct{}{
	".pdf":  {},
	".doc":  {},
	".docx": {},
}

// LocalResumeStore keeps resume files on local disk and serves them under a
// public base URL.
type LocalResumeStore struct {
	dir      string
	baseURL  string
	maxBytes int64
}

// NewLocalResumeStore creates dir when missing.
func NewLocalResumeStore(dir, publicBaseURL string, maxBytes int64) (*LocalResumeStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create directory: %w", err)
	}
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &LocalResumeStore{
		dir:      dir,
		baseURL:  strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		maxBytes: maxBytes,
	}, nil
}

// Dir returns the directory files are written to.
func (s *LocalResumeStore) Dir() string { return s.dir }

// Save writes the upload under a random name and returns its public URL.
func (s *LocalResumeStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", ErrUnsupportedFormat
	}

	name := "resume-" + uuid.NewString() + ext
	target := filepath.Join(s.dir, name)

	file, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: create file: %w", err)
	}

	written, copyErr := io.Copy(file, io.LimitReader(r, s.maxBytes+1))
	closeErr := file.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(target)
		return "", fmt.Errorf("storage: write file: %w", copyErr)
	case written > s.maxBytes:
		_ = os.Remove(target)
		return "", ErrTooLarge
	case closeErr != nil:
		_ = os.Remove(target)
		return "", fmt.Errorf("storage: close file: %w", closeErr)
	}

	return s.baseURL + "/" + name, nil
}

// Delete removes the file behind a URL previously returned by Save. Missing
// files are not an error.
func (s *LocalResumeStore) Delete(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name, err := s.fileName(rawURL)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete file: %w", err)
	}
	return nil
}

func (s *LocalResumeStore) fileName(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.HasPrefix(rawURL, s.baseURL+"/") {
		return "", ErrForeignURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", ErrForeignURL
	}
	name := path.Base(parsed.Path)
	if !strings.HasPrefix(name, "resume-") || name != filepath.Base(name) {
		return "", ErrForeignURL
	}
	return name, nil
}
