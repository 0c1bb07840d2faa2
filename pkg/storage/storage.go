package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"supplylink/pkg/config"

	"github.com/google/uuid"
)

// Store persists message attachments and returns a URL referencing them
type Store interface {
	Save(filename string, r io.Reader) (string, error)
}

var store Store

// Init sets up the attachment store from configuration
func Init(cfg *config.UploadConfig) error {
	local, err := NewLocalStore(cfg.Dir, cfg.BaseURL)
	if err != nil {
		return err
	}
	store = local
	return nil
}

// Get returns the configured attachment store
func Get() Store {
	return store
}

// Set overrides the attachment store (used by tests)
func Set(s Store) {
	store = s
}

// LocalStore writes attachments to a local directory
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the upload directory if needed
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: baseURL}, nil
}

// Save stores the file under a unique name and returns its URL
func (s *LocalStore) Save(filename string, r io.Reader) (string, error) {
	uniqueName := uuid.New().String() + filepath.Ext(filename)
	path := filepath.Join(s.dir, uniqueName)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}

	return s.baseURL + "/" + uniqueName, nil
}
