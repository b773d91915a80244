// Package credentials supplies the decision endpoint API key. Stores are
// consulted on every request so a key saved mid-run is picked up on the next
// turn.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

// ErrNoCredential means the store holds no key.
var ErrNoCredential = errors.New("no credential configured")

// Store yields the current API key.
type Store interface {
	Credential(ctx context.Context) (string, error)
}

// Static holds a key supplied through configuration or the environment.
type Static string

// Credential returns the key, or ErrNoCredential when it is blank.
func (s Static) Credential(context.Context) (string, error) {
	key := strings.TrimSpace(string(s))
	if key == "" {
		return "", ErrNoCredential
	}
	return key, nil
}

// FileStore keeps the key in a single-line file readable only by its owner.
type FileStore struct {
	path string
}

// NewFileStore resolves path, expanding a leading "~".
func NewFileStore(path string) (*FileStore, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand credential path %q: %w", path, err)
	}
	return &FileStore{path: expanded}, nil
}

// Path is the resolved file location.
func (f *FileStore) Path() string { return f.path }

// Credential reads the key from disk. A missing or empty file is ErrNoCredential.
func (f *FileStore) Credential(context.Context) (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoCredential
		}
		return "", fmt.Errorf("failed to read credential file: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", ErrNoCredential
	}
	return key, nil
}

// Save writes key with 0600 permissions, creating the parent directory.
func (f *FileStore) Save(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("refusing to save an empty key")
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(f.path, 0o600)
}

// Chain asks each store in order and returns the first key found.
type Chain struct {
	stores []Store
	logger *zap.Logger
}

// NewChain builds a Chain. Nil stores are skipped.
func NewChain(logger *zap.Logger, stores ...Store) *Chain {
	c := &Chain{logger: logger.Named("credentials")}
	for _, s := range stores {
		if s != nil {
			c.stores = append(c.stores, s)
		}
	}
	return c
}

// Credential implements Store.
func (c *Chain) Credential(ctx context.Context) (string, error) {
	for _, s := range c.stores {
		key, err := s.Credential(ctx)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, ErrNoCredential) {
			c.logger.Warn("Credential store failed, trying next.", zap.Error(err))
		}
	}
	return "", ErrNoCredential
}

var (
	_ Store = Static("")
	_ Store = (*FileStore)(nil)
	_ Store = (*Chain)(nil)
)
