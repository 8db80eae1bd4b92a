package storage

import (
	"context"
	"errors"
	"sync"
	"time"
)

var _ ReformImageStorage = (*StubReformImageStorage)(nil)

// StubReformImageStorage fakes presigned access for development and tests.
// Keys passed to PresignUpload are remembered so Exists and Delete behave
// consistently within a process.
type StubReformImageStorage struct {
	// BaseURL prefixes every minted URL
	BaseURL string

	mu   sync.Mutex
	keys map[string]struct{}
}

// NewStubReformImageStorage creates a stub image store
func NewStubReformImageStorage() *StubReformImageStorage {
	return &StubReformImageStorage{
		BaseURL: "https://storage.example.com",
		keys:    make(map[string]struct{}),
	}
}

// PresignUpload mints a fake PUT URL and records the key as present
func (s *StubReformImageStorage) PresignUpload(_ context.Context, key, _ string) (PresignedURL, error) {
	if key == "" {
		return PresignedURL{}, errors.New("storage key is required")
	}
	s.mu.Lock()
	s.keys[key] = struct{}{}
	s.mu.Unlock()

	expiresAt := time.Now().Add(15 * time.Minute)
	return PresignedURL{
		URL:       s.BaseURL + "/upload/" + key,
		Key:       key,
		ExpiresAt: expiresAt,
	}, nil
}

// PresignDownload mints a fake GET URL
func (s *StubReformImageStorage) PresignDownload(_ context.Context, key string) (PresignedURL, error) {
	if key == "" {
		return PresignedURL{}, errors.New("storage key is required")
	}
	expiresAt := time.Now().Add(15 * time.Minute)
	return PresignedURL{
		URL:       s.BaseURL + "/download/" + key,
		Key:       key,
		ExpiresAt: expiresAt,
	}, nil
}

// Delete forgets a recorded key
func (s *StubReformImageStorage) Delete(_ context.Context, key string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	delete(s.keys, key)
	s.mu.Unlock()
	return nil
}

// Exists reports whether the key was presigned for upload earlier
func (s *StubReformImageStorage) Exists(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok, nil
}
