package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"

	"homestay/internal/app/policies"
)

// PhotoStorage keeps uploaded files in memory. It serves local runs without
// an object store.
type PhotoStorage struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string][]byte
}

func (s *PhotoStorage) Upload(ctx context.Context, key string, reader io.Reader, _ string) (string, error) {
	if reader == nil {
		return "", errors.New("memory: reader is required")
	}
	key = strings.Trim(key, "/")
	if key == "" {
		return "", errors.New("memory: object key is required")
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = buf.Bytes()
	s.mu.Unlock()
	base := strings.TrimRight(s.BaseURL, "/")
	if base == "" {
		base = "/media"
	}
	return base + "/" + key, nil
}

func (s *PhotoStorage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, strings.Trim(key, "/"))
	s.mu.Unlock()
	return nil
}

// Object returns a stored file.
func (s *PhotoStorage) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[strings.Trim(key, "/")]
	return data, ok
}

// Keys lists stored object keys in lexical order.
func (s *PhotoStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

var _ policies.PhotoStorage = (*PhotoStorage)(nil)
