// Package templates loads PDF form templates from the template directory.
package templates

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/a3tai/visa-pdf-filler/internal/apperrors"
	"github.com/a3tai/visa-pdf-filler/internal/metrics"
)

const cacheName = "templates"

// Store reads templates through a TTL cache. Returned bytes are shared and
// must not be modified.
type Store struct {
	paths   *PathValidator
	cache   *cache.Cache
	metrics *metrics.Registry
	logger  *zap.Logger
}

// NewStore creates a store over dir. A non-positive ttl caches forever.
func NewStore(dir string, ttl time.Duration, reg *metrics.Registry, logger *zap.Logger) (*Store, error) {
	paths, err := NewPathValidator(dir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, err, "invalid template directory")
	}
	expiration := ttl
	if ttl <= 0 {
		expiration = cache.NoExpiration
	}
	return &Store{
		paths:   paths,
		cache:   cache.New(expiration, 10*time.Minute),
		metrics: reg,
		logger:  logger,
	}, nil
}

// Directory returns the template directory.
func (s *Store) Directory() string {
	return s.paths.Directory()
}

// Path resolves a template file name inside the template directory.
func (s *Store) Path(name string) (string, error) {
	path, err := s.paths.Resolve(name)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindValidation, err, "invalid template name %q", name)
	}
	return path, nil
}

// Load returns the bytes of a template.
func (s *Store) Load(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	if cached, ok := s.cache.Get(path); ok {
		s.metrics.ObserveCache(cacheName, true)
		return cached.([]byte), nil
	}
	s.metrics.ObserveCache(cacheName, false)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Wrap(apperrors.KindTemplate, err, "template %s not found", name)
		}
		return nil, apperrors.Wrap(apperrors.KindTemplate, err, "failed to read template %s", name)
	}

	s.cache.SetDefault(path, data)
	s.logger.Debug("template loaded", zap.String("path", path), zap.Int("bytes", len(data)))
	return data, nil
}

// Exists reports whether a template file is present.
func (s *Store) Exists(name string) bool {
	path, err := s.Path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Invalidate drops every cached template.
func (s *Store) Invalidate() {
	s.cache.Flush()
}
