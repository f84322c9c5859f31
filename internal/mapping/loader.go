package mapping

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/visa-pdf-filler/internal/apperrors"
)

//go:embed configs/*.json
var embedded embed.FS

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Loader reads mapping specs by key. Files in the override directory win
// over the embedded defaults; parsed specs are cached.
type Loader struct {
	dir    string
	cache  *cache.Cache
	logger *zap.Logger
}

// NewLoader creates a loader. dir may be empty to use only embedded specs.
func NewLoader(dir string, ttl time.Duration, logger *zap.Logger) *Loader {
	return &Loader{
		dir:    dir,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Load returns the validated spec for key, e.g. "austria".
func (l *Loader) Load(key string) (*Spec, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if !keyPattern.MatchString(key) {
		return nil, apperrors.Validation("invalid mapping key %q", key)
	}
	if cached, found := l.cache.Get(key); found {
		return cached.(*Spec), nil
	}

	data, format, origin, err := l.read(key)
	if err != nil {
		return nil, err
	}
	spec, err := Parse(data, format)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, err, "mapping %s (%s) is malformed", key, origin)
	}

	l.logger.Debug("mapping spec loaded",
		zap.String("key", key),
		zap.String("origin", origin),
		zap.Int("rules", len(spec.Rules)),
		zap.Int("groups", len(spec.Groups)))
	l.cache.SetDefault(key, spec)
	return spec, nil
}

// Keys lists every mapping key available from either source.
func (l *Loader) Keys() []string {
	seen := make(map[string]bool)
	if entries, err := fs.ReadDir(embedded, "configs"); err == nil {
		for _, e := range entries {
			seen[strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))] = true
		}
	}
	if l.dir != "" {
		if entries, err := os.ReadDir(l.dir); err == nil {
			for _, e := range entries {
				if ext := filepath.Ext(e.Name()); !e.IsDir() && formatFor(ext) != "" {
					seen[strings.TrimSuffix(e.Name(), ext)] = true
				}
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Invalidate drops every cached spec.
func (l *Loader) Invalidate() {
	l.cache.Flush()
}

func (l *Loader) read(key string) ([]byte, string, string, error) {
	if l.dir != "" {
		for _, ext := range []string{".json", ".yaml", ".yml"} {
			path := filepath.Join(l.dir, key+ext)
			data, err := os.ReadFile(path)
			if err == nil {
				return data, formatFor(ext), path, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, "", "", apperrors.Wrap(apperrors.KindConfig, err, "failed to read mapping %s", path)
			}
		}
	}

	data, err := embedded.ReadFile("configs/" + key + ".json")
	if err != nil {
		return nil, "", "", apperrors.Validation("no mapping configured for %q", key)
	}
	return data, "json", "embedded", nil
}

func formatFor(ext string) string {
	switch ext {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return ""
	}
}

// Parse decodes, schema-checks and validates a mapping document.
// format is "json" or "yaml".
func Parse(data []byte, format string) (*Spec, error) {
	var doc interface{}
	switch format {
	case "json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported mapping format %q", format)
	}

	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	// Round-trip through JSON so both formats share the struct tags and
	// numeric handling of encoding/json.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to normalise document: %w", err)
	}
	var spec Spec
	if err := json.Unmarshal(normalized, &spec); err != nil {
		return nil, fmt.Errorf("failed to decode spec: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}
