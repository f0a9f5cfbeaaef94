package circuit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("circuit not found")

var extensions = []string{"", ".yaml", ".yml", ".json"}

// Loader finds circuit documents in a list of search paths and caches the
// parsed result by name.
type Loader struct {
	cache       sync.Map
	validator   *Validator
	searchPaths []string
}

func NewLoader(searchPaths []string) (*Loader, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	return &Loader{
		validator:   validator,
		searchPaths: searchPaths,
	}, nil
}

func (l *Loader) Validator() *Validator {
	return l.validator
}

// Load resolves name against the search paths, trying the bare name and the
// .yaml, .yml and .json extensions. An absolute or relative path that exists
// is used as is.
func (l *Loader) Load(name string) (*Document, error) {
	if cached, ok := l.cache.Load(name); ok {
		return cached.(*Document), nil
	}

	data, foundPath, err := l.find(name)
	if err != nil {
		return nil, err
	}

	doc, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("validation failed for %s: %w", foundPath, err)
	}

	l.cache.Store(name, doc)
	return doc, nil
}

func (l *Loader) find(name string) ([]byte, string, error) {
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		data, err := os.ReadFile(name)
		return data, name, err
	}

	for _, searchPath := range l.searchPaths {
		for _, ext := range extensions {
			fullPath := filepath.Join(searchPath, name+ext)
			data, err := os.ReadFile(fullPath)
			if err == nil {
				return data, fullPath, nil
			}
		}
	}
	return nil, "", fmt.Errorf("%w: %s (searched in: %v)", ErrNotFound, name, l.searchPaths)
}

// Parse validates and decodes document bytes.
func (l *Loader) Parse(data []byte) (*Document, error) {
	if err := l.validator.Validate(data); err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal circuit: %w", err)
	}
	return &doc, nil
}

func (l *Loader) ClearCache() {
	l.cache.Range(func(key, value interface{}) bool {
		l.cache.Delete(key)
		return true
	})
}
