// Package settings loads grouped configuration options from YAML
// documents. Options are grouped by component ("Power Duration Curve",
// ...); a Store reads a document once and memoizes it, keyed by absolute
// path. The cache belongs to the Store, not the package: construct one
// Store per process, or one per test when isolation matters.
package settings

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultFilename is the conventional name of a settings document.
const DefaultFilename = "settings.yaml"

//go:embed settings.yaml
var defaultDocument []byte

var (
	// ErrNotFound reports a missing settings file.
	ErrNotFound = errors.New("settings file not found")
	// ErrEmptyDocument reports a settings file with no groups.
	ErrEmptyDocument = errors.New("empty settings document")
	// ErrGroupNotFound reports a group absent from the document.
	ErrGroupNotFound = errors.New("settings group not defined")
	// ErrEmptyGroup reports a group with no options.
	ErrEmptyGroup = errors.New("empty settings group")
	// ErrOption reports a missing or mistyped option within a group.
	ErrOption = errors.New("bad settings option")
)

// Document is a parsed settings file: group name to options.
type Document map[string]Group

// Group returns the named group from the document.
func (d Document) Group(name string) (Group, error) {
	g, ok := d[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrGroupNotFound, name)
	}
	if len(g) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyGroup, name)
	}
	return g, nil
}

// Group maps option names to values as decoded from YAML.
type Group map[string]any

// Float returns a numeric option. Strings that parse as numbers are
// accepted too; YAML 1.1 resolves shorthand exponents like 5e-6 as
// strings.
func (g Group) Float(name string) (float64, error) {
	v, ok := g[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q not set", ErrOption, name)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number: %q", ErrOption, name, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %q has type %T, want number", ErrOption, name, v)
	}
}

// Int returns an integer option.
func (g Group) Int(name string) (int, error) {
	v, ok := g[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q not set", ErrOption, name)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: %q is not an integer: %v", ErrOption, name, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %q has type %T, want integer", ErrOption, name, v)
	}
}

// String returns a string option.
func (g Group) String(name string) (string, error) {
	v, ok := g[name]
	if !ok {
		return "", fmt.Errorf("%w: %q not set", ErrOption, name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q has type %T, want string", ErrOption, name, v)
	}
	return s, nil
}

// Store reads and memoizes settings documents.
type Store struct {
	mu    sync.Mutex
	cache map[string]Document
}

// NewStore returns a Store with an empty cache.
func NewStore() *Store {
	return &Store{cache: make(map[string]Document)}
}

// Load returns the named group from the given settings file. The file is
// parsed once per Store and memoized.
func (s *Store) Load(filename, group string) (Group, error) {
	doc, err := s.document(filename, false)
	if err != nil {
		return nil, err
	}
	g, err := doc.Group(group)
	if err != nil {
		return nil, fmt.Errorf("%w in %s", err, filename)
	}
	return g, nil
}

// LoadAll returns the whole document.
func (s *Store) LoadAll(filename string) (Document, error) {
	return s.document(filename, false)
}

// Reload re-reads the file from disk, replacing the memoized copy.
func (s *Store) Reload(filename string) (Document, error) {
	return s.document(filename, true)
}

// Cached lists the absolute paths of memoized documents.
func (s *Store) Cached() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.cache))
	for p := range s.cache {
		paths = append(paths, p)
	}
	return paths
}

func (s *Store) document(filename string, force bool) (Document, error) {
	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !force {
		if doc, ok := s.cache[abs]; ok {
			return doc, nil
		}
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, abs)
		}
		return nil, err
	}

	doc, err := parse(raw, abs)
	if err != nil {
		return nil, err
	}
	s.cache[abs] = doc
	return doc, nil
}

func parse(raw []byte, name string) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("malformed settings document %s: %w", name, err)
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, name)
	}
	return doc, nil
}

// Default returns the settings document compiled into the binary, used
// when no settings file is given.
func Default() (Document, error) {
	return parse(defaultDocument, "embedded "+DefaultFilename)
}
