package discussion

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const fileExt = ".txt"

var (
	ErrInvalidName = errors.New("invalid discussion name")
	ErrNotFound    = errors.New("discussion not found")

	namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// Store persists transcripts as {dir}/{name}.txt.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// DefaultName is the name used when the caller does not pick one.
func DefaultName(t time.Time) string {
	return "discussion_" + t.Format("20060102_150405")
}

func (s *Store) path(name string) (string, error) {
	name = strings.TrimSuffix(name, fileExt)
	if !namePattern.MatchString(name) || strings.Trim(name, ".") == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name+fileExt), nil
}

func (s *Store) Save(name, history string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create discussions dir: %w", err)
	}
	if err := os.WriteFile(p, []byte(history), 0644); err != nil {
		return fmt.Errorf("failed to save discussion: %w", err)
	}
	return nil
}

func (s *Store) Load(name string) (string, error) {
	p, err := s.path(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load discussion: %w", err)
	}
	return string(data), nil
}

// List returns saved names without extension, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list discussions: %w", err)
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Delete(name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete discussion: %w", err)
	}
	return nil
}
