// Package sniffer detects which institution issued a statement from its
// extracted text. Each format carries a list of fingerprints; the first
// registered format with a fingerprint present in the text wins.
package sniffer

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrEmptyName       = errors.New("format name is empty")
	ErrNoFingerprints  = errors.New("format has no fingerprints")
	ErrDuplicateFormat = errors.New("format already registered")
)

// Format identifies one statement layout.
type Format struct {
	Name         string   // e.g. "amex"
	Fingerprints []string // matched case-insensitively as substrings
}

// Registry is an ordered set of formats. Registration order is detection
// priority. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	formats []Format
}

// NewRegistry creates a registry holding formats in the given order.
func NewRegistry(formats ...Format) (*Registry, error) {
	r := &Registry{}
	for _, f := range formats {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends a format at the lowest priority.
func (r *Registry) Register(f Format) error {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return ErrEmptyName
	}

	fps := make([]string, 0, len(f.Fingerprints))
	for _, fp := range f.Fingerprints {
		if fp = strings.ToLower(strings.TrimSpace(fp)); fp != "" {
			fps = append(fps, fp)
		}
	}
	if len(fps) == 0 {
		return fmt.Errorf("%s: %w", name, ErrNoFingerprints)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.formats {
		if existing.Name == name {
			return fmt.Errorf("%s: %w", name, ErrDuplicateFormat)
		}
	}
	r.formats = append(r.formats, Format{Name: name, Fingerprints: fps})
	return nil
}

// Formats returns a copy of the registered formats in priority order.
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Format, len(r.formats))
	copy(out, r.formats)
	return out
}

// Detect returns the name of the first format whose fingerprint appears in
// text. ok is false when nothing matches; that is an expected outcome.
func Detect(text string, r *Registry) (name string, ok bool) {
	if r == nil {
		return "", false
	}
	lower := normalize(text)
	if lower == "" {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.formats {
		for _, fp := range f.Fingerprints {
			if strings.Contains(lower, fp) {
				return f.Name, true
			}
		}
	}
	return "", false
}

// normalize lowercases text and strips a leading byte order mark.
func normalize(text string) string {
	text = strings.TrimPrefix(text, "\uFEFF")
	return strings.ToLower(text)
}
