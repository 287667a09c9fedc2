package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const metaDir = ".meta"

// LocalStorage keeps each namespace in its own directory under basePath, with
// JSON metadata next to the files in .meta/.
type LocalStorage struct {
	basePath string
	now      func() time.Time
}

// NewLocalStorage creates a new local filesystem storage
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, now: time.Now}, nil
}

func (s *LocalStorage) namespaceDir(namespace string) (string, error) {
	if err := validateNamespace(namespace); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, namespace), nil
}

func metaPath(dir string, id uuid.UUID) string {
	return filepath.Join(dir, metaDir, id.String()+".json")
}

// Upload writes r to a temporary file, then renames it into place so a
// partially written statement is never visible.
func (s *LocalStorage) Upload(_ context.Context, namespace, filename, contentType string, r io.Reader) (*FileInfo, error) {
	dir, err := s.namespaceDir(namespace)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dir, metaDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create namespace directory: %w", err)
	}

	id := uuid.New()
	stored := id.String()[:8] + "_" + sanitizeFilename(filename)

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	digest := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, digest), r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, stored)); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	info := &FileInfo{
		ID:          id,
		Name:        filename,
		Size:        size,
		ContentType: contentType,
		SHA256:      hex.EncodeToString(digest.Sum(nil)),
		Path:        stored,
		CreatedAt:   s.now().UTC(),
	}
	if err := writeMetadata(metaPath(dir, id), info); err != nil {
		os.Remove(filepath.Join(dir, stored))
		return nil, err
	}
	return info, nil
}

func writeMetadata(path string, info *FileInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// Download opens a stored file. The caller closes the reader.
func (s *LocalStorage) Download(ctx context.Context, namespace string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	info, err := s.GetInfo(ctx, namespace, fileID)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.basePath, namespace, info.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, info, nil
}

// Delete removes a file and its metadata.
func (s *LocalStorage) Delete(ctx context.Context, namespace string, fileID uuid.UUID) error {
	info, err := s.GetInfo(ctx, namespace, fileID)
	if err != nil {
		return err
	}
	dir := filepath.Join(s.basePath, namespace)
	if err := os.Remove(filepath.Join(dir, info.Path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err := os.Remove(metaPath(dir, fileID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}
	return nil
}

// List returns the files in a namespace, oldest first. Unreadable metadata is skipped.
func (s *LocalStorage) List(ctx context.Context, namespace string) ([]*FileInfo, error) {
	dir, err := s.namespaceDir(namespace)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(dir, metaDir))
	if errors.Is(err, fs.ErrNotExist) {
		return []*FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	files := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		id, err := uuid.Parse(strings.TrimSuffix(entry.Name(), ".json"))
		if entry.IsDir() || err != nil {
			continue
		}
		info, err := s.GetInfo(ctx, namespace, id)
		if err != nil {
			continue
		}
		files = append(files, info)
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].CreatedAt.Before(files[j].CreatedAt) })
	return files, nil
}

// GetInfo reads a file's metadata.
func (s *LocalStorage) GetInfo(_ context.Context, namespace string, fileID uuid.UUID) (*FileInfo, error) {
	dir, err := s.namespaceDir(namespace)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(metaPath(dir, fileID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

var filenameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", "..", "_", ":", "_",
	"*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

func sanitizeFilename(name string) string {
	return filenameReplacer.Replace(name)
}

// validateNamespace allows a single path segment such as a job ID.
func validateNamespace(ns string) error {
	if ns == "" || strings.HasPrefix(ns, ".") || strings.ContainsAny(ns, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, ns)
	}
	return nil
}
