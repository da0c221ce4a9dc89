// Package blobstore provides blob storage adapters for raw inspection images.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sentinel-aoi/aoi-api/internal/core"
)

// FSStore implements core.BlobStore on a local (or mounted) filesystem.
// Objects live under Root/Bucket and are addressed as "bucket/object" paths,
// so callers only ever see opaque locators. Writes go through a temp file and
// rename, which keeps concurrent readers from observing partial objects.
type FSStore struct {
	root   string
	bucket string
}

// NewFSStore constructs an FSStore and ensures the bucket directory exists.
func NewFSStore(root, bucket string) (*FSStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("blob root is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("blob bucket is required")
	}
	if err := os.MkdirAll(filepath.Join(root, bucket), 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	return &FSStore{root: root, bucket: bucket}, nil
}

// Put stores the object and returns its "bucket/object" path.
func (s *FSStore) Put(ctx context.Context, req core.PutRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := path.Base(req.Name)
	if name == "" || name == "." || name == "/" {
		return "", errors.New("object name is required")
	}
	if len(req.Data) == 0 {
		return "", errors.New("object data is required")
	}

	dst := filepath.Join(s.root, s.bucket, name)
	tmp, err := os.CreateTemp(filepath.Join(s.root, s.bucket), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(req.Data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("publish object: %w", err)
	}
	return path.Join(s.bucket, name), nil
}

// Get reads an object by its "bucket/object" path.
func (s *FSStore) Get(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bucket, object, ok := strings.Cut(ref, "/")
	if !ok || bucket == "" || object == "" {
		return nil, fmt.Errorf("invalid artifact ref: %q", ref)
	}
	// Refuse traversal out of the bucket.
	if path.Base(object) != object {
		return nil, fmt.Errorf("invalid object name: %q", object)
	}
	data, err := os.ReadFile(filepath.Join(s.root, bucket, object))
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", ref, err)
	}
	return data, nil
}

var _ core.BlobStore = (*FSStore)(nil)
