// Package storage is the Object Store: bucketed blob uploads with public URLs.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ObjectStore stores blobs under bucket/key and exposes them by URL.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, key string, content []byte, contentType string) error
	PublicURL(bucket, key string) string
}

// LocalStore keeps objects on disk under root/<bucket>/<key>. The server
// serves root statically at baseURL.
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates a filesystem-backed object store.
func NewLocalStore(root, baseURL string) *LocalStore {
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

// Root returns the directory objects are written under.
func (s *LocalStore) Root() string {
	return s.root
}

// Upload overwrites any existing object at the same key.
func (s *LocalStore) Upload(ctx context.Context, bucket, key string, content []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	return os.WriteFile(dst, content, 0o600)
}

func (s *LocalStore) PublicURL(bucket, key string) string {
	segments := strings.Split(path.Join(bucket, key), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}

func (s *LocalStore) resolve(bucket, key string) (string, error) {
	if !validSegment(bucket) {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || clean != "/"+key {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(clean)), nil
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
