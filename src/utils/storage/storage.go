package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/loteraa/verifier/src/utils/config"
)

var ErrInvalidPath = errors.New("invalid object path")

// Blob storage keyed by a slash separated path
type Storage interface {
	// Stores the data and returns the URL it can be fetched from
	Put(ctx context.Context, path, contentType string, data io.Reader) (url string, err error)

	Delete(ctx context.Context, path string) error
}

func NewStorage(conf *config.Config) (Storage, error) {
	switch conf.Storage.Backend {
	case config.StorageBackendDisk:
		return NewSharedDisk(conf.Storage.Path, conf.Storage.PublicUrl), nil
	case config.StorageBackendSupabase:
		return NewSupabase(&conf.Storage), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", conf.Storage.Backend)
	}
}

// Rejects paths that could escape the storage root
func cleanPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", ErrInvalidPath
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", ErrInvalidPath
		}
	}
	return path.Clean(p), nil
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
