package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Files kept in a local or mounted directory
type SharedDisk struct {
	basepath  string
	publicUrl string
}

func NewSharedDisk(basepath, publicUrl string) *SharedDisk {
	return &SharedDisk{
		basepath:  basepath,
		publicUrl: strings.TrimSuffix(publicUrl, "/"),
	}
}

func (self *SharedDisk) Put(ctx context.Context, path, contentType string, data io.Reader) (url string, err error) {
	path, err = cleanPath(path)
	if err != nil {
		return
	}

	full := filepath.Join(self.basepath, filepath.FromSlash(path))
	err = os.MkdirAll(filepath.Dir(full), 0o755)
	if err != nil {
		return "", fmt.Errorf("error creating directory for %v: %w", path, err)
	}

	// Write to a temporary file first, so a partial file is never visible
	file, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("error opening file %v: %w", path, err)
	}
	defer func() {
		if err != nil {
			os.Remove(file.Name())
		}
	}()

	_, err = io.Copy(file, &contextReader{ctx: ctx, r: data})
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("error writing to file %v: %w", path, err)
	}

	err = os.Rename(file.Name(), full)
	if err != nil {
		return "", fmt.Errorf("error moving file %v: %w", path, err)
	}

	return self.publicUrl + "/" + escapePath(path), nil
}

func (self *SharedDisk) Delete(ctx context.Context, path string) error {
	path, err := cleanPath(path)
	if err != nil {
		return err
	}

	err = os.Remove(filepath.Join(self.basepath, filepath.FromSlash(path)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error deleting file %v: %w", path, err)
	}
	return nil
}

// Stops copying once the context is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (self *contextReader) Read(p []byte) (int, error) {
	if err := self.ctx.Err(); err != nil {
		return 0, err
	}
	return self.r.Read(p)
}
