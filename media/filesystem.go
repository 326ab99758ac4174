// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/relabs-tech/ixdir/core/logger"
)

// LocalConfiguration contains the configuration for the local filesystem
// driver
type LocalConfiguration struct {
	BasePath string
}

// LocalFilesystem stores assets below a base folder. Each key becomes a
// directory holding the data file and its content type.
type LocalFilesystem struct {
	basePath string
}

// NewLocalFilesystem returns a new local filesystem driver
func NewLocalFilesystem(basePath string) (*LocalFilesystem, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path must not be empty")
	}
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, err
	}
	logger.Default().Debugln("media: local filesystem enabled at ", basePath)
	return &LocalFilesystem{basePath: basePath}, nil
}

func (f *LocalFilesystem) path(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key '%s'", key)
	}
	return filepath.Join(f.basePath, key), nil
}

// Upload stores the asset under the key, replacing a previous version
func (f *LocalFilesystem) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	dir, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	file, err := os.Create(filepath.Join(dir, "file"))
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := io.Copy(file, body); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "content-type"), []byte(contentType), 0600)
}

// Download opens the asset stored under the key. The caller closes the
// returned reader. A missing key is reported as os.ErrNotExist.
func (f *LocalFilesystem) Download(ctx context.Context, key string) (io.ReadCloser, string, error) {
	dir, err := f.path(key)
	if err != nil {
		return nil, "", err
	}
	contentType, err := os.ReadFile(filepath.Join(dir, "content-type"))
	if err != nil {
		return nil, "", err
	}
	file, err := os.Open(filepath.Join(dir, "file"))
	if err != nil {
		return nil, "", err
	}
	return file, string(contentType), nil
}

// Delete removes the asset stored under the key
func (f *LocalFilesystem) Delete(ctx context.Context, key string) error {
	dir, err := f.path(key)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// DeleteAllWithPrefix removes all assets below the prefix
func (f *LocalFilesystem) DeleteAllWithPrefix(ctx context.Context, prefix string) error {
	return f.Delete(ctx, prefix)
}
