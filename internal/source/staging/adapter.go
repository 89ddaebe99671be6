package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/timmy/hrsync/internal/source"
)

// Adapter serves the HR feed from a local directory. It is used for local runs,
// for replaying archived exports and in tests.
type Adapter struct {
	basePath string
}

// NewAdapter creates a new staging adapter.
// Parameters:
//   - basePath: directory that holds the exported files.
// Returns:
//   - *Adapter: initialized staging adapter.
func NewAdapter(basePath string) *Adapter {
	return &Adapter{basePath: basePath}
}

// Name identifies the adapter in logs.
func (a *Adapter) Name() string {
	return "staging:" + a.basePath
}

// ListFiles returns the regular files directly under the staging directory.
func (a *Adapter) ListFiles(ctx context.Context) ([]source.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, &source.ConnectionError{Op: "list", Err: err}
	}

	entries, err := os.ReadDir(a.basePath)
	if err != nil {
		return nil, &source.ConnectionError{Op: "list", Err: err}
	}

	files := make([]source.FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		files = append(files, source.FileInfo{
			Name:       e.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	return files, nil
}

// Download reads a file of the staging directory.
func (a *Adapter) Download(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &source.ConnectionError{Op: "download", Err: err}
	}
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid file name %q", name)
	}

	data, err := os.ReadFile(filepath.Join(a.basePath, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &source.NotFoundError{Name: name}
		}
		return nil, &source.ConnectionError{Op: "download " + name, Err: err}
	}
	return data, nil
}
