package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileInfo describes one file in the remote directory.
type FileInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Adapter lists and downloads the files published by an HR feed.
// Implementations open and close their session inside each call.
type Adapter interface {
	// ListFiles returns the regular files of the feed directory.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	// Returns:
	//   - []FileInfo: files found, in no particular order.
	//   - error: *ConnectionError when the feed cannot be reached.
	ListFiles(ctx context.Context) ([]FileInfo, error)

	// Download reads a whole file.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - name: file name as returned by ListFiles.
	// Returns:
	//   - []byte: file contents.
	//   - error: *NotFoundError when the file is gone, *ConnectionError otherwise.
	Download(ctx context.Context, name string) ([]byte, error)

	// Name identifies the adapter in logs.
	Name() string
}

// ConnectionError means the feed could not be reached or the session broke. Retryable.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("source connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NotFoundError means the requested file does not exist. Not retryable.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("source file not found: %s", e.Name)
}

// IsConnectionError reports whether err is a ConnectionError.
func IsConnectionError(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// SupportedExtensions are the file extensions the decoder understands.
var SupportedExtensions = []string{".csv", ".txt", ".xlsx", ".xls"}

// MatchFile picks the newest supported file whose lower-cased name contains every pattern.
// It returns a NotFoundError naming the patterns when nothing matches.
func MatchFile(files []FileInfo, patterns []string) (FileInfo, error) {
	var matches []FileInfo
	for _, f := range files {
		if !supported(f.Name) {
			continue
		}
		name := strings.ToLower(f.Name)
		ok := len(patterns) > 0
		for _, p := range patterns {
			if !strings.Contains(name, strings.ToLower(p)) {
				ok = false
				break
			}
		}
		if ok {
			matches = append(matches, f)
		}
	}
	if len(matches) == 0 {
		return FileInfo{}, &NotFoundError{Name: "*" + strings.Join(patterns, "*") + "*"}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].ModifiedAt.Equal(matches[j].ModifiedAt) {
			return matches[i].Name > matches[j].Name
		}
		return matches[i].ModifiedAt.After(matches[j].ModifiedAt)
	})
	return matches[0], nil
}

func supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}
