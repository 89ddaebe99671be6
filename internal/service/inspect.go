package service

import (
	"context"
	"time"

	"github.com/timmy/hrsync/internal/domain"
	"github.com/timmy/hrsync/internal/logger"
	"github.com/timmy/hrsync/internal/source"
)

// SourceInspector reports what the HR feed currently offers without starting a run.
type SourceInspector struct {
	source   source.Adapter
	patterns map[domain.FileType][]string
	now      func() time.Time
}

// NewSourceInspector creates a new SourceInspector.
// Parameters:
//   - src: the adapter runs download from.
//   - patterns: the name fragments each file type is matched by.
// Returns:
//   - *SourceInspector: inspector bound to src.
func NewSourceInspector(src source.Adapter, patterns map[domain.FileType][]string) *SourceInspector {
	return &SourceInspector{source: src, patterns: patterns, now: time.Now}
}

// ConnectionCheck is the outcome of a connection test.
type ConnectionCheck struct {
	Adapter   string `json:"adapter"`
	Reachable bool   `json:"reachable"`
	FileCount int    `json:"file_count"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// TestConnection opens a session and lists the feed directory.
func (i *SourceInspector) TestConnection(ctx context.Context) ConnectionCheck {
	start := i.now()
	files, err := i.source.ListFiles(ctx)
	check := ConnectionCheck{
		Adapter:   i.source.Name(),
		LatencyMs: i.now().Sub(start).Milliseconds(),
	}

	log := logger.FromContext(ctx).WithField("adapter", check.Adapter)
	if err != nil {
		check.Error = err.Error()
		log.WithError(err).Warn("Source connection test failed")
		return check
	}
	check.Reachable = true
	check.FileCount = len(files)
	log.WithField(logger.FieldCount, check.FileCount).Info("Source connection test succeeded")
	return check
}

// FileMatch is the file a run of FileType would pick right now.
type FileMatch struct {
	FileType domain.FileType  `json:"file_type"`
	Patterns []string         `json:"patterns"`
	File     *source.FileInfo `json:"file,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// SourceListing is the feed directory together with the selection made for each file type.
type SourceListing struct {
	Adapter string            `json:"adapter"`
	Files   []source.FileInfo `json:"files"`
	Matches []FileMatch       `json:"matches"`
}

// ListFiles lists the feed and applies the same matching StartRun uses.
// Returns:
//   - *SourceListing: files and per-file-type matches in sync order.
//   - error: the source error when the feed cannot be listed.
func (i *SourceInspector) ListFiles(ctx context.Context) (*SourceListing, error) {
	files, err := i.source.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []source.FileInfo{}
	}

	listing := &SourceListing{Adapter: i.source.Name(), Files: files}
	for _, ft := range domain.AllFileTypes {
		patterns, ok := i.patterns[ft]
		if !ok {
			continue
		}
		m := FileMatch{FileType: ft, Patterns: patterns}
		if file, err := source.MatchFile(files, patterns); err != nil {
			m.Error = err.Error()
		} else {
			m.File = &file
		}
		listing.Matches = append(listing.Matches, m)
	}
	return listing, nil
}
