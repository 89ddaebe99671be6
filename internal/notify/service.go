package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/hrsync/internal/config"
	"github.com/timmy/hrsync/internal/domain"
	"github.com/timmy/hrsync/internal/logger"
)

// Service fans a notification out to every notifier. Delivery failures are logged and
// never fail the run that triggered them.
type Service struct {
	notifiers []Notifier
	adminURL  string
	now       func() time.Time
}

// NewService keeps the non-nil notifiers.
func NewService(adminURL string, notifiers ...Notifier) *Service {
	active := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &Service{notifiers: active, adminURL: adminURL, now: time.Now}
}

// NewServiceFromConfig builds the channels enabled in cfg.
// Parameters:
//   - cfg: notification settings.
// Returns:
//   - *Service: service with zero or more channels.
//   - error: non-nil if an enabled channel is misconfigured.
func NewServiceFromConfig(cfg config.NotifyConfig) (*Service, error) {
	var notifiers []Notifier
	if cfg.Email.Enabled {
		email, err := NewEmailNotifier(cfg.Email)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, email)
	}
	if cfg.Webhook.Enabled {
		hook, err := NewWebhookNotifier(cfg.Webhook)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, hook)
	}
	return NewService(cfg.AdminURL, notifiers...), nil
}

// Publish delivers n on every channel.
func (s *Service) Publish(ctx context.Context, n Notification) {
	if s == nil || len(s.notifiers) == 0 {
		return
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	log := logger.FromContext(ctx)
	for _, notifier := range s.notifiers {
		if err := notifier.Notify(ctx, n); err != nil {
			log.WithError(err).WithFields(logger.Fields{
				"notifier": notifier.String(),
				"event":    n.Event,
			}).Warn("Failed to deliver notification")
		}
	}
}

// ApprovalRequired announces a run held at the approval gate.
func (s *Service) ApprovalRequired(ctx context.Context, run *domain.ImportRun) {
	var msg strings.Builder
	fmt.Fprintf(&msg, "The structure of %s (%s) changed in a way that needs approval.\n", run.SourceFile, run.FileType)
	if len(run.AddedColumns) > 0 {
		fmt.Fprintf(&msg, "Added columns: %s\n", strings.Join(run.AddedColumns, ", "))
	}
	if len(run.RemovedColumns) > 0 {
		fmt.Fprintf(&msg, "Removed columns: %s\n", strings.Join(run.RemovedColumns, ", "))
	}
	if run.BaselineRowCount != nil {
		fmt.Fprintf(&msg, "Rows: %d (previously %d)\n", run.RowCount, *run.BaselineRowCount)
	}
	if run.ChangeSummary != "" {
		msg.WriteString(run.ChangeSummary + "\n")
	}
	if s != nil && s.adminURL != "" {
		fmt.Fprintf(&msg, "Review it at %s\n", s.adminURL)
	}

	s.Publish(ctx, Notification{
		Event:    EventApprovalRequired,
		RunID:    run.ID,
		FileType: string(run.FileType),
		Title:    fmt.Sprintf("Approval required: %s", run.FileType),
		Message:  msg.String(),
		Metadata: map[string]interface{}{
			"added_columns":   run.AddedColumns,
			"removed_columns": run.RemovedColumns,
			"row_count":       run.RowCount,
		},
	})
}

// RunCompleted reports the counts of a completed run.
func (s *Service) RunCompleted(ctx context.Context, run *domain.ImportRun) {
	c := run.Counts()
	s.Publish(ctx, Notification{
		Event:    EventRunCompleted,
		RunID:    run.ID,
		FileType: string(run.FileType),
		Title:    fmt.Sprintf("Import completed: %s", run.FileType),
		Message: fmt.Sprintf("%s: %d processed, %d inserted, %d updated, %d failed.",
			run.SourceFile, c.Processed, c.Inserted, c.Updated, c.Failed),
		Metadata: map[string]interface{}{"counts": c, "warnings": run.WarningCount},
	})
}

// RunFailed reports the error of a failed run.
func (s *Service) RunFailed(ctx context.Context, run *domain.ImportRun) {
	s.Publish(ctx, Notification{
		Event:    EventRunFailed,
		RunID:    run.ID,
		FileType: string(run.FileType),
		Title:    fmt.Sprintf("Import failed: %s", run.FileType),
		Message:  run.ErrorSummary,
		Metadata: map[string]interface{}{"counts": run.Counts()},
	})
}

// DeliveryResult is the outcome of one channel in SendTest.
type DeliveryResult struct {
	Channel   string `json:"channel"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// SendTest delivers a test message on every channel and reports each outcome.
// It returns nil when no channel is configured.
func (s *Service) SendTest(ctx context.Context) []DeliveryResult {
	if s == nil || len(s.notifiers) == 0 {
		return nil
	}
	n := Notification{
		Event:     EventTest,
		Title:     "hrsync notification test",
		Message:   "This is a test message. Notifications for approvals, completed and failed imports will arrive here.",
		CreatedAt: s.now(),
	}
	if s.adminURL != "" {
		n.Message += "\nAdmin: " + s.adminURL
	}

	log := logger.FromContext(ctx)
	results := make([]DeliveryResult, 0, len(s.notifiers))
	for _, notifier := range s.notifiers {
		r := DeliveryResult{Channel: notifier.String(), Delivered: true}
		if err := notifier.Notify(ctx, n); err != nil {
			r.Delivered = false
			r.Error = err.Error()
			log.WithError(err).WithField("notifier", r.Channel).Warn("Test notification failed")
		}
		results = append(results, r)
	}
	return results
}
