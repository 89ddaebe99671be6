// Package notify tells operators about runs that need approval, completed or failed.
package notify

import (
	"context"
	"time"
)

// EventType names what happened to a run.
type EventType string

const (
	EventApprovalRequired EventType = "approval_required"
	EventRunCompleted     EventType = "run_completed"
	EventRunFailed        EventType = "run_failed"
	// EventTest checks channel configuration; it carries no run.
	EventTest EventType = "test"
)

// Notification is one message delivered to every configured channel.
type Notification struct {
	Event     EventType              `json:"event"`
	RunID     string                 `json:"run_id"`
	FileType  string                 `json:"file_type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Notifier delivers a notification over one channel.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	String() string
}
