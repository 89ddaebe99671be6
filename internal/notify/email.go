package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/timmy/hrsync/internal/config"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends plain-text mail through an SMTP relay.
type EmailNotifier struct {
	host       string
	port       int
	username   string
	password   string
	from       string
	recipients []string
	send       sendMailFunc
}

// NewEmailNotifier validates the SMTP settings.
func NewEmailNotifier(cfg config.EmailConfig) (*EmailNotifier, error) {
	host := strings.TrimSpace(cfg.SMTPHost)
	from := strings.TrimSpace(cfg.From)
	if host == "" {
		return nil, errors.New("smtp_host is required for email notifier")
	}
	if from == "" {
		return nil, errors.New("from is required for email notifier")
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}

	return &EmailNotifier{
		host:       host,
		port:       port,
		username:   strings.TrimSpace(cfg.Username),
		password:   cfg.Password,
		from:       from,
		recipients: sanitizeRecipients(cfg.Recipients),
		send:       smtp.SendMail,
	}, nil
}

// Notify sends one message to every recipient. No recipients means nothing to do.
func (n *EmailNotifier) Notify(_ context.Context, notif Notification) error {
	if len(n.recipients) == 0 {
		return nil
	}

	message := []byte(n.headers(subject(notif)) + body(notif))
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	var auth smtp.Auth
	if n.username != "" {
		auth = smtp.PlainAuth("", n.username, n.password, n.host)
	}
	if err := n.send(addr, auth, n.from, n.recipients, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (n *EmailNotifier) headers(subj string) string {
	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n",
		n.from, strings.Join(n.recipients, ","), subj)
}

func (n *EmailNotifier) String() string {
	return "EmailNotifier"
}

func subject(notif Notification) string {
	title := strings.TrimSpace(notif.Title)
	if title == "" {
		title = string(notif.Event)
	}
	return "[HR Sync] " + title
}

func body(notif Notification) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(notif.Message))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Event: %s\n", notif.Event)
	fmt.Fprintf(&b, "Run: %s\n", notif.RunID)
	fmt.Fprintf(&b, "File type: %s\n", notif.FileType)
	fmt.Fprintf(&b, "Created: %s\n", notif.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if len(notif.Metadata) > 0 {
		if meta, err := json.Marshal(notif.Metadata); err == nil {
			fmt.Fprintf(&b, "Details: %s\n", meta)
		}
	}
	return b.String()
}

func sanitizeRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		key := strings.ToLower(r)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
