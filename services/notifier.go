package services

import (
	"context"
	"log/slog"
)

// Notifier delivers registration messages to a user or to the administrators.
type Notifier interface {
	NotifyUser(ctx context.Context, address, subject, body string) error
	NotifyAdmins(ctx context.Context, subject, body string, addresses []string) error
}

// MultiNotifier forwards every message to each notifier in order and stops
// at the first failure.
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyUser(ctx context.Context, address, subject, body string) error {
	for _, n := range m {
		if err := n.NotifyUser(ctx, address, subject, body); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiNotifier) NotifyAdmins(ctx context.Context, subject, body string, addresses []string) error {
	for _, n := range m {
		if err := n.NotifyAdmins(ctx, subject, body, addresses); err != nil {
			return err
		}
	}
	return nil
}

// LogNotifier writes notifications to the log. It stands in for email when
// SMTP is not configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) NotifyUser(ctx context.Context, address, subject, body string) error {
	n.Logger.InfoContext(ctx, "User notification",
		slog.String("to", address),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}

func (n LogNotifier) NotifyAdmins(ctx context.Context, subject, body string, addresses []string) error {
	n.Logger.InfoContext(ctx, "Admin notification",
		slog.Any("to", addresses),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}
