package notification

import (
	"context"
	"log/slog"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

type Notification struct {
	Title       string
	Description string
	Severity    Severity
}

// Notifier is the user-facing notification surface. The sync core fires
// notifications and never inspects delivery.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

func Info(title, description string) Notification {
	return Notification{Title: title, Description: description, Severity: SeverityInfo}
}

func Error(title, description string) Notification {
	return Notification{Title: title, Description: description, Severity: SeverityError}
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (ln *LogNotifier) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	if n.Severity == SeverityError {
		level = slog.LevelError
	}
	ln.logger.Log(ctx, level, n.Title, "description", n.Description)
}
