// Package notify delivers blocked-attempt alerts to site administrators.
package notify

import (
	"context"
	"fmt"

	logpkg "github.com/haukened/tempmail-gate/internal/gate/common/log"
	"github.com/haukened/tempmail-gate/internal/gate/domain"
)

// Notifier dispatches one alert for a blocked submission.
type Notifier interface {
	Notify(ctx context.Context, ev domain.BlockedEvent) error
}

// timeLayout matches the timestamp format of the log view.
const timeLayout = "2006-01-02 15:04:05"

// Compose renders the subject and plain-text body of an alert.
func Compose(ev domain.BlockedEvent) (subject, body string) {
	subject = fmt.Sprintf("[%s] Blocked Disposable Email Attempt", ev.Site.DisplayName())
	body = fmt.Sprintf(
		"A disposable or temporary email address was blocked.\n\nEmail: %s\nSource: %s\nTime: %s\nIP Address: %s\n",
		ev.Entry.Email,
		ev.Entry.Source,
		ev.Entry.Timestamp.Format(timeLayout),
		ev.Entry.IP,
	)
	return subject, body
}

// LogNotifier writes alerts to the structured log instead of sending mail.
type LogNotifier struct {
	logger logpkg.Logger
}

// NewLogNotifier returns a Notifier that logs at Info.
func NewLogNotifier(logger logpkg.Logger) *LogNotifier {
	if logger == nil {
		logger = logpkg.NewNoopLogger()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, ev domain.BlockedEvent) error {
	subject, _ := Compose(ev)
	n.logger.Info(map[string]any{
		"site":    ev.Site.ID,
		"to":      ev.Site.AdminEmail,
		"subject": subject,
		"email":   ev.Entry.Email,
		"source":  ev.Entry.Source,
		"ip":      ev.Entry.IP,
		"domain":  ev.Domain,
	}, "admin notification")
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
