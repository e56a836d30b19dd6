package notifications

import (
	"context"
	"strings"

	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/logger"
)

// Message is what a Mailer delivers.
type Message struct {
	Template enums.NotificationTemplate
	Subject  string
	To       []string
	Context  map[string]any
}

// Mailer delivers one rendered message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer records messages in the structured log instead of sending them.
type LogMailer struct {
	logg *logger.Logger
}

// NewLogMailer builds the default mailer.
func NewLogMailer(logg *logger.Logger) *LogMailer {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogMailer{logg: logg}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logg.Info(m.logg.WithFields(ctx, map[string]any{
		"template": msg.Template,
		"subject":  msg.Subject,
		"to":       strings.Join(msg.To, ","),
	}), "notification delivered")
	return nil
}
