package mailer

import (
	"context"

	"github.com/prodemyx/prodemyx-api/pkg/logger"
)

// DevMailer records sends in the log instead of delivering them. Only the
// envelope is logged.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(ctx context.Context, msg Message) error {
	if msg.ToEmail == "" {
		return ErrEmptyRecipient
	}
	logger.InfoContext(ctx, "📧 [DEV MAIL] email suppressed",
		"to", msg.ToEmail,
		"subject", msg.Subject,
		"text_bytes", len(msg.Text),
		"html_bytes", len(msg.HTML),
	)
	return nil
}
