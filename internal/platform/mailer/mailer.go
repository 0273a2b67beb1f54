package mailer

import (
	"context"
	"errors"
)

var ErrEmptyRecipient = errors.New("empty recipient email")

type Message struct {
	ToEmail string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers one message. Implementations must not log message bodies,
// which can carry credentials.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
