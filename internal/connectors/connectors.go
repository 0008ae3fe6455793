package connectors

import (
	"bytes"
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"rpanamer/internal"
)

// MailConnector pulls raw messages from one provider mailbox.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}

// Headers is the subset of message headers kept next to the raw message.
type Headers struct {
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
}

// HeadersFromRaw reads the identifying headers of a raw RFC 5322 message.
// ReceivedAt falls back to now when the Date header is missing or unparsable.
func HeadersFromRaw(raw []byte) Headers {
	h := Headers{ReceivedAt: time.Now().UTC().Format(time.RFC3339)}
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return h
	}
	h.MessageID = strings.TrimSpace(env.GetHeader("Message-ID"))
	h.Subject = env.GetHeader("Subject")
	h.From = env.GetHeader("From")
	if date := env.GetHeader("Date"); date != "" {
		if t, err := mail.ParseDate(date); err == nil {
			h.ReceivedAt = t.UTC().Format(time.RFC3339)
		}
	}
	return h
}
