package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"rpanamer/internal"
	"rpanamer/internal/config"
	"rpanamer/internal/connectors"
)

const dialTimeout = 30 * time.Second

type Connector struct {
	host     string
	port     int
	secure   bool
	user     string
	password string
	markSeen bool
}

func NewConnector(cfg config.Config) (*Connector, error) {
	for _, req := range []struct{ key, value string }{
		{"IMAP_HOST", cfg.IMAPHost},
		{"IMAP_USER", cfg.IMAPUser},
		{"IMAP_PASSWORD", cfg.IMAPPassword},
	} {
		if err := cfg.Require(req.key, req.value); err != nil {
			return nil, err
		}
	}

	return &Connector{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		secure:   cfg.IMAPSecure,
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
		markSeen: cfg.IMAPMarkSeen,
	}, nil
}

func (c *Connector) dial() (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	if c.secure {
		return imapclient.DialTLS(addr, &tls.Config{ServerName: c.host})
	}
	return imapclient.Dial(addr)
}

// FetchInbox returns the newest unseen messages of mailbox label that carry
// a PDF or ZIP attachment. Bodies are fetched with PEEK; only the returned
// messages are flagged \Seen, and only when markSeen is set.
func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	if max <= 0 {
		return nil, nil
	}
	client, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer client.Logout()
	client.Timeout = dialTimeout

	if err := client.Login(c.user, c.password); err != nil {
		return nil, err
	}
	if _, err := client.Select(label, false); err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := client.UidSearch(criteria)
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return nil, nil
	}

	candidates, err := c.withDocuments(client, uids)
	if err != nil {
		return nil, err
	}
	candidates = newest(candidates, max)
	if len(candidates) == 0 || ctx.Err() != nil {
		return nil, ctx.Err()
	}

	out, err := c.fetchRaw(ctx, client, candidates)
	if err != nil {
		return nil, err
	}

	if c.markSeen && len(out) > 0 {
		seen := new(imap.SeqSet)
		seen.AddNum(candidates...)
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := client.UidStore(seen, item, []interface{}{imap.SeenFlag}, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// newest keeps the last max uids; uids come back in ascending order.
func newest(uids []uint32, max int) []uint32 {
	if max <= 0 {
		return nil
	}
	if len(uids) > max {
		return uids[len(uids)-max:]
	}
	return uids
}

// withDocuments keeps the uids whose body structure names a PDF or ZIP part.
func (c *Connector) withDocuments(client *imapclient.Client, uids []uint32) ([]uint32, error) {
	set := new(imap.SeqSet)
	set.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- client.UidFetch(set, []imap.FetchItem{imap.FetchUid, imap.FetchBodyStructure}, messages)
	}()

	var keep []uint32
	for msg := range messages {
		if msg != nil && msg.BodyStructure != nil && hasDocumentPart(msg.BodyStructure) {
			keep = append(keep, msg.Uid)
		}
	}
	if err := <-done; err != nil {
		return nil, err
	}
	return keep, nil
}

func hasDocumentPart(bs *imap.BodyStructure) bool {
	found := false
	bs.Walk(func(_ []int, part *imap.BodyStructure) bool {
		name, _ := part.Filename()
		name = strings.ToLower(name)
		mime := strings.ToLower(part.MIMEType + "/" + part.MIMESubType)
		if strings.HasSuffix(name, ".pdf") || strings.HasSuffix(name, ".zip") ||
			mime == "application/pdf" || mime == "application/zip" {
			found = true
		}
		return !found
	})
	return found
}

func (c *Connector) fetchRaw(ctx context.Context, client *imapclient.Client, uids []uint32) ([]internal.FetchedMailMessage, error) {
	set := new(imap.SeqSet)
	set.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}
	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() { done <- client.UidFetch(set, items, messages) }()

	out := make([]internal.FetchedMailMessage, 0, len(uids))
	var readErr error
	for msg := range messages {
		if msg == nil || readErr != nil || ctx.Err() != nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			readErr = err
			continue
		}
		out = append(out, toFetched(msg, raw))
	}
	if err := <-done; err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	return out, ctx.Err()
}

func toFetched(msg *imap.Message, raw []byte) internal.FetchedMailMessage {
	h := connectors.HeadersFromRaw(raw)
	if msg.Envelope != nil {
		if msg.Envelope.MessageId != "" {
			h.MessageID = msg.Envelope.MessageId
		}
		if msg.Envelope.Subject != "" {
			h.Subject = msg.Envelope.Subject
		}
		if from := formatAddresses(msg.Envelope.From); from != "" {
			h.From = from
		}
	}
	if h.MessageID == "" {
		h.MessageID = fmt.Sprintf("imap-%d", msg.Uid)
	}
	if !msg.InternalDate.IsZero() {
		h.ReceivedAt = msg.InternalDate.UTC().Format(time.RFC3339)
	}

	return internal.FetchedMailMessage{
		Provider:   "imap",
		MessageID:  h.MessageID,
		Subject:    h.Subject,
		From:       h.From,
		ReceivedAt: h.ReceivedAt,
		Raw:        raw,
	}
}

func formatAddresses(addrs []*imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		email := a.Address()
		if a.PersonalName != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.PersonalName, email))
		} else {
			parts = append(parts, email)
		}
	}
	return strings.Join(parts, ", ")
}
