// Package mailer sends the plain-text messages produced by the reminder sweep.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ariebrainware/medelle-reminder/config"
	"github.com/ariebrainware/medelle-reminder/util"
	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
)

// ErrNoRecipient is returned when a message has no To address.
var ErrNoRecipient = errors.New("message has no recipient")

// Message is one outbound email.
type Message struct {
	From    string
	To      string
	CC      string
	Subject string
	Body    string
}

// Receipt describes an accepted message.
type Receipt struct {
	MessageID  string
	PreviewURL string
}

// Transport delivers messages to a relay. Implementations must honour ctx.
type Transport interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// New builds the transport selected by cfg.MailDriver.
func New(cfg *config.Config) (Transport, error) {
	switch cfg.MailDriver {
	case config.MailDriverSMTP:
		return NewSMTPTransport(SMTPOptions{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Username:   cfg.SMTPUser,
			Password:   cfg.SMTPPassword,
			Timeout:    cfg.MailSendTimeout,
			PreviewURL: cfg.MailPreviewURL,
		})
	case config.MailDriverLog:
		return NewLogTransport(cfg.MailPreviewURL), nil
	default:
		return nil, fmt.Errorf("unsupported mail driver %q", cfg.MailDriver)
	}
}

// SMTPOptions configures SMTPTransport.
type SMTPOptions struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Timeout    time.Duration
	PreviewURL string
}

// SMTPTransport relays messages through an SMTP server using STARTTLS when offered.
type SMTPTransport struct {
	opts SMTPOptions
}

func NewSMTPTransport(opts SMTPOptions) (*SMTPTransport, error) {
	if opts.Host == "" {
		return nil, errors.New("smtp host is empty")
	}
	if opts.Port == 0 {
		opts.Port = 587
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &SMTPTransport{opts: opts}, nil
}

func (t *SMTPTransport) client() (*mail.Client, error) {
	clientOpts := []mail.Option{
		mail.WithPort(t.opts.Port),
		mail.WithTimeout(t.opts.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if t.opts.Port == 465 {
		clientOpts = append(clientOpts, mail.WithSSL())
	}
	if t.opts.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.opts.Username),
			mail.WithPassword(t.opts.Password),
		)
	}
	return mail.NewClient(t.opts.Host, clientOpts...)
}

// Send dials the relay, delivers msg and closes the connection.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) (Receipt, error) {
	m, err := buildMsg(msg)
	if err != nil {
		return Receipt{}, err
	}

	c, err := t.client()
	if err != nil {
		return Receipt{}, fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return Receipt{}, fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}

	id := messageID(m)
	return Receipt{MessageID: id, PreviewURL: previewURL(t.opts.PreviewURL, id)}, nil
}

func buildMsg(msg Message) (*mail.Msg, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, ErrNoRecipient
	}

	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid to address %q: %w", msg.To, err)
	}
	if msg.CC != "" {
		if err := m.Cc(msg.CC); err != nil {
			return nil, fmt.Errorf("invalid cc address %q: %w", msg.CC, err)
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	m.SetMessageID()
	return m, nil
}

func messageID(m *mail.Msg) string {
	ids := m.GetGenHeader(mail.HeaderMessageID)
	if len(ids) == 0 {
		return ""
	}
	return strings.Trim(ids[0], "<>")
}

// previewIDPlaceholder marks where the Message-ID goes in MAIL_PREVIEW_URL,
// e.g. Mailpit's search page http://localhost:8025/search?q=message-id:{id}.
const previewIDPlaceholder = "{id}"

// previewURL builds the sandbox relay link for a Message-ID. Without the
// placeholder the escaped id is appended as the last path segment.
func previewURL(base, id string) string {
	if base == "" || id == "" {
		return ""
	}
	if strings.Contains(base, previewIDPlaceholder) {
		return strings.ReplaceAll(base, previewIDPlaceholder, url.QueryEscape(id))
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(id)
}

// LogTransport writes messages to the process log instead of a relay. It is
// meant for development setups without SMTP credentials.
type LogTransport struct {
	previewBase string
}

func NewLogTransport(previewBase string) *LogTransport {
	return &LogTransport{previewBase: previewBase}
}

func (t *LogTransport) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if strings.TrimSpace(msg.To) == "" {
		return Receipt{}, ErrNoRecipient
	}

	id := uuid.NewString() + "@medelle.local"
	util.Logger().Info().
		Str("message_id", id).
		Str("from", msg.From).
		Str("to", msg.To).
		Str("cc", msg.CC).
		Str("subject", util.SanitizeLogValue(msg.Subject)).
		Msg("mail not relayed, log transport")
	return Receipt{MessageID: id, PreviewURL: previewURL(t.previewBase, id)}, nil
}
