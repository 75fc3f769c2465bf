// Package mail sends transactional email through SendGrid, or logs it when no API key is set.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"net/mail"
	"sync"
	texttemplate "text/template"

	"go.uber.org/zap"
)

// ErrNoRecipients is returned for messages without a To address.
var ErrNoRecipients = errors.New("mail: message has no recipients")

// Message is one outgoing email.
type Message struct {
	To      []mail.Address
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Template renders a subject, plain text and HTML body from the same data.
type Template struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

// MustTemplate parses the three parts of a template and panics on syntax errors.
func MustTemplate(name, subject, text, html string) *Template {
	return &Template{
		subject: texttemplate.Must(texttemplate.New(name + ".subject").Parse(subject)),
		text:    texttemplate.Must(texttemplate.New(name + ".text").Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(name + ".html").Parse(html)),
	}
}

// Render builds a message for to.
func (t *Template) Render(to mail.Address, data interface{}) (Message, error) {
	var subject, text, html bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	if err := t.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	if err := t.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	return Message{To: []mail.Address{to}, Subject: subject.String(), Text: text.String(), HTML: html.String()}, nil
}

// PasswordReset is sent when a user asks to reset their password.
var PasswordReset = MustTemplate("password_reset",
	`Reset your {{.AppName}} password`,
	"Hello {{.Name}},\n\nUse the link below to choose a new password. It expires in {{.ExpiresIn}}.\n\n{{.Link}}\n\nIf you did not ask for this, ignore this email.\n",
	`<p>Hello {{.Name}},</p><p>Use the link below to choose a new password. It expires in {{.ExpiresIn}}.</p><p><a href="{{.Link}}">Reset password</a></p><p>If you did not ask for this, ignore this email.</p>`,
)

// ConsoleSender writes messages to the log instead of sending them.
type ConsoleSender struct {
	from   mail.Address
	logger *zap.Logger
}

// NewConsoleSender builds a sender for development.
func NewConsoleSender(from mail.Address, logger *zap.Logger) *ConsoleSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSender{from: from, logger: logger}
}

// Send logs msg.
func (s *ConsoleSender) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	s.logger.Info("mail",
		zap.String("from", s.from.String()),
		zap.Strings("to", addresses(msg.To)),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}

// Recorder keeps sent messages in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
}

// Send records msg.
func (r *Recorder) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

func addresses(list []mail.Address) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.String()
	}
	return out
}
