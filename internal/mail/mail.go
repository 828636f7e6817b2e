// Package mail delivers magic-link emails. The link carries the raw challenge secret, so no
// implementation here logs or persists it.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Subject is the subject line of every magic-link email.
const Subject = "Your secure magic link to sign in"

// DefaultTemplate is the plain-text body template.
const DefaultTemplate = `Sign in to {{.SiteName}}: {{.Link}}

This link expires in {{printf "%.f" .Expiration.Minutes}} minutes. If you didn't request this, just ignore this email.
`

// Sender delivers a magic link to an email address.
type Sender interface {
	SendChallenge(ctx context.Context, email, link string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, email, link string) error

// SendChallenge calls f.
func (f SenderFunc) SendChallenge(ctx context.Context, email, link string) error {
	return f(ctx, email, link)
}

// Message is a rendered email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// TemplateParams is passed as data when executing the body template.
type TemplateParams struct {
	Email      string
	Link       string
	SiteName   string
	Expiration time.Duration
}

// Composer renders magic-link messages.
type Composer struct {
	from       string
	siteName   string
	expiration time.Duration
	tmpl       *template.Template
}

// NewComposer parses body (DefaultTemplate when empty). from is the sender address.
func NewComposer(from, siteName, body string, expiration time.Duration) (*Composer, error) {
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("mail: sender address is required")
	}
	if body == "" {
		body = DefaultTemplate
	}
	tmpl, err := template.New("magic-link").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("mail: parse template: %w", err)
	}
	return &Composer{from: from, siteName: siteName, expiration: expiration, tmpl: tmpl}, nil
}

// Compose renders the message for email and link.
func (c *Composer) Compose(email, link string) (Message, error) {
	var buf bytes.Buffer
	params := TemplateParams{Email: email, Link: link, SiteName: c.siteName, Expiration: c.expiration}
	if err := c.tmpl.Execute(&buf, params); err != nil {
		return Message{}, fmt.Errorf("mail: render template: %w", err)
	}
	return Message{From: c.from, To: email, Subject: Subject, Body: buf.String()}, nil
}
