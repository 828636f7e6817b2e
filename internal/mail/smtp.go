package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// SMTPSender sends messages through an SMTP relay. smtp.SendMail upgrades with STARTTLS when offered.
type SMTPSender struct {
	composer *Composer
	addr     string
	host     string
	auth     smtp.Auth
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender returns a sender for host:port. username may be empty for unauthenticated relays.
func NewSMTPSender(composer *Composer, host string, port int, username, password string) (*SMTPSender, error) {
	if composer == nil {
		return nil, fmt.Errorf("mail: composer is required")
	}
	if host == "" {
		return nil, fmt.Errorf("mail: SMTP host is required")
	}
	if port <= 0 {
		port = 587
	}
	s := &SMTPSender{
		composer: composer,
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		host:     host,
		send:     smtp.SendMail,
	}
	if username != "" {
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	return s, nil
}

// SendChallenge renders and sends the magic-link email. smtp.SendMail has no context; ctx is checked before dialing.
func (s *SMTPSender) SendChallenge(ctx context.Context, email, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.composer.Compose(email, link)
	if err != nil {
		return err
	}
	if err := s.send(s.addr, s.auth, envelopeAddress(msg.From), []string{email}, encode(msg)); err != nil {
		return fmt.Errorf("mail: smtp send: %w", err)
	}
	return nil
}

// envelopeAddress extracts the bare address from `"Name" <addr>`.
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return from
}

func encode(m Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + m.From + "\r\n")
	b.WriteString("To: " + m.To + "\r\n")
	b.WriteString("Subject: " + m.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return []byte(b.String())
}
