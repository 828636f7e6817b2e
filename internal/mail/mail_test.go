package mail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"synq/backend/internal/logging"
)

const testLink = "http://localhost:3000/onboarding/auth/verify?token=abc123"

func newTestComposer(t *testing.T) *Composer {
	t.Helper()
	c, err := NewComposer(`"Synq" <no-reply@synq.dev>`, "Synq", "", 15*time.Minute)
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	return c
}

func TestComposer_Compose(t *testing.T) {
	msg, err := newTestComposer(t).Compose("new@example.com", testLink)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if msg.Subject != Subject {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if msg.To != "new@example.com" {
		t.Errorf("To = %q", msg.To)
	}
	if !strings.Contains(msg.Body, testLink) {
		t.Errorf("body should contain link: %q", msg.Body)
	}
	if !strings.Contains(msg.Body, "expires in 15 minutes") {
		t.Errorf("body should mention expiry: %q", msg.Body)
	}
}

func TestNewComposer_Errors(t *testing.T) {
	if _, err := NewComposer("", "Synq", "", time.Minute); err == nil {
		t.Error("empty from should fail")
	}
	if _, err := NewComposer("a@b.c", "Synq", "{{.Link", time.Minute); err == nil {
		t.Error("bad template should fail")
	}
	c, err := NewComposer("a@b.c", "Synq", "{{.Missing.Field}}", time.Minute)
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	if _, err := c.Compose("x@example.com", testLink); err == nil {
		t.Error("template exec error should be returned")
	}
}

func TestSMTPSender_SendChallenge(t *testing.T) {
	s, err := NewSMTPSender(newTestComposer(t), "smtp.example.com", 0, "user", "pass")
	if err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		if a == nil {
			t.Error("auth should be set when username is given")
		}
		return nil
	}
	if err := s.SendChallenge(context.Background(), "new@example.com", testLink); err != nil {
		t.Fatalf("SendChallenge: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "no-reply@synq.dev" {
		t.Errorf("envelope from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "new@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: "+Subject+"\r\n") || !strings.Contains(gotMsg, testLink) {
		t.Errorf("message = %q", gotMsg)
	}
}

func TestSMTPSender_Errors(t *testing.T) {
	if _, err := NewSMTPSender(nil, "h", 25, "", ""); err == nil {
		t.Error("nil composer should fail")
	}
	if _, err := NewSMTPSender(newTestComposer(t), "", 25, "", ""); err == nil {
		t.Error("empty host should fail")
	}
	s, _ := NewSMTPSender(newTestComposer(t), "localhost", 25, "", "")
	if s.auth != nil {
		t.Error("auth should be nil without username")
	}
	s.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 busy") }
	if err := s.SendChallenge(context.Background(), "a@example.com", testLink); err == nil {
		t.Error("send failure should be returned")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SendChallenge(ctx, "a@example.com", testLink); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled ctx: got %v", err)
	}
}

func TestHTTPSender_SendChallenge(t *testing.T) {
	var got httpMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key-1" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := NewHTTPSender(newTestComposer(t), srv.URL, "key-1")
	if err != nil {
		t.Fatalf("NewHTTPSender: %v", err)
	}
	if err := s.SendChallenge(context.Background(), "new@example.com", testLink); err != nil {
		t.Fatalf("SendChallenge: %v", err)
	}
	if got.To != "new@example.com" || got.Subject != Subject || !strings.Contains(got.Text, testLink) {
		t.Errorf("payload = %+v", got)
	}
}

func TestHTTPSender_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, _ := NewHTTPSender(newTestComposer(t), srv.URL, "key-1")
	err := s.SendChallenge(context.Background(), "new@example.com", testLink)
	if err == nil || !strings.Contains(err.Error(), "status=429") {
		t.Fatalf("want status error, got %v", err)
	}
	if strings.Contains(err.Error(), "abc123") {
		t.Error("error must not contain the secret")
	}
	if _, err := NewHTTPSender(newTestComposer(t), "", "k"); err == nil {
		t.Error("missing URL should fail")
	}
}

func TestOutbox(t *testing.T) {
	o := NewOutbox(newTestComposer(t), 15*time.Minute, logging.Nop())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	o.nowF = func() time.Time { return now }

	if _, ok := o.Latest("new@example.com"); ok {
		t.Fatal("empty outbox should have no message")
	}
	if err := o.SendChallenge(context.Background(), "new@example.com", testLink); err != nil {
		t.Fatalf("SendChallenge: %v", err)
	}
	msg, ok := o.Latest("new@example.com")
	if !ok || !strings.Contains(msg.Body, testLink) {
		t.Fatalf("Latest = %+v, %v", msg, ok)
	}
	now = now.Add(15 * time.Minute)
	if _, ok := o.Latest("new@example.com"); ok {
		t.Error("expired message should be dropped")
	}
}

func TestSenderFunc(t *testing.T) {
	var called bool
	var s Sender = SenderFunc(func(ctx context.Context, email, link string) error {
		called = email == "a@example.com" && link == testLink
		return nil
	})
	_ = s.SendChallenge(context.Background(), "a@example.com", testLink)
	if !called {
		t.Error("SenderFunc should forward arguments")
	}
}
