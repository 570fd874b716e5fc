package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerification_EscapesAndLinks(t *testing.T) {
	msg, err := Verification("https://portal.example.org/", "ada@example.org", "<Ada>", "code123")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.org", msg.To)
	assert.Contains(t, msg.HTML, "https://portal.example.org/verify/code123")
	assert.Contains(t, msg.HTML, "&lt;Ada&gt;")
}

func TestSMTPSender_Send(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.org", Port: 587, User: "u", Pass: "p",
		FromAddress: "noreply@example.org", FromName: "Portal"}, nil)
	var gotAddr string
	var gotBody []byte
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotBody = addr, msg
		assert.NotNil(t, a)
		assert.Equal(t, []string{"ada@example.org"}, to)
		return nil
	}

	require.NoError(t, s.Send(context.Background(), Message{To: "ada@example.org", Subject: "Hi", HTML: "<p>x</p>"}))
	assert.Equal(t, "smtp.example.org:587", gotAddr)
	assert.Contains(t, string(gotBody), "Subject: Hi\r\n")
	assert.Contains(t, string(gotBody), `From: "Portal" <noreply@example.org>`)
}

func TestSMTPSender_WrapsFailures(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.org", Port: 25}, nil)
	boom := errors.New("421 busy")
	s.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	assert.ErrorIs(t, s.Send(context.Background(), Message{To: "a@b.c"}), boom)
}

func TestSMTPSender_NoHostDrops(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{}, nil)
	s.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("must not dial")
		return nil
	}
	assert.NoError(t, s.Send(context.Background(), Message{To: "a@b.c"}))
}
