package mail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hugh/tubelink/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestSMTPMailer_Send(t *testing.T) {
	fake := &fakeSender{}
	m := &SMTPMailer{from: "noreply@example.com", dialer: fake}

	require.NoError(t, m.Send(context.Background(), "user@example.com", "Verify", "code 123456"))
	require.Len(t, fake.sent, 1)

	msg := fake.sent[0]
	assert.Equal(t, []string{"noreply@example.com"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"user@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"Verify"}, msg.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "code 123456")

	fake.err = errors.New("connection refused")
	err = m.Send(context.Background(), "user@example.com", "Verify", "body")
	assert.ErrorContains(t, err, "failed to send email")
}

func TestNew(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	_, isLog := New(config.SMTPConfig{}, logger).(*LogMailer)
	assert.True(t, isLog)

	_, isSMTP := New(config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "a@example.com"}, logger).(*SMTPMailer)
	assert.True(t, isSMTP)
}

func TestLogMailer_Send(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, m.Send(context.Background(), "user@example.com", "Reset", "token abc"))
	assert.Contains(t, buf.String(), "user@example.com")
	assert.Contains(t, buf.String(), "token abc")
}
