package mailer

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/princinho/jobportal/config"
	"github.com/princinho/jobportal/models"
)

type envelope struct {
	from string
	rcpt string
	data string
}

// fakeSMTP accepts a single session and reports what it received.
func fakeSMTP(t *testing.T) (port int, got <-chan envelope) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	out := make(chan envelope, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		tp := textproto.NewConn(conn)
		var env envelope
		_ = tp.PrintfLine("220 fake ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				_ = tp.PrintfLine("250-fake")
				_ = tp.PrintfLine("250 HELP")
			case strings.HasPrefix(cmd, "MAIL FROM:"):
				env.from = line[len("MAIL FROM:"):]
				_ = tp.PrintfLine("250 OK")
			case strings.HasPrefix(cmd, "RCPT TO:"):
				env.rcpt = line[len("RCPT TO:"):]
				_ = tp.PrintfLine("250 OK")
			case cmd == "DATA":
				_ = tp.PrintfLine("354 go ahead")
				data, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				env.data = string(data)
				_ = tp.PrintfLine("250 OK")
			case cmd == "QUIT":
				_ = tp.PrintfLine("221 bye")
				out <- env
				return
			default:
				_ = tp.PrintfLine("502 not implemented")
			}
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port, out
}

func TestSMTPMailer_Send(t *testing.T) {
	port, got := fakeSMTP(t)
	m := NewSMTPMailer(config.MailConfig{
		Host: "127.0.0.1",
		Port: port,
		From: "noreply@jobcourseportal.com",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := PasswordResetMessage("alice@example.com", "Alice", "http://localhost/auth/reset-password/abc")
	require.NoError(t, m.Send(ctx, msg))

	select {
	case env := <-got:
		assert.Equal(t, "<noreply@jobcourseportal.com>", env.from)
		assert.Equal(t, "<alice@example.com>", env.rcpt)
		assert.Contains(t, env.data, "Subject: Password Reset Request")
		assert.Contains(t, env.data, "http://localhost/auth/reset-password/abc")
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestSMTPMailer_RejectsBadRecipient(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{Host: "127.0.0.1", Port: 1, From: "noreply@example.com"})
	err := m.Send(context.Background(), Message{To: "not an address", Subject: "x"})
	assert.Error(t, err)
}

func TestSanitizeHeader(t *testing.T) {
	assert.Equal(t, "a  Bcc: x", sanitizeHeader("a\r\nBcc: x"))
}

func TestLogMailer_DoesNotLogBody(t *testing.T) {
	var buf bytes.Buffer
	m := LogMailer{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	msg := PasswordResetMessage("bob@example.com", "Bob", "http://localhost/auth/reset-password/secret-token")
	require.NoError(t, m.Send(context.Background(), msg))

	assert.Contains(t, buf.String(), "bob@example.com")
	assert.Contains(t, buf.String(), "Password Reset Request")
	assert.NotContains(t, buf.String(), "secret-token")
}

func TestNewListingMessage(t *testing.T) {
	course := models.Course{Title: "Go in Practice", Description: strings.Repeat("x", 400)}
	msg := NewListingMessage("c@example.com", "", course, "http://localhost/courses/1")

	assert.Equal(t, "New course: Go in Practice", msg.Subject)
	assert.Contains(t, msg.Body, "Hello there")
	assert.Contains(t, msg.Body, "http://localhost/courses/1")
	assert.Contains(t, msg.Body, strings.Repeat("x", 280)+"...")
	assert.NotContains(t, msg.Body, strings.Repeat("x", 281))

	job := models.Job{Title: "Backend Engineer"}
	assert.Equal(t, "New job: Backend Engineer", NewListingMessage("c@example.com", "Cara", job, "u").Subject)
}
