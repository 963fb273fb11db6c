package email

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessagePlainHTML(t *testing.T) {
	p := NewSMTP(Config{From: "noreply@studioclay.se"})

	msg := string(p.buildMessage([]string{"anna@example.com"}, "Din faktura", "<p>Hej</p>", nil))

	assert.Contains(t, msg, "From: noreply@studioclay.se\r\n")
	assert.Contains(t, msg, "To: anna@example.com\r\n")
	assert.Contains(t, msg, "Content-Type: text/html")
	assert.NotContains(t, msg, "multipart/mixed")
	assert.True(t, strings.HasSuffix(msg, "<p>Hej</p>"))
}

func TestBuildMessageEncodesSubject(t *testing.T) {
	p := NewSMTP(Config{From: "noreply@studioclay.se"})

	msg := string(p.buildMessage([]string{"anna@example.com"}, "Ditt presentkort från Studio Clay", "<p></p>", nil))

	// Non-ASCII subjects must be RFC 2047 encoded.
	assert.Contains(t, msg, "Subject: =?utf-8?")
	assert.NotContains(t, msg, "Subject: Ditt presentkort från")
}

func TestBuildMessageWithAttachments(t *testing.T) {
	p := NewSMTP(Config{From: "noreply@studioclay.se"})

	data := bytes.Repeat([]byte{0xAB}, 200)
	msg := string(p.buildMessage(
		[]string{"anna@example.com"},
		"Din faktura",
		"<p>Hej</p>",
		[]Attachment{{Filename: "INV-TEST-0001.pdf", ContentType: "application/pdf", Data: data}},
	))

	assert.Contains(t, msg, "Content-Type: multipart/mixed")
	assert.Contains(t, msg, `Content-Disposition: attachment; filename="INV-TEST-0001.pdf"`)
	assert.Contains(t, msg, "Content-Transfer-Encoding: base64")

	// Every base64 line stays within the RFC 2045 limit.
	inBody := false
	for _, line := range strings.Split(msg, "\r\n") {
		if strings.HasPrefix(line, "Content-Transfer-Encoding") {
			inBody = true
			continue
		}
		if inBody && strings.HasPrefix(line, "--") {
			break
		}
		if inBody && line != "" && !strings.HasPrefix(line, "Content-") {
			assert.LessOrEqual(t, len(line), 76)
		}
	}

	require.True(t, strings.HasSuffix(msg, "--studioclay-mail-boundary--\r\n"))
}

func TestSendRequiresRecipients(t *testing.T) {
	p := NewSMTP(Config{From: "noreply@studioclay.se"})
	err := p.Send(context.Background(), nil, "x", "y")
	require.Error(t, err)
}
