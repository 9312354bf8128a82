package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fieldpro/core"
)

func testConf() *core.Config {
	return &core.Config{
		AppName:          "FieldPro",
		DefaultFromEmail: mail.Address{Name: "FieldPro", Address: "noreply@fieldpro.example"},
	}
}

func TestConsoleService(t *testing.T) {
	svc := NewConsoleServiceMock(testConf())
	buf := new(bytes.Buffer)
	svc.out = buf

	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: "Jane", Address: "jane@example.com"}},
		Subject: "Hello",
		BodyStr: "Your fitter is on the way.",
	}
	require.NoError(t, msg.Attach(strings.NewReader("%PDF-1.3"), "quote.pdf", "application/pdf"))

	svc.SendMessages(msg, &core.EmailMessage{Subject: "nobody to send to", BodyStr: "x"})

	sent := svc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Your fitter is on the way.", sent[0].TextContent)

	out := buf.String()
	assert.Contains(t, out, "Subject: [FieldPro] Hello")
	assert.Contains(t, out, `To: "Jane" <jane@example.com>`)
	assert.Contains(t, out, "multipart/mixed")
	assert.Contains(t, out, "filename=quote.pdf")

	svc.Reset()
	assert.Empty(t, svc.Sent())
}

func TestSendgridPrepare(t *testing.T) {
	svc := NewSendgridService(testConf(), nil)

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Jane", Address: "jane@example.com"}},
		Bcc:         []mail.Address{{Address: "office@example.com"}},
		Subject:     "Quotation",
		TextContent: "Please find your quotation attached.",
	})

	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[FieldPro] Quotation", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "jane@example.com", p.To[0].Address)
	require.Len(t, p.BCC, 1)
	require.Len(t, m.Content, 1) // no empty html part
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "noreply@fieldpro.example", m.From.Address)
}
