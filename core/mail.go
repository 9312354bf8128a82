package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"log"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/assets"
)

const emailTemplatesDir = "templates/email"

// Email templates come in pairs under emailTemplatesDir: <name>.txt and <name>.gohtml,
// each defining a "content" block rendered inside _base.txt or _base.gohtml.
const (
	textExt = ".txt"
	htmlExt = ".gohtml"
)

type (
	mailTemplate struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	mailSettings struct {
		once            sync.Once
		appName         string
		frontendBaseURL string
		templates       map[string]*mailTemplate
	}

	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	// EmailMessage is either a plain BodyStr or a rendered template.
	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string
		Attachments []Attachment

		TemplateName string
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// MailContext is what email templates are executed with.
	MailContext struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService sends messages in the background.
	EmailService interface {
		SendMessages(messages ...*EmailMessage)
	}
)

var mailer = &mailSettings{appName: "FieldPro"}

// ParseEmailTemplates parses the embedded email templates once.
// Messages rendered before this call use the defaults and non-strict templates.
func ParseEmailTemplates(conf *Config, logger Logger) {
	mailer.once.Do(func() {
		mailer.appName = conf.AppName
		mailer.frontendBaseURL = conf.FrontendBaseURL
		mailer.templates = loadMailTemplates(assets.FS, conf.Debug || conf.TestMode, logger)
	})
}

func (s *mailSettings) lookup(name string) (*mailTemplate, bool) {
	s.once.Do(func() { s.templates = loadMailTemplates(assets.FS, false, nil) })
	t, ok := s.templates[name]
	return t, ok
}

// Render fills TextContent and HTMLContent. BodyStr wins over the text template.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	t, ok := mailer.lookup(m.TemplateName)
	if !ok {
		return errors.Errorf("unknown email template %q", m.TemplateName)
	}
	ctx := MailContext{AppName: mailer.appName, FrontendBaseURL: mailer.frontendBaseURL, Data: m.TemplateData}

	var buf bytes.Buffer
	if t.text != nil && m.BodyStr == "" {
		if err := t.text.Execute(&buf, ctx); err != nil {
			return errors.Wrapf(err, "rendering %s%s", m.TemplateName, textExt)
		}
		m.TextContent = buf.String()
	}
	if t.html != nil {
		buf.Reset()
		if err := t.html.Execute(&buf, ctx); err != nil {
			return errors.Wrapf(err, "rendering %s%s", m.TemplateName, htmlExt)
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

// Attach reads r into a base64 attachment. The content type is sniffed when ct is empty.
func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrapf(err, "reading attachment %s", filename)
	}
	contentType := http.DetectContentType(content)
	if len(ct) > 0 && ct[0] != "" {
		contentType = ct[0]
	}
	m.Attachments = append(m.Attachments, Attachment{
		Content:     bytes.NewBufferString(base64.StdEncoding.EncodeToString(content)),
		ContentType: contentType,
		Filename:    filename,
	})
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return m.TextContent != "" || m.HTMLContent != "" }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// loadMailTemplates parses every template pair of fsys. Broken templates are logged and skipped.
func loadMailTemplates(fsys fs.FS, strict bool, logger Logger) map[string]*mailTemplate {
	report := func(err error) {
		err = errors.Wrap(err, "parsing email templates")
		if logger != nil {
			logger.Error(err.Error(), err)
			return
		}
		log.Print(err)
	}

	entries, err := fs.ReadDir(fsys, emailTemplatesDir)
	if err != nil {
		report(err)
		return map[string]*mailTemplate{}
	}

	option := "missingkey=default"
	if strict {
		option = "missingkey=error"
	}
	textBase := path.Join(emailTemplatesDir, "_base"+textExt)
	htmlBase := path.Join(emailTemplatesDir, "_base"+htmlExt)

	templates := make(map[string]*mailTemplate)
	for _, entry := range entries {
		fname := entry.Name()
		ext := path.Ext(fname)
		if entry.IsDir() || strings.HasPrefix(fname, "_") || (ext != textExt && ext != htmlExt) {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		fpath := path.Join(emailTemplatesDir, fname)
		t := templates[name]
		if t == nil {
			t = new(mailTemplate)
		}

		if ext == textExt {
			tmpl, err := texttmpl.ParseFS(fsys, textBase, fpath)
			if err != nil {
				report(err)
				continue
			}
			t.text = tmpl.Option(option)
		} else {
			tmpl, err := htmltmpl.ParseFS(fsys, htmlBase, fpath)
			if err != nil {
				report(err)
				continue
			}
			t.html = tmpl.Option(option)
		}
		templates[name] = t
	}
	return templates
}
