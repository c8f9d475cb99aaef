// Package email sends transactional mail over SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	texttemplate "text/template"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service sends mail through a single SMTP endpoint. Every message is
// multipart/alternative with a plain-text part rendered from the same
// data as the HTML part.
type Service struct {
	cfg  Config
	addr string
}

// NewService creates a new email service
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg, addr: cfg.Host + ":" + cfg.Port}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.cfg.Host != "" && s.cfg.Port != "" && s.cfg.From != ""
}

func (s *Service) fromHeader() string {
	if s.cfg.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.From)
	}
	return s.cfg.From
}

// auth is nil when no username is set, which local relays like
// mailhog expect.
func (s *Service) auth() smtp.Auth {
	if s.cfg.Username == "" {
		return nil
	}
	return smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
}

const mimeBoundary = "docuvault-alt"

// Send delivers one multipart/alternative message.
func (s *Service) Send(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromHeader())
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mimeBoundary)

	part := func(contentType, body string) {
		fmt.Fprintf(&msg, "--%s\r\n", mimeBoundary)
		fmt.Fprintf(&msg, "Content-Type: %s; charset=UTF-8\r\n\r\n", contentType)
		msg.WriteString(body)
		msg.WriteString("\r\n")
	}
	part("text/plain", textBody)
	part("text/html", htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", mimeBoundary)

	return smtp.SendMail(s.addr, s.auth(), s.cfg.From, to, msg.Bytes())
}

// PasswordResetData holds data for the reset templates
type PasswordResetData struct {
	AppName  string
	UserName string
	ResetURL string
}

// SendPasswordResetEmail sends a password reset email
func (s *Service) SendPasswordResetEmail(to, userName, resetURL string) error {
	data := PasswordResetData{
		AppName:  "DocuVault",
		UserName: userName,
		ResetURL: resetURL,
	}

	text, err := renderText(passwordResetTextTemplate, data)
	if err != nil {
		return fmt.Errorf("render password reset text: %w", err)
	}
	html, err := renderHTML(passwordResetHTMLTemplate, data)
	if err != nil {
		return fmt.Errorf("render password reset html: %w", err)
	}

	return s.Send([]string{to}, "Reset your DocuVault password", text, html)
}

func renderHTML(tmpl string, data any) (string, error) {
	var buf bytes.Buffer
	if err := template.Must(template.New("email").Parse(tmpl)).Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderText(tmpl string, data any) (string, error) {
	var buf bytes.Buffer
	if err := texttemplate.Must(texttemplate.New("email").Parse(tmpl)).Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const passwordResetTextTemplate = `Hi {{.UserName}},

Someone asked to reset the password for your {{.AppName}} account.
Open this link to choose a new one (valid for 1 hour):

{{.ResetURL}}

If that wasn't you, ignore this message and your password stays as it is.
`

const passwordResetHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Reset your {{.AppName}} password</title>
</head>
<body style="font-family: 'Segoe UI', Helvetica, Arial, sans-serif; color: #1f2430; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h1 style="font-size: 20px; border-bottom: 1px solid #d6dae2; padding-bottom: 8px;">{{.AppName}}</h1>
  <p>Hi {{.UserName}},</p>
  <p>Someone asked to reset the password for your {{.AppName}} account.
     The link below is valid for 1 hour.</p>
  <p style="margin: 24px 0;">
    <a href="{{.ResetURL}}" style="background: #1f56c3; color: #ffffff; padding: 10px 22px; border-radius: 3px; text-decoration: none;">Choose a new password</a>
  </p>
  <p>If the button does not work, copy this address into your browser:<br>
     <span style="word-break: break-all; color: #1f56c3;">{{.ResetURL}}</span></p>
  <p style="margin-top: 32px; font-size: 12px; color: #6b7280; border-top: 1px solid #d6dae2; padding-top: 12px;">
    If that wasn't you, ignore this message and your password stays as it is.
  </p>
</body>
</html>`
