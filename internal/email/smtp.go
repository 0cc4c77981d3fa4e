package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// =============================================================================
// SMTP Email Service Implementation
// =============================================================================

// SMTPEmailService sends lead notifications through an SMTP relay. Mailhog
// in development needs no credentials; PLAIN auth is used when a username
// and password are configured.
type SMTPEmailService struct {
	config    SMTPConfig
	baseURL   string
	templates *template.Template
	logger    *slog.Logger

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPEmailService parses the embedded templates. baseURL prefixes the
// lead links in message bodies.
func NewSMTPEmailService(config SMTPConfig, baseURL string, logger *slog.Logger) (*SMTPEmailService, error) {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	templates, err := template.New("email").Funcs(emailTemplateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &SMTPEmailService{
		config:    config,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		templates: templates,
		logger:    logger,
		sendMail:  smtp.SendMail,
	}, nil
}

// =============================================================================
// EmailService Interface Implementation
// =============================================================================

// SendLeadAssignedEmail notifies an agent about a lead in their queue.
func (s *SMTPEmailService) SendLeadAssignedEmail(ctx context.Context, to string, lead LeadAssigned) error {
	leadURL := fmt.Sprintf("%s/leads/%s", s.baseURL, lead.LeadID)

	data := map[string]interface{}{
		"AgentName":    lead.AgentName,
		"BuyerName":    lead.BuyerName,
		"BuyerEmail":   lead.BuyerEmail,
		"BuyerPhone":   lead.BuyerPhone,
		"Message":      lead.Message,
		"ListingTitle": lead.ListingTitle,
		"ListingCity":  lead.ListingCity,
		"LeadURL":      leadURL,
	}

	htmlBody, err := s.renderTemplate("lead_assigned.html", data)
	if err != nil {
		return fmt.Errorf("failed to render lead assigned email template: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\n", lead.AgentName)
	fmt.Fprintf(&text, "You have a new inquiry about %s.\n\n", lead.ListingTitle)
	fmt.Fprintf(&text, "Name:  %s\nEmail: %s\n", lead.BuyerName, lead.BuyerEmail)
	if lead.BuyerPhone != "" {
		fmt.Fprintf(&text, "Phone: %s\n", lead.BuyerPhone)
	}
	if lead.Message != "" {
		fmt.Fprintf(&text, "\n%s\n", lead.Message)
	}
	fmt.Fprintf(&text, "\nOpen the lead: %s\n\nThe Hearth Team\n", leadURL)

	email := Email{
		To:       to,
		Subject:  fmt.Sprintf("New lead: %s", lead.ListingTitle),
		HTMLBody: htmlBody,
		TextBody: text.String(),
	}

	return s.send(ctx, email)
}

// =============================================================================
// Internal Methods
// =============================================================================

// send sends an email via SMTP.
func (s *SMTPEmailService) send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := s.buildMessage(email)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Create auth if credentials are provided (not needed for Mailhog)
	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	err = s.sendMail(addr, auth, s.config.From, []string{email.To}, msg)
	if err != nil {
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		"to", email.To,
		"subject", email.Subject,
	)

	return nil
}

// buildMessage renders a multipart/alternative message with the plain text
// part first. Bodies are sent as 8bit UTF-8, which every relay we use
// accepts.
func (s *SMTPEmailService) buildMessage(email Email) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=utf-8", email.TextBody},
		{"text/html; charset=utf-8", email.HTMLBody},
	}
	for _, p := range parts {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(pw, p.content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", s.config.FromName, s.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", email.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", email.Subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())

	return msg.Bytes(), nil
}

// renderTemplate renders an email template with the given data.
func (s *SMTPEmailService) renderTemplate(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// =============================================================================
// Template Functions
// =============================================================================

// emailTemplateFuncs returns template functions available in email templates.
func emailTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"currentYear": func() int {
			return time.Now().Year()
		},
	}
}

// =============================================================================
// Compile-time interface check
// =============================================================================

var _ EmailService = (*SMTPEmailService)(nil)
