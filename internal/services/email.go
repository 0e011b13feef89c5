package services

import (
	"crypto/tls"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/bugdesk/bugdesk/internal/config"
	"github.com/bugdesk/bugdesk/pkg/logger"
)

// EmailMessage is the payload of an email:send task.
type EmailMessage struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"` // HTML
}

type EmailService struct {
	config *config.MailConfig
}

func NewEmailService(cfg *config.MailConfig) *EmailService {
	return &EmailService{config: cfg}
}

func (s *EmailService) Enabled() bool {
	return s.config.Enabled && s.config.Host != ""
}

// Send delivers msg. With mail disabled the message is logged and dropped.
func (s *EmailService) Send(msg *EmailMessage) error {
	if msg == nil || len(msg.To) == 0 {
		return nil
	}
	if !s.Enabled() {
		logger.Info().Strs("to", msg.To).Str("subject", msg.Subject).Msg("mail disabled, message not sent")
		return nil
	}

	from := s.config.From
	if from == "" {
		from = s.config.Username
	}

	message := buildMIMEMessage(from, msg)
	port := s.config.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", s.config.Host, port)

	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	var err error
	if s.config.UseTLS {
		err = s.sendTLS(addr, auth, from, msg.To, message)
	} else {
		err = smtp.SendMail(addr, auth, from, msg.To, []byte(message))
	}
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	logger.Info().Strs("to", msg.To).Str("subject", msg.Subject).Msg("mail sent")
	return nil
}

func buildMIMEMessage(from string, msg *EmailMessage) string {
	var b strings.Builder
	headers := [][2]string{
		{"From", from},
		{"To", strings.Join(msg.To, ",")},
		{"Subject", msg.Subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}
	for _, h := range headers {
		b.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return b.String()
}

// sendTLS is used for implicit TLS (port 465) servers, which smtp.SendMail cannot reach.
func (s *EmailService) sendTLS(addr string, auth smtp.Auth, from string, to []string, message string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.config.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(message)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// PasswordResetEmail builds the reset mail for link.
func PasswordResetEmail(to, username, link string, ttlMinutes int) *EmailMessage {
	var b strings.Builder
	b.WriteString(`<html><body style="font-family: Arial, sans-serif;">`)
	fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(username))
	b.WriteString("<p>Someone asked to reset the password of your BugDesk account.</p>")
	fmt.Fprintf(&b, `<p><a href="%s">Choose a new password</a></p>`, html.EscapeString(link))
	fmt.Fprintf(&b, "<p>The link expires in %d minutes. If you did not ask for this, ignore this mail.</p>", ttlMinutes)
	b.WriteString("</body></html>")

	return &EmailMessage{
		To:      []string{to},
		Subject: "[BugDesk] Password reset",
		Body:    b.String(),
	}
}
