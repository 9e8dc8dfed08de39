package services

import (
	"bytes"
	"context"
	"crypto/tls"
	_ "embed"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/tennis-tournament/config"
)

//go:embed templates/notification.html
var notificationTemplate string

var notificationLayout = template.Must(template.New("notification").Parse(notificationTemplate))

// EmailService sends notifications over SMTP.
type EmailService struct {
	cfg config.SMTPConfig

	// send delivers one rendered message to one recipient.
	send func(ctx context.Context, to string, msg []byte) error
}

func NewEmailService(cfg config.SMTPConfig) *EmailService {
	s := &EmailService{cfg: cfg}
	s.send = s.sendSMTP
	return s
}

func (s *EmailService) NotifyUser(ctx context.Context, address, subject, body string) error {
	msg, err := s.buildMessage(address, subject, body)
	if err != nil {
		return err
	}
	return s.send(ctx, address, msg)
}

// NotifyAdmins mails every address concurrently and returns the first failure.
func (s *EmailService) NotifyAdmins(ctx context.Context, subject, body string, addresses []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, address := range addresses {
		address := address
		g.Go(func() error {
			return s.NotifyUser(ctx, address, subject, body)
		})
	}
	return g.Wait()
}

func (s *EmailService) buildMessage(to, subject, body string) ([]byte, error) {
	var html bytes.Buffer
	data := struct {
		Subject    string
		Paragraphs []string
	}{
		Subject:    subject,
		Paragraphs: splitParagraphs(body),
	}
	if err := notificationLayout.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("render notification: %w", err)
	}

	var msg bytes.Buffer
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("From: " + s.cfg.From + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.Write(html.Bytes())
	msg.WriteString("\r\n")
	return msg.Bytes(), nil
}

func splitParagraphs(body string) []string {
	var paragraphs []string
	for _, p := range strings.Split(body, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

func (s *EmailService) sendSMTP(ctx context.Context, to string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	tlsConfig := &tls.Config{ServerName: s.cfg.Host}

	var client *smtp.Client
	if s.cfg.Port == 465 {
		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("smtp tls dial %s: %w", addr, err)
		}
		client, err = smtp.NewClient(conn, s.cfg.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp client: %w", err)
		}
	} else {
		c, err := smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("smtp dial %s: %w", addr, err)
		}
		client = c
		if err = client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	defer client.Close()

	if s.cfg.User != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp RCPT TO %s: %w", to, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return client.Quit()
}
