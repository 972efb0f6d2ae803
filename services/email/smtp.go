package email

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	log "github.com/sirupsen/logrus"
)

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type SMTPService struct {
	config SMTPConfig
}

func NewSMTPService(config SMTPConfig) *SMTPService {
	return &SMTPService{
		config: config,
	}
}

// Enabled reports whether an SMTP host is configured.
func (s *SMTPService) Enabled() bool {
	return s.config.Host != ""
}

func (s *SMTPService) SendEmail(to, subject, body string) error {
	if !s.Enabled() {
		log.WithField("to", to).Warn("SMTP not configured, dropping email")
		return nil
	}

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(s.config.Host, s.config.Port), 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err = client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if s.config.Username != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err = client.Mail(s.config.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to create email body writer: %w", err)
	}

	if _, err = w.Write(buildMessage(s.config.From, to, subject, body)); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}

	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close email body writer: %w", err)
	}

	return client.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	headers := fmt.Sprintf(
		"From: WashClub <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n",
		from, to, subject,
	)
	return []byte(headers + body)
}

func (s *SMTPService) SendSubscriptionConfirmation(c Confirmation) error {
	body, err := RenderConfirmation(c)
	if err != nil {
		return err
	}
	return s.SendEmail(c.To, "Welcome to WashClub "+c.PlanName, body)
}
