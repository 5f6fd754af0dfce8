package mail

import (
	"crypto/tls"
	"fmt"
	"math/rand"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"time"

	"github.com/weblogd/weblogd/internal/config"
	"github.com/weblogd/weblogd/internal/domain"
	internal_errors "github.com/weblogd/weblogd/internal/errors"
	"github.com/weblogd/weblogd/internal/logger"
)

type Mail struct {
	config *config.Email
	auth   smtp.Auth
}

func New(config *config.Email) *Mail {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.SMTPServer)
	return &Mail{
		config: config,
		auth:   auth,
	}
}

func (m *Mail) IsCorrect(email string) error {
	_, err := mail.ParseAddress(email)
	if err != nil {
		return &internal_errors.ErrorWithStatusCode{Message: err.Error(), StatusCode: 400}
	}
	return nil
}

// SendActivationEmail delivers the account activation code. Callers treat
// failure as best effort; this method only reports it.
func (m *Mail) SendActivationEmail(user domain.User) error {
	if err := m.IsCorrect(user.Email); err != nil {
		return err
	}

	body := fmt.Sprintf(`
		Hello %s,

		Thanks for registering. To activate your account, follow this link:

		/register/activate?activationCode=%s

		If you did not request this, please ignore this email.
	`, user.Username, user.ActivationCode)

	return m.Send(user.Email, "Please activate your account", body)
}

func (m *Mail) Send(recipientEmail, subject, body string) error {
	msg := m.buildMessage(recipientEmail, subject, body)
	address := fmt.Sprintf("%s:%d", m.config.SMTPServer, m.config.SMTPPort)

	// Port 465 = implicit TLS, otherwise STARTTLS
	if m.config.SMTPPort == 465 {
		return m.sendImplicitTLS(address, recipientEmail, msg)
	}
	return m.sendSTARTTLS(address, recipientEmail, msg)
}

func (m *Mail) timeout() time.Duration {
	timeout := time.Duration(m.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return timeout
}

// sendImplicitTLS sends email over a connection that is TLS from the start (port 465).
func (m *Mail) sendImplicitTLS(address, recipientEmail string, msg []byte) error {
	tlsConfig := &tls.Config{ServerName: m.config.SMTPServer}

	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: m.timeout()}, "tcp", address, tlsConfig)
	if err != nil {
		logger.Log.Error("failed to connect to SMTP server (implicit TLS)", "address", address, "error", err)
		return err
	}
	defer conn.Close()

	return m.sendOverConn(conn, recipientEmail, msg)
}

// sendSTARTTLS sends email by upgrading a plain connection to TLS (port 587).
func (m *Mail) sendSTARTTLS(address, recipientEmail string, msg []byte) error {
	conn, err := net.DialTimeout("tcp", address, m.timeout())
	if err != nil {
		logger.Log.Error("failed to connect to SMTP server", "address", address, "error", err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.config.SMTPServer)
	if err != nil {
		logger.Log.Error("failed to create SMTP client", "error", err)
		return err
	}
	defer client.Close()

	tlsConfig := &tls.Config{ServerName: m.config.SMTPServer}
	if err = client.StartTLS(tlsConfig); err != nil {
		logger.Log.Error("failed to start TLS", "error", err)
		return err
	}

	return m.sendViaClient(client, recipientEmail, msg)
}

// sendOverConn creates an SMTP client from an existing connection and sends the message.
func (m *Mail) sendOverConn(conn net.Conn, recipientEmail string, msg []byte) error {
	client, err := smtp.NewClient(conn, m.config.SMTPServer)
	if err != nil {
		logger.Log.Error("failed to create SMTP client", "error", err)
		return err
	}
	defer client.Close()

	return m.sendViaClient(client, recipientEmail, msg)
}

// sendViaClient performs auth, sets sender/recipient, and sends the message body.
func (m *Mail) sendViaClient(client *smtp.Client, recipientEmail string, msg []byte) error {
	if err := client.Auth(m.auth); err != nil {
		logger.Log.Error("SMTP authentication failed", "error", err)
		return err
	}

	if err := client.Mail(m.config.Username); err != nil {
		logger.Log.Error("failed to set sender", "error", err)
		return err
	}

	if err := client.Rcpt(recipientEmail); err != nil {
		logger.Log.Error("failed to set recipient", "recipient", recipientEmail, "error", err)
		return err
	}

	w, err := client.Data()
	if err != nil {
		logger.Log.Error("failed to get data writer", "error", err)
		return err
	}

	if _, err = w.Write(msg); err != nil {
		logger.Log.Error("failed to write message", "error", err)
		return err
	}

	if err = w.Close(); err != nil {
		logger.Log.Error("failed to close data writer", "error", err)
		return err
	}

	return client.Quit()
}

func generateMessageID(domain string) string {
	t := time.Now().UnixNano()
	pid := rand.Int63()
	return fmt.Sprintf("<%d.%d@%s>", t, pid, domain)
}

func (m *Mail) buildMessage(recipient, subject, body string) []byte {
	encodedSubject := mime.QEncoding.Encode("utf-8", subject)
	encodedSenderName := mime.QEncoding.Encode("utf-8", m.config.SenderName)

	msgID := generateMessageID(m.config.SMTPServer)
	date := time.Now().Format(time.RFC1123Z)

	return fmt.Appendf(nil,
		"Message-ID: %s\r\n"+
			"Date: %s\r\n"+
			"To: %s\r\n"+
			"From: %s <%s>\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/plain; charset=\"utf-8\"\r\n"+
			"\r\n"+
			"%s",
		msgID, date, recipient, encodedSenderName, m.config.Username, encodedSubject, body,
	)
}
