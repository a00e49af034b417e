package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/shortlink/internal/config"
	"github.com/jon4hz/shortlink/internal/database"
	mail "github.com/xhit/go-simple-mail/v2"
)

// NotificationService sends account emails.
type NotificationService struct {
	config    *config.EmailConfig
	serverURL string
	send      func(to, subject, body string) error
}

// accountMail is the data rendered into the templates.
type accountMail struct {
	Email     string
	ServerURL string
	ExpiresAt string
}

// New creates a new email notification service.
func New(cfg *config.EmailConfig, serverURL string) *NotificationService {
	n := &NotificationService{
		config:    cfg,
		serverURL: serverURL,
	}
	n.send = n.sendEmail
	return n
}

// NotifyWelcome tells a freshly created user about its account.
func (n *NotificationService) NotifyWelcome(ctx context.Context, user *database.User) error {
	data := accountMail{Email: user.Email, ServerURL: n.serverURL}
	if user.VerificationExpires != nil {
		data.ExpiresAt = user.VerificationExpires.Format(time.RFC1123)
	}
	return n.notify(ctx, user.Email, "[Shortlink] Your account is ready", "welcome.html", data)
}

// NotifyBanned tells a user that its account was banned.
func (n *NotificationService) NotifyBanned(ctx context.Context, user *database.User) error {
	return n.notify(ctx, user.Email, "[Shortlink] Your account was suspended", "banned.html", accountMail{Email: user.Email, ServerURL: n.serverURL})
}

func (n *NotificationService) notify(ctx context.Context, to, subject, tmpl string, data accountMail) error {
	if n.config == nil || !n.config.Enabled {
		log.Debug("Email notifications are disabled, skipping notification")
		return nil
	}
	if to == "" {
		log.Warn("User email is empty, skipping notification")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := generateEmailBody(tmpl, data)
	if err != nil {
		return fmt.Errorf("failed to generate email body: %w", err)
	}
	return n.send(to, subject, body)
}

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("").ParseFS(templatesFS, "templates/*.html"))

func generateEmailBody(name string, data accountMail) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sendEmail sends an email using go-simple-mail library.
func (n *NotificationService) sendEmail(to, subject, body string) error {
	server := mail.NewSMTPClient()
	server.Host = n.config.SMTPHost
	server.Port = n.config.SMTPPort
	server.Username = n.config.Username
	server.Password = n.config.Password

	switch {
	case n.config.UseSSL:
		server.Encryption = mail.EncryptionSSLTLS
	case n.config.UseTLS:
		server.Encryption = mail.EncryptionSTARTTLS
	default:
		server.Encryption = mail.EncryptionNone
	}

	if n.config.InsecureSkipVerify {
		server.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	server.KeepAlive = false
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 10 * time.Second

	smtpClient, err := server.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() {
		if closeErr := smtpClient.Close(); closeErr != nil {
			log.Warn("Failed to close SMTP client", "error", closeErr)
		}
	}()

	fromName := n.config.FromName
	if fromName == "" {
		fromName = "Shortlink"
	}

	msg := mail.NewMSG()
	msg.SetFrom(fmt.Sprintf("%s <%s>", fromName, n.config.FromEmail))
	msg.AddTo(to)
	msg.SetSubject(subject)
	msg.SetBody(mail.TextHTML, body)

	if err := msg.Send(smtpClient); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Info("Email notification sent", "to", to, "subject", subject)
	return nil
}
