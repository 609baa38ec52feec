package smtp

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	gosmtp "net/smtp"
	"strings"
	"time"

	"github.com/keyxmakerx/minutes/internal/apperror"
)

// dialTimeout bounds connection setup to the mail server.
const dialTimeout = 10 * time.Second

// PasswordCipher encrypts the stored SMTP password. Implemented by
// crypt.Cipher.
type PasswordCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
}

// MailService is the interface other plugins use to send email.
type MailService interface {
	SendMail(ctx context.Context, to []string, subject, body string) error
	IsConfigured(ctx context.Context) bool
}

// SMTPService extends MailService with admin settings management.
type SMTPService interface {
	MailService

	// GetSettings returns the SMTP configuration (password redacted).
	GetSettings(ctx context.Context) (*SMTPSettings, error)

	// UpdateSettings saves new SMTP settings. Empty password keeps existing.
	UpdateSettings(ctx context.Context, req UpdateSMTPRequest) (*SMTPSettings, error)

	// TestConnection verifies SMTP connectivity with current settings.
	TestConnection(ctx context.Context) error
}

// transport delivers a fully built message. Replaced in tests.
type transport func(ctx context.Context, row *smtpRow, password, from string, to []string, msg []byte) error

// smtpService implements SMTPService.
type smtpService struct {
	repo    SMTPRepository
	cipher  PasswordCipher
	deliver transport
	now     func() time.Time
}

// NewSMTPService creates a new SMTP service.
func NewSMTPService(repo SMTPRepository, cipher PasswordCipher) SMTPService {
	return &smtpService{
		repo:    repo,
		cipher:  cipher,
		deliver: deliver,
		now:     time.Now,
	}
}

// --- MailService (cross-plugin interface) ---

// IsConfigured returns true if SMTP is enabled and has a host configured.
func (s *smtpService) IsConfigured(ctx context.Context) bool {
	row, err := s.repo.Get(ctx)
	if err != nil {
		return false
	}
	return row.Enabled && row.Host != ""
}

// SendMail sends an email using the stored SMTP settings. Decrypts the
// password at send time -- never caches plaintext credentials.
func (s *smtpService) SendMail(ctx context.Context, to []string, subject, body string) error {
	row, err := s.repo.Get(ctx)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("loading smtp settings: %w", err))
	}
	if !row.Enabled || row.Host == "" {
		return apperror.NewBadRequest("SMTP is not configured")
	}

	recipients := make([]string, 0, len(to))
	for _, addr := range to {
		parsed, err := mail.ParseAddress(addr)
		if err != nil {
			return apperror.NewBadRequest(fmt.Sprintf("invalid recipient %q", addr))
		}
		recipients = append(recipients, parsed.Address)
	}
	if len(recipients) == 0 {
		return apperror.NewBadRequest("no recipients")
	}
	if strings.ContainsAny(subject, "\r\n") {
		return apperror.NewBadRequest("subject must be a single line")
	}

	password, err := s.password(row)
	if err != nil {
		return err
	}

	from := mail.Address{Name: row.FromName, Address: row.FromAddress}
	msg := buildMessage(from, recipients, subject, body, s.now())

	if err := s.deliver(ctx, row, password, from.Address, recipients, msg); err != nil {
		return fmt.Errorf("sending mail via %s: %w", row.Host, err)
	}
	return nil
}

// password decrypts the stored SMTP password, "" when none is set.
func (s *smtpService) password(row *smtpRow) (string, error) {
	if !row.PasswordEncrypted.Valid || row.PasswordEncrypted.String == "" {
		return "", nil
	}
	plaintext, err := s.cipher.Decrypt(row.PasswordEncrypted.String)
	if err != nil {
		return "", fmt.Errorf("decrypting smtp password: %w", err)
	}
	return plaintext, nil
}

// buildMessage renders an RFC 5322 plain-text message.
func buildMessage(from mail.Address, to []string, subject, body string, now time.Time) []byte {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from.String())
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", now.UTC().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(msg.String())
}

// deliver sends msg according to the row's encryption mode.
func deliver(ctx context.Context, row *smtpRow, password, from string, to []string, msg []byte) error {
	client, err := connect(ctx, row, password)
	if err != nil {
		return err
	}
	defer client.Close()
	return sendMessage(client, from, to, msg)
}

// connect dials the server, negotiates TLS as configured and
// authenticates when a username is set.
func connect(ctx context.Context, row *smtpRow, password string) (*gosmtp.Client, error) {
	addr := net.JoinHostPort(row.Host, fmt.Sprint(row.Port))
	tlsConfig := &tls.Config{ServerName: row.Host, MinVersion: tls.VersionTLS12}
	dialer := &net.Dialer{Timeout: dialTimeout}

	var conn net.Conn
	var err error
	if row.Encryption == EncryptionSSL {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	client, err := gosmtp.NewClient(conn, row.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}

	if row.Encryption == EncryptionStartTLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("starting TLS: %w", err)
		}
	}

	if row.Username != "" {
		// PlainAuth refuses to send credentials over an unencrypted
		// connection to a non-local host.
		auth := gosmtp.PlainAuth("", row.Username, password, row.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("authenticating: %w", err)
		}
	}

	return client, nil
}

// sendMessage handles MAIL FROM, RCPT TO, DATA for an existing SMTP client.
func sendMessage(client *gosmtp.Client, from string, to []string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, recipient := range to {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", recipient, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data: %w", err)
	}
	return client.Quit()
}

// --- SMTPService (admin management) ---

// GetSettings returns SMTP settings with the password redacted.
func (s *smtpService) GetSettings(ctx context.Context) (*SMTPSettings, error) {
	row, err := s.repo.Get(ctx)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("loading smtp settings: %w", err))
	}
	return row.toSettings(), nil
}

// UpdateSettings saves SMTP settings. If the password field is empty,
// the existing encrypted password is preserved.
func (s *smtpService) UpdateSettings(ctx context.Context, req UpdateSMTPRequest) (*SMTPSettings, error) {
	current, err := s.repo.Get(ctx)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("loading current smtp settings: %w", err))
	}

	row := &smtpRow{
		Host:        strings.TrimSpace(req.Host),
		Port:        req.Port,
		Username:    strings.TrimSpace(req.Username),
		FromAddress: strings.TrimSpace(req.FromAddress),
		FromName:    strings.TrimSpace(req.FromName),
		Encryption:  req.Encryption,
		Enabled:     req.Enabled,
	}

	if row.Port <= 0 {
		row.Port = 587
	}
	if row.Port > 65535 {
		return nil, apperror.NewValidation("port must be between 1 and 65535")
	}
	if row.FromName == "" {
		row.FromName = "Minutes"
	}
	switch row.Encryption {
	case "":
		row.Encryption = EncryptionStartTLS
	case EncryptionStartTLS, EncryptionSSL, EncryptionNone:
	default:
		return nil, apperror.NewValidation("encryption must be starttls, ssl or none")
	}
	if row.FromAddress != "" {
		if _, err := mail.ParseAddress(row.FromAddress); err != nil {
			return nil, apperror.NewValidation("from address is invalid")
		}
	}
	if row.Enabled && (row.Host == "" || row.FromAddress == "") {
		return nil, apperror.NewValidation("host and from address are required to enable email")
	}

	if req.Password != "" {
		envelope, err := s.cipher.Encrypt(req.Password)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("encrypting smtp password: %w", err))
		}
		row.PasswordEncrypted = sql.NullString{String: envelope, Valid: true}
	} else {
		row.PasswordEncrypted = current.PasswordEncrypted
	}

	if err := s.repo.Upsert(ctx, row); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("saving smtp settings: %w", err))
	}

	slog.Info("smtp settings updated",
		slog.String("host", row.Host),
		slog.Int("port", row.Port),
		slog.Bool("enabled", row.Enabled),
	)
	return row.toSettings(), nil
}

// TestConnection verifies SMTP connectivity by connecting, negotiating TLS
// and authenticating with the stored settings.
func (s *smtpService) TestConnection(ctx context.Context) error {
	row, err := s.repo.Get(ctx)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("loading smtp settings: %w", err))
	}
	if row.Host == "" {
		return apperror.NewBadRequest("SMTP host is not configured")
	}

	password, err := s.password(row)
	if err != nil {
		return apperror.NewInternal(err)
	}

	client, err := connect(ctx, row, password)
	if err != nil {
		return apperror.NewBadRequest(fmt.Sprintf("connection test failed: %v", err))
	}
	defer client.Close()
	return client.Quit()
}
