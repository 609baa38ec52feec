package smtp

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/keyxmakerx/minutes/internal/locale"
	"github.com/keyxmakerx/minutes/internal/plugins/auth"
)

// Link paths on the web client that redeem single-use tokens.
const (
	resetPath  = "/reset-password"
	verifyPath = "/verify-email"
)

// emailText is one localized subject and body. The body is a format
// string taking the username, the link and the link lifetime.
type emailText struct {
	subject string
	body    string
}

var resetEmails = map[string]emailText{
	"en": {
		subject: "Reset your Minutes password",
		body: `Hello %s,

someone asked to reset the password for your Minutes account.
Open the link below to choose a new password:

%s

The link can be used once and expires in %s.
If you did not ask for this, you can ignore this email.
`,
	},
	"de": {
		subject: "Minutes-Passwort zurücksetzen",
		body: `Hallo %s,

für Ihr Minutes-Konto wurde das Zurücksetzen des Passworts angefordert.
Öffnen Sie den folgenden Link, um ein neues Passwort festzulegen:

%s

Der Link kann einmal verwendet werden und läuft in %s ab.
Falls Sie dies nicht angefordert haben, können Sie diese E-Mail ignorieren.
`,
	},
}

var verifyEmails = map[string]emailText{
	"en": {
		subject: "Confirm your email address",
		body: `Hello %s,

please confirm the email address of your Minutes account:

%s

The link can be used once and expires in %s.
`,
	},
	"de": {
		subject: "Bestätigen Sie Ihre E-Mail-Adresse",
		body: `Hallo %s,

bitte bestätigen Sie die E-Mail-Adresse Ihres Minutes-Kontos:

%s

Der Link kann einmal verwendet werden und läuft in %s ab.
`,
	},
}

var lifetimes = map[string]map[string]string{
	"en": {resetPath: "1 hour", verifyPath: "24 hours"},
	"de": {resetPath: "1 Stunde", verifyPath: "24 Stunden"},
}

// Notifier sends the emails carrying raw single-use tokens. It implements
// auth.Notifier.
type Notifier struct {
	mail    MailService
	baseURL string
}

// NewNotifier creates a Notifier whose links point at baseURL.
func NewNotifier(mail MailService, baseURL string) *Notifier {
	return &Notifier{mail: mail, baseURL: strings.TrimRight(baseURL, "/")}
}

// SendPasswordResetEmail implements auth.Notifier.
func (n *Notifier) SendPasswordResetEmail(ctx context.Context, user *auth.User, rawToken, loc string) error {
	return n.send(ctx, user, rawToken, loc, resetPath, resetEmails)
}

// SendVerificationEmail implements auth.Notifier.
func (n *Notifier) SendVerificationEmail(ctx context.Context, user *auth.User, rawToken, loc string) error {
	return n.send(ctx, user, rawToken, loc, verifyPath, verifyEmails)
}

func (n *Notifier) send(ctx context.Context, user *auth.User, rawToken, loc, path string, texts map[string]emailText) error {
	loc = locale.Negotiate(loc)
	text, ok := texts[loc]
	if !ok {
		text = texts[locale.Default]
	}
	lifetime := lifetimes[loc][path]
	if lifetime == "" {
		lifetime = lifetimes[locale.Default][path]
	}

	body := fmt.Sprintf(text.body, user.Username, n.link(path, rawToken), lifetime)
	return n.mail.SendMail(ctx, []string{user.Email}, text.subject, body)
}

// link builds the redemption URL for rawToken.
func (n *Notifier) link(path, rawToken string) string {
	return n.baseURL + path + "?token=" + url.QueryEscape(rawToken)
}
