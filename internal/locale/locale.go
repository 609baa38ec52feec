// Package locale picks the language for user-facing generic messages and
// notification emails. Only the short fixed strings the security layer
// itself emits live here; page content is localized elsewhere.
package locale

import (
	"golang.org/x/text/language"
)

// Supported locales, in preference order. The first is the fallback.
var supported = []language.Tag{
	language.English,
	language.German,
}

var matcher = language.NewMatcher(supported)

// Default is the fallback locale.
const Default = "en"

// Message keys.
const (
	Unauthorized   = "unauthorized"
	Forbidden      = "forbidden"
	RateLimited    = "rate_limited"
	InvalidLink    = "invalid_link"
	ResetRequested = "reset_requested"
	Internal       = "internal"
)

var messages = map[string]map[string]string{
	"en": {
		Unauthorized:   "Authentication required",
		Forbidden:      "You do not have permission to do that",
		RateLimited:    "Too many requests, please try again later",
		InvalidLink:    "This link is invalid or has expired",
		ResetRequested: "If an account with that email exists, a reset link has been sent",
		Internal:       "An unexpected error occurred",
	},
	"de": {
		Unauthorized:   "Anmeldung erforderlich",
		Forbidden:      "Dazu fehlt Ihnen die Berechtigung",
		RateLimited:    "Zu viele Anfragen, bitte versuchen Sie es später erneut",
		InvalidLink:    "Dieser Link ist ungültig oder abgelaufen",
		ResetRequested: "Falls ein Konto mit dieser E-Mail-Adresse existiert, wurde ein Link zum Zurücksetzen gesendet",
		Internal:       "Ein unerwarteter Fehler ist aufgetreten",
	},
}

// Negotiate returns the best supported locale for the given preferences,
// tried in order. Each preference may be a bare tag ("de") or a full
// Accept-Language header value.
func Negotiate(prefs ...string) string {
	for _, p := range prefs {
		if p == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(p)
		if err != nil || len(tags) == 0 {
			continue
		}
		_, idx, conf := matcher.Match(tags...)
		if conf == language.No {
			continue
		}
		return base(supported[idx])
	}
	return Default
}

// Message returns the text for key in loc, falling back to English.
func Message(loc, key string) string {
	if m, ok := messages[loc]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	return messages[Default][key]
}

func base(t language.Tag) string {
	b, _ := t.Base()
	return b.String()
}
