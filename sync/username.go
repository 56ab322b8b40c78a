package sync

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxUsernameLen = 32

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeUsername strips diacritics, drops everything outside
// [A-Za-z0-9._-] and caps the result at 32 characters.
func normalizeUsername(raw string) string {
	if raw == "" {
		return ""
	}
	if flat, _, err := transform.String(deaccent, raw); err == nil {
		raw = flat
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	u := b.String()
	if len(u) > maxUsernameLen {
		u = u[:maxUsernameLen]
	}
	return u
}

// buildUsername prefers the employee id over the email local part.
func buildUsername(u *DirectoryUser) string {
	if empId := strings.TrimSpace(u.EmployeeId); empId != "" {
		if candidate := normalizeUsername(empId); candidate != "" {
			return candidate
		}
	}
	local := u.Email
	if at := strings.IndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}
	return normalizeUsername(local)
}

var serviceAccountPatterns = []string{
	"-admin",
	"-service",
	"-cluster",
	"-sync",
	"-bot",
	"-svc",
	"system-",
	"service-",
	"noreply",
	"no-reply",
	"automated",
}

// isServiceAccount flags non-human accounts by the naming conventions the
// tenant uses for them.
func isServiceAccount(email, displayName string) bool {
	email = strings.ToLower(email)
	displayName = strings.ToLower(displayName)
	for _, p := range serviceAccountPatterns {
		if strings.Contains(email, p) || strings.Contains(displayName, p) {
			return true
		}
	}
	return false
}
