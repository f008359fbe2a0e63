package util

import (
	"net/mail"
	"regexp"
	"strings"

	"inboxsweep/internal/model"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// genericDomains are consumer mailbox domains that never identify a company.
var genericDomains = map[string]bool{
	"gmail.com":      true,
	"yahoo.com":      true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"icloud.com":     true,
	"aol.com":        true,
	"protonmail.com": true,
}

// NormalizeEmail lowercases and trims an address. Empty input and the
// unresolved sentinel both normalize to the sentinel.
func NormalizeEmail(email string) string {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return model.UnknownEmail
	}
	return e
}

// IsUnresolved reports whether email is missing, the sentinel, or has no
// usable local part and domain.
func IsUnresolved(email string) bool {
	e := NormalizeEmail(email)
	if e == model.UnknownEmail {
		return true
	}
	at := strings.LastIndexByte(e, '@')
	return at <= 0 || at == len(e)-1
}

// ParseFrom splits an RFC 5322 From value like `"Name" <User@Example.COM>` into
// a display name and a normalized address.
// - Falls back to the first valid entry when the header is a list
// - Falls back to a free-text scan when the header does not parse
// - Returns the sentinels when nothing resolves
func ParseFrom(fromHeader string) (name, email string) {
	fromHeader = strings.TrimSpace(fromHeader)
	if fromHeader == "" {
		return model.UnknownName, model.UnknownEmail
	}
	addr, err := mail.ParseAddress(fromHeader)
	if err != nil || addr == nil {
		// Some headers may be a list; try a crude fallback by splitting on comma.
		for _, p := range strings.Split(fromHeader, ",") {
			a, e := mail.ParseAddress(strings.TrimSpace(p))
			if e == nil && a != nil {
				addr = a
				break
			}
		}
	}
	if addr == nil {
		if found := ExtractEmail(fromHeader); found != "" {
			email = NormalizeEmail(found)
			name = strings.TrimSpace(strings.Trim(strings.Split(fromHeader, "<")[0], `"' `))
			if name == "" || strings.Contains(name, "@") {
				name = LocalPartName(email)
			}
			return name, email
		}
		return strings.Trim(fromHeader, `"' `), model.UnknownEmail
	}

	email = NormalizeEmail(addr.Address)
	name = strings.TrimSpace(addr.Name)
	if name == "" {
		name = LocalPartName(email)
	}
	return name, email
}

// ExtractEmail returns the first address-looking substring of text, or "".
func ExtractEmail(text string) string {
	return emailPattern.FindString(text)
}

// LocalPartName turns "jane.doe@x.com" into "Jane Doe".
func LocalPartName(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return model.UnknownName
	}
	parts := strings.FieldsFunc(email[:at], func(r rune) bool { return r == '.' || r == '_' || r == '-' })
	for i := range parts {
		parts[i] = Capitalize(parts[i])
	}
	if len(parts) == 0 {
		return model.UnknownName
	}
	return strings.Join(parts, " ")
}

// DomainOf returns the lowercased domain of an address, or "" if unresolved.
func DomainOf(email string) string {
	if IsUnresolved(email) {
		return ""
	}
	e := NormalizeEmail(email)
	at := strings.LastIndexByte(e, '@')
	if at < 0 || at == len(e)-1 {
		return ""
	}
	return e[at+1:]
}

// RootDomain keeps the last two dot-separated labels: send.vendor.com -> vendor.com.
func RootDomain(domain string) string {
	domain = strings.Trim(strings.ToLower(domain), ".")
	labels := strings.Split(domain, ".")
	if len(labels) <= 2 {
		return domain
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// IsGenericDomain reports whether domain is a consumer mailbox domain.
func IsGenericDomain(domain string) bool {
	return genericDomains[strings.ToLower(domain)]
}

// Capitalize upper-cases the first letter of s.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseListUnsubscribe splits a List-Unsubscribe header value such as
// `<mailto:unsub@example.com>, <https://example.com/unsub>` and returns the
// first http(s) target and the first mailto target. The one-click flag comes
// from List-Unsubscribe-Post. Returns nil when neither target exists.
func ParseListUnsubscribe(header, postHeader string) *model.StructuredUnsubscribe {
	var u model.StructuredUnsubscribe
	for _, p := range strings.Split(header, ",") {
		p = strings.TrimSpace(strings.Trim(strings.TrimSpace(p), "<>"))
		lower := strings.ToLower(p)
		switch {
		case u.URL == "" && (strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")):
			u.URL = p
		case u.Mailto == "" && strings.HasPrefix(lower, "mailto:"):
			u.Mailto = p
		}
	}
	if u.URL == "" && u.Mailto == "" {
		return nil
	}
	u.OneClick = u.URL != "" && strings.Contains(strings.ToLower(postHeader), "list-unsubscribe=one-click")
	return &u
}
