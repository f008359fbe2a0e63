package unsubscribe

import (
	"net/url"
	"strings"

	"inboxsweep/internal/model"
	"inboxsweep/internal/util"
)

const defaultSubject = "Unsubscribe"

// ComposeLink turns a mailto: target into a provider compose deep link with
// recipient, subject and body pre-filled. The generic provider gets the
// mailto URL back with a subject filled in.
func ComposeLink(p model.Provider, mailto string) string {
	to, subject, body := parseMailto(mailto)
	if to == "" {
		return ""
	}
	q := url.Values{}
	switch p {
	case model.ProviderGmail:
		q.Set("view", "cm")
		q.Set("fs", "1")
		q.Set("to", to)
		q.Set("su", subject)
		if body != "" {
			q.Set("body", body)
		}
		return "https://mail.google.com/mail/?" + q.Encode()
	case model.ProviderOutlook:
		q.Set("to", to)
		q.Set("subject", subject)
		if body != "" {
			q.Set("body", body)
		}
		return "https://outlook.live.com/mail/0/deeplink/compose?" + q.Encode()
	case model.ProviderYahoo:
		q.Set("to", to)
		q.Set("subject", subject)
		if body != "" {
			q.Set("body", body)
		}
		return "https://compose.mail.yahoo.com/?" + q.Encode()
	default:
		q.Set("subject", subject)
		if body != "" {
			q.Set("body", body)
		}
		return "mailto:" + to + "?" + strings.ReplaceAll(q.Encode(), "+", "%20")
	}
}

func parseMailto(raw string) (to, subject, body string) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(strings.ToLower(raw), "mailto:") {
		return "", "", ""
	}
	rest := raw[len("mailto:"):]
	query := ""
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest, query = rest[:i], rest[i+1:]
	}
	to, err := url.PathUnescape(rest)
	if err != nil {
		to = rest
	}
	subject = defaultSubject
	if values, err := url.ParseQuery(query); err == nil {
		for k, v := range values {
			if len(v) == 0 || v[0] == "" {
				continue
			}
			switch strings.ToLower(k) {
			case "subject":
				subject = v[0]
			case "body":
				body = v[0]
			}
		}
	}
	return to, subject, body
}

// ThreadLink returns a deep link to a message in the provider web UI, or ""
// when the provider has none.
func ThreadLink(p model.Provider, id string) string {
	if id == "" {
		return ""
	}
	switch p {
	case model.ProviderGmail:
		return "https://mail.google.com/mail/u/0/#inbox/" + url.PathEscape(id)
	case model.ProviderOutlook:
		return "https://outlook.live.com/mail/0/inbox/id/" + url.PathEscape(id)
	case model.ProviderYahoo:
		return "https://mail.yahoo.com/d/folders/1/messages/" + url.PathEscape(id)
	default:
		return ""
	}
}

// WebsiteDomain returns the bare root domain of the sender, or "" when the
// email has no domain.
func WebsiteDomain(email string) string {
	d := util.DomainOf(email)
	if d == "" {
		return ""
	}
	return util.RootDomain(d)
}
