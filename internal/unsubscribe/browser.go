package unsubscribe

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

var startCommand = func(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// OpenLink opens a manual-action link in the user's default browser or mail
// client. Only http, https and mailto links are accepted; a bare domain is
// opened over https.
func OpenLink(link string) error {
	link = strings.TrimSpace(link)
	if isBareDomain(link) {
		link = "https://" + link
	}
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("parse link: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto":
	default:
		return fmt.Errorf("refusing to open %q link", u.Scheme)
	}

	switch runtime.GOOS {
	case "darwin":
		return startCommand("open", link)
	case "linux":
		return startCommand("xdg-open", link)
	case "windows":
		return startCommand("rundll32", "url.dll,FileProtocolHandler", link)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
}

func isBareDomain(s string) bool {
	return s != "" && strings.Contains(s, ".") && !strings.ContainsAny(s, ":/?# ")
}
