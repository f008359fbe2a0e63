package gmail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Scopes requested at consent: read metadata, and modify for trash.
var Scopes = []string{gmailv1.GmailReadonlyScope, gmailv1.GmailModifyScope}

// OAuthConfig reads a Google "installed app" client secret file.
func OAuthConfig(credPath string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials at %s: %w", credPath, err)
	}
	cfg, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse oauth config: %w", err)
	}
	return cfg, nil
}

// NewService builds a Gmail client authorized by tok. cfg may be nil, in
// which case tok is used as is and never refreshed.
func NewService(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token, opts ...option.ClientOption) (*gmailv1.Service, error) {
	var client *http.Client
	if cfg != nil {
		client = cfg.Client(ctx, tok)
	} else {
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))
	}
	svc, err := gmailv1.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return svc, nil
}

// Authorize runs the consent flow. A loopback server on 127.0.0.1 captures
// the redirect; if none arrives within loopbackWait the code (or the full
// redirect URL) is read from in. Prompts go to out.
func Authorize(ctx context.Context, cfg *oauth2.Config, in io.Reader, out io.Writer, loopbackWait time.Duration) (*oauth2.Token, error) {
	conf := *cfg

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err == nil {
		conf.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/", ln.Addr().(*net.TCPAddr).Port)
		codeCh := make(chan string, 1)

		mux := http.NewServeMux()
		srv := &http.Server{ReadHeaderTimeout: 5 * time.Second, Handler: mux}
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
				return
			}
			fmt.Fprintln(w, "Authentication complete. You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		})
		go func() { _ = srv.Serve(ln) }()
		defer srv.Shutdown(context.Background())

		fmt.Fprintln(out, "Open this URL in your browser to authorize inboxsweep:")
		fmt.Fprintln(out, conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce))
		fmt.Fprintf(out, "Waiting for redirect on %s …\n", conf.RedirectURL)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case code := <-codeCh:
			return exchange(ctx, &conf, code)
		case <-time.After(loopbackWait):
			fmt.Fprintln(out, "Timeout waiting for redirect; falling back to manual paste.")
		}
	}

	conf.RedirectURL = cfg.RedirectURL
	fmt.Fprintln(out, "Open this URL in your browser to authorize inboxsweep:")
	fmt.Fprintln(out, conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce))
	fmt.Fprintln(out, "Paste the AUTH CODE itself or the FULL redirect URL here, then press Enter.")
	fmt.Fprint(out, "> ")

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read auth code: %w", err)
		}
		return nil, errors.New("empty authorization code")
	}
	code, err := codeFromInput(sc.Text())
	if err != nil {
		return nil, err
	}
	return exchange(ctx, &conf, code)
}

// codeFromInput accepts either a bare code or a redirect URL carrying one.
func codeFromInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	c := u.Query().Get("code")
	if c == "" {
		return "", errors.New("no 'code' parameter found in pasted URL")
	}
	return c, nil
}

func exchange(ctx context.Context, cfg *oauth2.Config, code string) (*oauth2.Token, error) {
	tok, err := cfg.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	return tok, nil
}
