package scan

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"inboxsweep/internal/logging"
	"inboxsweep/internal/model"
	"inboxsweep/internal/source"
	"inboxsweep/internal/token"
)

// AdapterFactory picks the source adapter for a scan request.
type AdapterFactory interface {
	Adapter(ctx context.Context, req Request) (source.Adapter, error)
}

// Adapters is the default AdapterFactory.
//   - canned input: replayed as is
//   - Gmail with a token: the Gmail API
//   - Gmail without a token: the Gmail web UI through Driver
//   - Outlook and Yahoo: their web UI through Driver
type Adapters struct {
	Tokens   token.Provider
	GmailAPI func(ctx context.Context, tok *oauth2.Token) (source.Adapter, error)
	Driver   source.Driver
	DOM      source.DOMOptions
	Logger   logrus.FieldLogger
}

func (f Adapters) Adapter(ctx context.Context, req Request) (source.Adapter, error) {
	log := f.Logger
	if log == nil {
		log = logging.Discard()
	}
	if len(req.Input) > 0 || req.Provider == model.ProviderGeneric {
		return source.NewSliceAdapter(req.Provider, req.Input), nil
	}

	switch req.Provider {
	case model.ProviderGmail:
		if f.Tokens != nil && f.GmailAPI != nil {
			tok, err := f.Tokens.GetToken(ctx, req.Provider)
			if err != nil {
				log.WithError(err).Warn("token lookup failed, falling back to web UI")
			}
			if tok != nil {
				return f.GmailAPI(ctx, tok)
			}
		}
		if f.Driver != nil {
			return source.NewGmailDOM(f.Driver, f.DOM), nil
		}
	case model.ProviderOutlook, model.ProviderYahoo:
		if f.Driver != nil {
			return source.NewOutlookDOM(f.Driver, req.Provider, f.DOM), nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidRequest, req.Provider)
	}
	return nil, fmt.Errorf("%w: no token or browser driver for %s", source.ErrAdapterUnavailable, req.Provider)
}
