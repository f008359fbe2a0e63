package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"inboxsweep/internal/access"
	"inboxsweep/internal/classify"
	"inboxsweep/internal/config"
	"inboxsweep/internal/gmail"
	"inboxsweep/internal/kv"
	"inboxsweep/internal/logging"
	"inboxsweep/internal/model"
	"inboxsweep/internal/scan"
	"inboxsweep/internal/source"
	"inboxsweep/internal/store"
	"inboxsweep/internal/token"
	"inboxsweep/internal/unsubscribe"
)

// lastScanKey holds the most recent scan envelope so later commands can act
// on its groups.
const lastScanKey = "last_scan"

// app holds the services shared by every command.
type app struct {
	cfg    *config.Config
	log    *logrus.Logger
	db     *store.SQLiteStore
	kv     kv.Store
	redis  *kv.Redis
	oauth  *oauth2.Config
	tokens *token.StoreProvider
	driver source.Driver
}

func newApp(ctx context.Context, cfgPath string, snapshots []string) (*app, error) {
	cfg, err := config.LoadFromEnv(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &app{cfg: cfg, log: log, db: db}

	switch cfg.Storage.KV {
	case config.KVMemory:
		a.kv = kv.NewMemory()
	case config.KVRedis:
		a.redis = kv.NewRedis(cfg.Storage.RedisAddr, cfg.Storage.RedisPrefix)
		if err := a.redis.Ping(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.kv = a.redis
	default:
		a.kv = db
	}

	opts := []token.Option{token.WithLogger(log)}
	if oc, err := gmail.OAuthConfig(cfg.OAuth.ClientSecretPath); err != nil {
		log.WithError(err).Debug("no oauth client configured, Gmail API disabled")
	} else {
		a.oauth = oc
		opts = append(opts, token.WithOAuthConfig(model.ProviderGmail, oc))
	}
	a.tokens = token.NewStoreProvider(a.kv, opts...)

	if len(snapshots) > 0 {
		a.driver = source.NewReplayDriver(snapshots)
	}
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
}

func (a *app) domOptions() source.DOMOptions {
	return source.DOMOptions{
		SettleDelay: a.cfg.Scan.SettleDelay(),
		Timeout:     a.cfg.Scan.Timeout(),
		Logger:      a.log,
	}
}

func (a *app) gmailService(ctx context.Context, tok *oauth2.Token) (*gmail.Adapter, error) {
	svc, err := gmail.NewService(ctx, a.oauth, tok)
	if err != nil {
		return nil, err
	}
	return gmail.NewAdapter(svc, gmail.Options{
		Query:   a.cfg.Scan.GmailQuery,
		Fanout:  a.cfg.Scan.Fanout,
		Timeout: a.cfg.Scan.Timeout(),
		Logger:  a.log,
	}), nil
}

func (a *app) orchestrator() *scan.Orchestrator {
	factory := scan.Adapters{
		Tokens: a.tokens,
		GmailAPI: func(ctx context.Context, tok *oauth2.Token) (source.Adapter, error) {
			return a.gmailService(ctx, tok)
		},
		Driver: a.driver,
		DOM:    a.domOptions(),
		Logger: a.log,
	}
	backoff := scan.DefaultBackoff
	backoff.Attempts = a.cfg.Scan.Retries
	return scan.New(
		access.NewStoreEntitlements(a.kv, a.log),
		factory,
		scan.WithLogger(a.log),
		scan.WithClassifier(classify.New(a.cfg.Classifier.Rules())),
		scan.WithBackoff(backoff),
		scan.WithPageSize(a.cfg.Scan.PageSize),
	)
}

func (a *app) executor() *unsubscribe.Executor {
	opts := []unsubscribe.Option{
		unsubscribe.WithHTTPClient(&http.Client{Timeout: a.cfg.Unsubscribe.Timeout()}),
		unsubscribe.WithHistory(a.db),
		unsubscribe.WithLogger(a.log),
		unsubscribe.WithUserAgent(a.cfg.Unsubscribe.UserAgent),
	}
	if a.driver != nil {
		opts = append(opts, unsubscribe.WithNative(source.NewGmailDOM(a.driver, a.domOptions())))
	}
	return unsubscribe.NewExecutor(opts...)
}

// mailbox returns the Gmail bulk actions, or nil without a usable token.
func (a *app) mailbox(ctx context.Context) *gmail.Mailbox {
	tok, err := a.tokens.GetToken(ctx, model.ProviderGmail)
	if err != nil || tok == nil {
		return nil
	}
	svc, err := gmail.NewService(ctx, a.oauth, tok)
	if err != nil {
		a.log.WithError(err).Warn("gmail service unavailable")
		return nil
	}
	return gmail.NewMailbox(svc)
}

func (a *app) saveScan(ctx context.Context, res model.ScanResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return a.kv.Set(ctx, lastScanKey, string(b))
}

var errNoScan = errors.New("no saved scan; run `inboxsweep scan` first")

func (a *app) loadScan(ctx context.Context) (model.ScanResult, error) {
	v, ok, err := a.kv.Get(ctx, lastScanKey)
	if err != nil {
		return model.ScanResult{}, err
	}
	if !ok {
		return model.ScanResult{}, errNoScan
	}
	var res model.ScanResult
	if err := json.Unmarshal([]byte(v), &res); err != nil {
		return model.ScanResult{}, fmt.Errorf("decode saved scan: %w", err)
	}
	return res, nil
}
