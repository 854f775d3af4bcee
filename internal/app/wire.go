package app

import (
	"context"
	"io"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tdh8316/handlecheck/internal/config"
	"github.com/tdh8316/handlecheck/internal/data"
	"github.com/tdh8316/handlecheck/internal/httpx"
	"github.com/tdh8316/handlecheck/internal/probe"
	"github.com/tdh8316/handlecheck/internal/resolve"
	"github.com/tdh8316/handlecheck/internal/session"
)

// Deps is everything a command needs, built once from the config.
type Deps struct {
	Config   *config.Config
	Logger   *logrus.Logger
	Site     data.SiteData
	Client   *resty.Client
	Store    session.Store
	Resolver *resolve.Resolver

	closers []io.Closer
}

func (d *Deps) Close() error {
	var first error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build wires the resolver stack described by cfg.
func Build(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Deps, error) {
	d := &Deps{Config: cfg, Logger: logger}

	site, err := data.LoadSite(cfg.Site.Database, cfg.SiteName())
	if err != nil {
		return nil, errors.Wrap(err, "load site database")
	}
	d.Site = site

	d.Client, err = httpx.NewClient(cfg.ClientConfig())
	if err != nil {
		return nil, errors.Wrap(err, "http client")
	}

	fast, err := probe.NewFast(d.Client, site, probe.FastConfig{
		Policy:       cfg.Policy(),
		MaxBodyBytes: cfg.MaxBodyBytes(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "fast probe")
	}

	source, err := newDeepSource(cfg, d.Client, site)
	if err != nil {
		return nil, errors.Wrap(err, "deep probe")
	}
	var deep resolve.DeepProber
	if source != nil {
		deep = probe.NewDeep(source, cfg.Policy())
	}

	d.Store, err = d.openStore(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "session store")
	}

	d.Resolver, err = resolve.New(fast, deep, resolve.Config{
		Concurrency: cfg.Resolve.Concurrency,
		Pacing:      cfg.Pacing(),
		RegexCheck:  site.RegexCheck,
		APIKey:      cfg.Deep.RapidAPIKey,
		Store:       d.Store,
		Logger:      logger,
	})
	if err != nil {
		_ = d.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"site":        cfg.SiteName(),
		"deep":        cfg.DeepBackend(),
		"store":       cfg.SessionStore(),
		"concurrency": cfg.Resolve.Concurrency,
	}).Debug("resolver ready")
	return d, nil
}

// newDeepSource returns nil when the deep lookup is disabled.
func newDeepSource(cfg *config.Config, client *resty.Client, site data.SiteData) (probe.Source, error) {
	switch cfg.DeepBackend() {
	case "none":
		return nil, nil
	case "rapidapi":
		return probe.NewRapidAPI(client, valueOr(cfg.Deep.URL, probe.DefaultRapidAPIURL))
	case "graphql":
		return probe.NewGraphQL(client, site), nil
	case "webprofile":
		return probe.NewWebProfile(client,
			valueOr(cfg.Deep.URL, probe.DefaultWebProfileURL),
			valueOr(cfg.Deep.AppID, probe.DefaultWebAppID),
		), nil
	}
	return nil, errors.Errorf("unknown deep backend %q", cfg.Deep.Backend)
}

func (d *Deps) openStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.SessionStore() {
	case "none":
		return session.NopStore{}, nil
	case "env":
		return session.NewEnvStore(), nil
	case "file":
		return session.NewFileStore(cfg.Session.Path), nil
	case "sqlite":
		path := cfg.Session.Path
		if strings.HasSuffix(path, ".json") {
			path = strings.TrimSuffix(path, ".json") + ".db"
		}
		s, err := session.OpenSQLiteStore(ctx, path)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, s)
		return s, nil
	}
	return nil, errors.Errorf("unknown session store %q", cfg.Session.Store)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
