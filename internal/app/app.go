package app

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/five82/marquee/internal/api"
	"github.com/five82/marquee/internal/apperr"
	"github.com/five82/marquee/internal/auth"
	"github.com/five82/marquee/internal/cache"
	"github.com/five82/marquee/internal/config"
	"github.com/five82/marquee/internal/logging"
	"github.com/five82/marquee/internal/mutation"
	"github.com/five82/marquee/internal/notify"
	"github.com/five82/marquee/internal/prefs"
	"github.com/five82/marquee/internal/query"
	"github.com/five82/marquee/internal/state"
	"github.com/five82/marquee/internal/ui"
)

// Options configure the Marquee application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/marquee/prefs.toml
	PollEvery  int    // seconds; zero uses default
	APIURL     string // overrides the configured backend
	LogLevel   string // overrides the configured level
}

// Run boots the Marquee TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load marquee config: %w", err)
	}
	if opts.APIURL != "" {
		cfg.APIURL = opts.APIURL
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	logger, logFile, err := logging.Open(cfg.LogPath(), logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		return err
	}
	defer logFile.Close()
	slog.SetDefault(logger)

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	userPrefs, err := prefs.Load(prefsPath)
	if err != nil {
		logger.Warn("prefs unreadable, using defaults", "path", prefsPath, "error", err)
	}

	c, err := wire(cfg, logger)
	if err != nil {
		return err
	}
	defer c.store.Dispose()

	interval := defaultPollInterval
	if opts.PollEvery > 0 {
		interval = time.Duration(opts.PollEvery) * time.Second
	}
	syncer := &Syncer{
		Cache: c.store,
		Probe: func(ctx context.Context) error {
			_, err := c.query.RefreshSettings(ctx)
			return err
		},
		State:    c.sync,
		Interval: interval,
		Logger:   logger,
	}
	syncer.Start(ctx)

	logger.Info("marquee started", "api", cfg.APIURL, "signed_in", c.account.IsAuthenticated())

	return ui.Run(ui.Options{
		Context:   ctx,
		Query:     c.query,
		Mutations: c.mutations,
		Account:   c.account,
		Reporter:  c.reporter,
		Notices:   c.notices,
		Sync:      c.sync,
		Prefs:     userPrefs,
		PrefsPath: prefsPath,
		LogPath:   cfg.LogPath(),
		PosterURL: c.client.PosterURL,
		Logger:    logger,
	})
}

// components are the long-lived services shared by the UI and the syncer.
type components struct {
	client    *api.Client
	store     *cache.Store
	query     *query.Client
	account   *auth.Manager
	notices   *notify.Queue
	reporter  *apperr.Handler
	mutations *mutation.Engine
	sync      *state.Store
}

// wire builds every service from cfg. The cache janitor is running when it
// returns; callers dispose the store.
func wire(cfg config.Config, logger *slog.Logger) (*components, error) {
	c := &components{}

	client, err := api.NewClient(cfg.APIURL,
		api.WithTokenSource(api.TokenFunc(func() string { return c.account.Token() })),
		api.WithRateLimit(cfg.RequestsPerSecond, max(int(cfg.RequestsPerSecond), 1)),
	)
	if err != nil {
		return nil, fmt.Errorf("init api client: %w", err)
	}
	c.client = client
	svc := api.NewService(client)

	stale := query.DefaultStale()
	maps.Copy(stale, cfg.Stale)
	c.store = cache.NewStore(cache.Options{
		Stale:     stale,
		Retention: cfg.CacheRetention,
		Logger:    logger,
	})
	c.store.Init()

	c.query = query.New(c.store, svc, query.WithLogger(logger))
	c.notices = notify.NewQueue(0)
	c.account = auth.NewManager(cfg.CredentialsPath, svc, auth.WithLogger(logger))
	c.reporter = apperr.NewHandler(c.notices, func() {
		if err := c.account.Logout(); err != nil {
			logger.Warn("logout after auth failure", "error", err)
		}
	}, logger)
	c.account.OnLogout(func() {
		n := c.query.ClearUserData()
		logger.Debug("cleared user data", "entries", n)
	})

	c.mutations = mutation.New(mutation.Options{
		Store:    c.store,
		Backend:  svc,
		Session:  c.account,
		Notifier: c.notices,
		Reporter: c.reporter,
		Logger:   logger,
		Observer: func(t mutation.Transition) {
			logger.Debug("mutation", "resource", t.Resource, "from", t.From, "to", t.To)
		},
	})
	c.sync = state.NewStore(nil)
	return c, nil
}
