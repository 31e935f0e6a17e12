// Package app wires configuration, logging, storage, the verification
// pipeline and the scheduler into one runnable daemon.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"announced/internal/config"
	"announced/internal/directory"
	"announced/internal/dispatch"
	"announced/internal/eventbus"
	"announced/internal/feed"
	"announced/internal/netcheck"
	"announced/internal/notifier"
	"announced/internal/scheduler"
	"announced/internal/settings"
	"announced/internal/transport/telegram"
	"announced/internal/trust"
	logx "announced/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	bus    eventbus.Bus
	store  settings.Store
	engine *dispatch.Engine
	sched  *scheduler.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(validateConfig)

	bus := eventbus.New()

	store, err := openSettings(cfg, logSvc.Logger().With(logx.String("comp", "settings")))
	if err != nil {
		return nil, err
	}

	engine, err := buildEngine(cfg, store, bus, logSvc.Logger())
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	sched := scheduler.New(schedCfg, func(ctx context.Context) {
		engine.Run(ctx)
	}, logSvc.Logger().With(logx.String("comp", "scheduler")))

	return &App{
		cfgm:   cfgm,
		logs:   logSvc,
		log:    log,
		bus:    bus,
		store:  store,
		engine: engine,
		sched:  sched,
	}, nil
}

// buildEngine assembles the verification pipeline and dispatch engine.
func buildEngine(cfg *config.Config, store settings.Store, bus eventbus.Bus, log logx.Logger) (*dispatch.Engine, error) {
	if strings.TrimSpace(cfg.Feed.BaseURL) == "" {
		return nil, fmt.Errorf("feed.base_url is required")
	}
	reqTimeout, err := config.ParseDurationOrDefault("feed.request_timeout", cfg.Feed.RequestTimeout, 30*time.Second)
	if err != nil {
		return nil, err
	}

	material, err := trust.LoadMaterial(cfg.Trust.RootCert, cfg.Trust.PublisherCert)
	if err != nil {
		return nil, err
	}
	trustStore := trust.NewStore(material.Root)

	fetcher := feed.NewFetcher(cfg.Feed.BaseURL, reqTimeout)

	var crlSource feed.CRLSource
	switch {
	case strings.TrimSpace(cfg.Trust.CRLURL) != "":
		crlSource = &feed.RemoteCRL{
			Fetcher: feed.NewFetcher(cfg.Trust.CRLURL, reqTimeout),
		}
	case strings.TrimSpace(cfg.Trust.RootCRL) != "":
		crlSource = &feed.LocalCRL{Path: cfg.Trust.RootCRL}
	default:
		return nil, fmt.Errorf("trust: either crl_url or root_crl is required")
	}

	if strings.TrimSpace(cfg.Trust.PublisherCN) == "" {
		return nil, fmt.Errorf("trust.publisher_cn is required")
	}
	auth := feed.NewAuthenticator(fetcher, trustStore, material.Publisher, crlSource, cfg.Trust.PublisherCN)

	check, err := mapConnectivity(cfg)
	if err != nil {
		return nil, err
	}

	var sink notifier.Sink
	if cfg.Telegram != nil && strings.TrimSpace(cfg.Telegram.Token) != "" {
		ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token},
			log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		sink = ad
	} else {
		sink = notifier.LogSink{Log: log.With(logx.String("comp", "notify"))}
	}
	notify := notifier.New(notifier.Config{
		RatePerSec:  cfg.Notifier.RatePerSec,
		HistorySize: cfg.Notifier.HistorySize,
	}, sink, log.With(logx.String("comp", "notifier")))

	resolver := directory.NewStatic(mapDirectory(cfg))

	return dispatch.New(check, auth, store, resolver, notify, bus,
		log.With(logx.String("comp", "dispatch"))), nil
}

func openSettings(cfg *config.Config, log logx.Logger) (settings.Store, error) {
	busy, err := config.ParseDurationField("settings.busy_timeout", cfg.Settings.BusyTimeout)
	if err != nil {
		return nil, err
	}
	return settings.Open(settings.Config{
		Driver:      cfg.Settings.Driver,
		Path:        cfg.Settings.Path,
		BusyTimeout: busy,
	}, log)
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	interval, err := config.ParseDurationOrDefault("scheduler.interval", cfg.Scheduler.Interval, 24*time.Hour)
	if err != nil {
		return scheduler.Config{}, err
	}
	jitter, err := config.ParseDurationOrDefault("scheduler.max_jitter", cfg.Scheduler.MaxJitter, time.Hour)
	if err != nil {
		return scheduler.Config{}, err
	}
	enabled := true
	if cfg.Scheduler.Enabled != nil {
		enabled = *cfg.Scheduler.Enabled
	}
	return scheduler.Config{Enabled: enabled, Interval: interval, MaxJitter: jitter}, nil
}

func mapConnectivity(cfg *config.Config) (netcheck.Checker, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Connectivity.Mode))
	switch mode {
	case "", "assume":
		online := true
		if cfg.Connectivity.Online != nil {
			online = *cfg.Connectivity.Online
		}
		return netcheck.Assume{IsOnline: online}, nil
	case "probe":
		timeout, err := config.ParseDurationField("connectivity.probe_timeout", cfg.Connectivity.ProbeTimeout)
		if err != nil {
			return nil, err
		}
		return netcheck.Probe{Addr: cfg.Connectivity.ProbeAddr, Timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("connectivity.mode: unknown mode %q", cfg.Connectivity.Mode)
	}
}

func mapDirectory(cfg *config.Config) map[string][]directory.User {
	groups := make(map[string][]directory.User, len(cfg.Directory.Groups))
	for gid, members := range cfg.Directory.Groups {
		users := make([]directory.User, 0, len(members))
		for _, m := range members {
			users = append(users, directory.User{UID: m.UID, ChatID: m.ChatID})
		}
		groups[gid] = users
	}
	return groups
}

// validateConfig is the Watch() hook: a reloaded file must decode into
// something the running services could be built from.
func validateConfig(ctx context.Context, cfg *config.Config) error {
	_ = ctx
	if strings.TrimSpace(cfg.Feed.BaseURL) == "" {
		return fmt.Errorf("feed.base_url is required")
	}
	if _, err := mapSchedulerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapConnectivity(cfg); err != nil {
		return err
	}
	return nil
}

// Start launches the scheduler, the config watcher and the run-event
// observer, then reports readiness to systemd.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.sched.Start(runCtx)

	// Config hot reload: only the logging section applies live; everything
	// else needs a restart to rebuild the pipeline safely.
	sub := a.cfgm.Subscribe(2)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(logx.Config{
					Level:   cfg.Logging.Level,
					Console: cfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: cfg.Logging.File.Enabled,
						Path:    cfg.Logging.File.Path,
					},
				})
				a.log.Info("logging config applied; other sections apply on restart")
			}
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch unavailable", logx.Err(err))
		}
	}()

	// Surface each run's outcome as the systemd status line.
	events, unsub := a.bus.Subscribe(4)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer unsub()
		for {
			select {
			case <-runCtx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Type != eventbus.TypeRunFinished {
					continue
				}
				if out, ok := ev.Data.(dispatch.Outcome); ok {
					status := fmt.Sprintf("STATUS=last run %s at %s", out.Status, ev.Time.Format(time.RFC3339))
					_, _ = daemon.SdNotify(false, status)
				}
			}
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("started")
	return nil
}

// RunOnce executes a single crawl immediately, bypassing the scheduler.
func (a *App) RunOnce(ctx context.Context) dispatch.Outcome {
	return a.engine.Run(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if a.cancel != nil {
		a.cancel()
	}
	a.sched.Stop(ctx)
	a.wg.Wait()

	var firstErr error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = err
		}
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
	return firstErr
}
