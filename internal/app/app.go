// Package app wires the bell controller together: config, logging, the kv
// store, the control loop, the HTTP API and the optional side services.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"belld/internal/backup"
	"belld/internal/bell"
	"belld/internal/clock"
	"belld/internal/config"
	"belld/internal/controller"
	"belld/internal/engine"
	"belld/internal/kv"
	"belld/internal/notifier"
	"belld/internal/store"
	transport "belld/internal/transport/http"
	"belld/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	kvs   kv.Store
	ctrl  *controller.Controller
	srv   *transport.Server
	notif *notifier.Service
	bak   *backup.Service

	listen string
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	bootLog := logx.NewConsole("info")

	cfgm := config.NewManager(cfgPath, bootLog)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logs := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleOrDefault(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log := logs.Logger()

	// Outputs first: power-on must never leave the bell ringing.
	b := bell.New(buildOutputs(cfg.Bell), log.With(logx.String("comp", "bell")))

	loc := time.Local
	if cfg.Clock.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Clock.Timezone)
		if err != nil {
			return nil, fmt.Errorf("clock.timezone: %w", err)
		}
	}
	oracle := clock.NewSystem(loc, !cfg.Clock.Disabled)
	if cfg.Clock.Disabled {
		log.Warn("clock disabled: schedules will not fire until enabled")
	}

	kvs, err := kv.Open(kv.Config{
		Driver:      cfg.Store.DriverOrDefault(),
		Path:        cfg.Store.Path,
		BusyTimeout: cfg.Store.BusyTimeoutOrZero(),
	}, log.With(logx.String("comp", "kv")))
	if err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}

	st, err := store.Open(kvs, cfg.Store.CapacityOrDefault(), log.With(logx.String("comp", "store")))
	if err != nil {
		_ = kvs.Close()
		return nil, fmt.Errorf("load schedule catalog: %w", err)
	}

	eng := engine.New(oracle, st, b, log.With(logx.String("comp", "engine")))
	ctrl := controller.New(st, eng, b, oracle, cfg.Bell.TickOrDefault(), log.With(logx.String("comp", "loop")))

	a := &App{
		cfgm:   cfgm,
		logs:   logs,
		log:    log.With(logx.String("comp", "app")),
		kvs:    kvs,
		ctrl:   ctrl,
		listen: cfg.ListenOrDefault(),
	}

	if cfg.Notify != nil && cfg.Notify.Enabled {
		notif, err := notifier.New(notifier.Config{
			Token:  cfg.Notify.Token,
			ChatID: cfg.Notify.ChatID,
		}, log.With(logx.String("comp", "notify")))
		if err != nil {
			// Notifications are best-effort; a bad token must not keep the
			// bell from running.
			log.Warn("notifier disabled", logx.Err(err))
		} else {
			a.notif = notif
			ctrl.SetFireFunc(notif.BellFired)
		}
	}

	a.srv = transport.New(ctrl, cfg.RingNow.RateOrDefault(), cfg.RingNow.BurstOrDefault(),
		log.With(logx.String("comp", "http")))

	if cfg.Backup != nil && cfg.Backup.Enabled {
		bak, err := backup.New(backup.Config{
			Spec: cfg.Backup.SpecOrDefault(),
			Path: cfg.Backup.Path,
		}, ctrl, log.With(logx.String("comp", "backup")))
		if err != nil {
			_ = kvs.Close()
			return nil, fmt.Errorf("backup: %w", err)
		}
		a.bak = bak
	}

	return a, nil
}

func buildOutputs(cfg config.BellConfig) bell.Outputs {
	var out bell.Outputs
	if cfg.RelayPin != "" {
		out.Relay = bell.SysfsPin{Path: cfg.RelayPin, ActiveHigh: activeHigh(cfg.RelayActiveHigh)}
	} else {
		out.Relay = &bell.MemPin{}
	}
	if cfg.IndicatorPin != "" {
		out.Indicator = bell.SysfsPin{Path: cfg.IndicatorPin, ActiveHigh: activeHigh(cfg.IndicatorActiveHigh)}
	} else {
		out.Indicator = &bell.MemPin{}
	}
	return out
}

func activeHigh(v *bool) bool { return v == nil || *v }

// Run blocks until ctx is done, then shuts everything down in order.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	defer cancel()

	if a.notif != nil {
		a.notif.Start(runCtx)
	}
	if a.bak != nil {
		a.bak.Start()
	}

	// Config hot reload: log level and ring rate apply live.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		updates := a.cfgm.Subscribe()
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg := <-updates:
				if cfg == nil {
					continue
				}
				a.applyReload(cfg)
			}
		}
	}()

	loopDone := make(chan error, 1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		loopDone <- a.ctrl.Run(runCtx)
	}()

	httpDone := make(chan error, 1)
	go func() { httpDone <- a.srv.Listen(a.listen) }()

	a.log.Info("belld ready", logx.String("listen", a.listen))

	var cause error
	select {
	case <-ctx.Done():
	case err := <-httpDone:
		// Listen returns nil after a clean Shutdown; anything else here
		// means the server died on its own.
		if err != nil {
			cause = fmt.Errorf("http server: %w", err)
		}
	case err := <-loopDone:
		cause = err
	}

	shutdownCtx, sdCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer sdCancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("http shutdown", logx.Err(err))
	}

	cancel()
	a.wg.Wait()
	if a.bak != nil {
		a.bak.Stop()
	}
	if a.notif != nil {
		a.notif.Stop()
	}
	if err := a.kvs.Close(); err != nil {
		a.log.Warn("kv close", logx.Err(err))
	}
	_ = a.logs.Close()
	return cause
}

func (a *App) applyReload(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleOrDefault(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.srv.ApplyRates(cfg.RingNow.RateOrDefault(), cfg.RingNow.BurstOrDefault())
	a.log.Info("reloadable settings applied",
		logx.String("log_level", cfg.Logging.Level),
		logx.Int("ring_rate_per_min", cfg.RingNow.RateOrDefault()))
}
