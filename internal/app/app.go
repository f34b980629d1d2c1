// Package app wires the digest bot together: config, logging, storage, the
// LLM client, the scheduler and the Telegram transport, plus the reload and
// cleanup loops that keep them in sync at runtime.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"digestbot/internal/background"
	"digestbot/internal/config"
	"digestbot/internal/digest"
	"digestbot/internal/linuxdo"
	"digestbot/internal/llm"
	"digestbot/internal/storage"
	"digestbot/internal/transport/telegram"
	"digestbot/pkg/logx"
)

const cleanupInterval = 6 * time.Hour

// generator bridges the LLM client to the digest job interface, dropping
// the usage metadata the jobs do not care about.
type generator struct {
	client *llm.Client
}

func (g generator) Summarize(ctx context.Context, lines []string) (string, error) {
	res, err := g.client.Summarize(ctx, lines)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

func (g generator) Timeout() time.Duration { return g.client.Timeout() }

type App struct {
	cfgm *config.Manager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service

	db     *storage.DB
	bot    *telegram.Bot
	digest *digest.Service
	bg     *background.Runner
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		return c.Validate()
	})

	busy, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	db, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	gen := generator{client: llm.New(cfg.LLM, cfg.LLMTimeout(), cfg.Model(),
		log.With(logx.String("comp", "llm")))}

	bg := background.NewRunner(log.With(logx.String("comp", "background")))
	unfurler := linuxdo.New(cfg.LinuxDo.BaseURL, log.With(logx.String("comp", "linuxdo")))

	a := &App{
		cfgm: cfgm,
		log:  log,
		logs: logSvc,
		db:   db,
		bg:   bg,
	}

	a.digest = digest.New(db, gen, nil, digestSettings(cfg),
		log.With(logx.String("comp", "digest")))

	bot, err := telegram.New(cfgm, db, a.digest, unfurler, bg,
		log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = db.Close()
		_ = logSvc.Close()
		return nil, err
	}
	a.bot = bot
	a.digest.SetDeliverer(bot)
	logSvc.SetSender(bot)

	return a, nil
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Logging.Telegram.ChatID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func digestSettings(cfg *config.Config) digest.Settings {
	return digest.Settings{
		TZOffsetMinutes: cfg.Scheduler.TZOffsetMinutes,
		JobBuffer:       cfg.JobBuffer(),
		BatchCap:        cfg.BatchCap(),
		TopN:            cfg.TopN(),
		DefaultWindow:   cfg.DefaultWindow(),
	}
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	a.sup.Go("telegram.poll", func(c context.Context) error {
		a.bot.Start(c)
		return nil
	})

	if a.cfgm.Get().Scheduler.Enabled {
		if err := a.digest.Start(a.sup.Context()); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.log.Info("scheduler started")
	} else {
		a.log.Info("scheduler disabled by config")
	}

	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go0("storage.cleanup", a.cleanupLoop)

	a.log.Info("digestbot started")
	return nil
}

// reloadLoop fans validated config updates out to the live components.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the newest config matters.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			sections, fields := config.SummarizeChange(lastApplied, newCfg)
			if len(sections) == 0 {
				a.log.Debug("config reload received, no effective changes")
				lastApplied = newCfg
				continue
			}
			lastApplied = newCfg

			a.logs.Apply(logConfig(newCfg))
			a.digest.Apply(digestSettings(newCfg))

			a.log.Info("config reloaded",
				append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, fields...)...)
		}
	}
}

// cleanupLoop prunes summarized messages past the retention window. A zero
// retention disables pruning entirely.
func (a *App) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			retention := a.cfgm.Get().Retention()
			if retention <= 0 {
				continue
			}
			n, err := a.db.CleanupOldMessages(ctx, retention)
			if err != nil {
				a.log.Warn("message cleanup failed", logx.Err(err))
				continue
			}
			if n > 0 {
				a.log.Info("old messages pruned",
					logx.Int64("rows", n), logx.Duration("retention", retention))
			}
		}
	}
}

// Done is closed when the supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Stop(ctx context.Context) error {
	a.digest.Stop()
	a.bot.Stop()
	a.bg.Close(10 * time.Second)

	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}
	if cerr := a.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if lerr := a.logs.Close(); lerr != nil && err == nil {
		err = lerr
	}
	return err
}
