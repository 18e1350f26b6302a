package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/supportdesk/internal/bus"
	"github.com/nextlevelbuilder/supportdesk/internal/channels"
	"github.com/nextlevelbuilder/supportdesk/internal/channels/telegram"
	"github.com/nextlevelbuilder/supportdesk/internal/completion"
	"github.com/nextlevelbuilder/supportdesk/internal/config"
	"github.com/nextlevelbuilder/supportdesk/internal/dispatch"
	"github.com/nextlevelbuilder/supportdesk/internal/escalation"
	"github.com/nextlevelbuilder/supportdesk/internal/httpapi"
	"github.com/nextlevelbuilder/supportdesk/internal/knowledge"
	"github.com/nextlevelbuilder/supportdesk/internal/metrics"
	"github.com/nextlevelbuilder/supportdesk/internal/ratelimit"
	"github.com/nextlevelbuilder/supportdesk/internal/router"
	"github.com/nextlevelbuilder/supportdesk/internal/sessions"
	"github.com/nextlevelbuilder/supportdesk/internal/tracing"
)

const drainTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the support bot (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// loadConfig reads .env, the config file and env overrides, then validates.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runServe(parent context.Context) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}
	if cfg.Telegram.Token == "" {
		err := errors.New("telegram token is required (SUPPORTDESK_TELEGRAM_TOKEN)")
		slog.Error("cannot start", "error", err)
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()

	kb := knowledge.NewBase(cfg.Knowledge.Path)
	if err := kb.Reload(); err != nil {
		return fmt.Errorf("load knowledge base: %w", err)
	}
	slog.Info("knowledge base loaded", "path", cfg.Knowledge.Path, "entries", kb.Len())

	var completer router.Completer
	openai, err := completion.NewOpenAI(completion.Config{
		APIKey:       cfg.OpenAI.APIKey,
		APIBase:      cfg.OpenAI.APIBase,
		Model:        cfg.OpenAI.Model,
		SystemPrompt: cfg.OpenAI.SystemPrompt,
		MaxTokens:    cfg.OpenAI.MaxTokens,
		Timeout:      cfg.OpenAI.Timeout.Std(),
	})
	if err != nil {
		slog.Warn("completion disabled, unmatched questions get the fallback text", "error", err)
	} else {
		completer = openai
		slog.Info("completion enabled", "model", cfg.OpenAI.Model)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	store := sessions.NewStore(cfg.Router.SessionTTL.Std())
	pacer := ratelimit.New(ratelimit.Config{
		Window:     cfg.Pacing.Window.Std(),
		MaxEntries: cfg.Pacing.MaxEntries,
		MinDelay:   cfg.Pacing.MinDelay.Std(),
		MaxDelay:   cfg.Pacing.MaxDelay.Std(),
	})

	// The router is created after the channel it replies through, so the
	// dispatcher reaches it through this variable.
	var rt *router.Router
	disp := dispatch.New(func(ctx context.Context, msg bus.InboundMessage) {
		rt.Handle(ctx, msg)
	})

	tg, err := telegram.New(cfg.Telegram, func(ctx context.Context, msg bus.InboundMessage) {
		disp.Submit(ctx, msg)
	})
	if err != nil {
		return err
	}

	dir, err := operatorDirectory(cfg, tg)
	if err != nil {
		return err
	}
	notifier := escalation.NewNotifier(dir, escalation.Config{
		ChannelID:   cfg.Escalation.ChannelID,
		ChannelName: cfg.Escalation.ChannelName,
		MaxTextCols: cfg.Escalation.MaxTextCols,
	})
	notifier.OnAlert(func(res escalation.Result) {
		if res.Err != nil {
			m.NotifyFailure()
		}
	})

	rt, err = router.New(router.Config{
		Store:        store,
		Matcher:      kb,
		Completer:    completer,
		Notifier:     notifier,
		Pacer:        pacer,
		Replier:      channels.NewReplier(tg),
		Metrics:      m,
		ReplyCap:     cfg.Router.ReplyCap,
		Threshold:    float64(cfg.Knowledge.Threshold),
		Gratitude:    router.MarkerPredicate(cfg.Router.GratitudeMarker),
		WelcomeText:  cfg.Router.WelcomeText,
		HandoverText: cfg.Router.HandoverText,
		FallbackText: cfg.Router.FallbackText,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := tg.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return tg.Stop(context.Background())
	})

	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		return disp.Shutdown(drainCtx)
	})

	if cfg.Knowledge.Watch {
		g.Go(func() error {
			return kb.Watch(gctx)
		})
	}

	if cfg.Ops.Listen != "" {
		handler := httpapi.NewRouter(httpapi.Config{
			Sessions: store,
			ReplyCap: cfg.Router.ReplyCap,
			Checks: map[string]httpapi.Check{
				"telegram": func() error {
					if !tg.IsRunning() {
						return channels.ErrNotRunning
					}
					return nil
				},
				"knowledge": func() error {
					if kb.Len() == 0 {
						return errors.New("knowledge base is empty")
					}
					return nil
				},
			},
		})
		g.Go(func() error {
			return httpapi.Serve(gctx, cfg.Ops.Listen, handler)
		})
	}

	slog.Info("supportdesk started",
		"version", Version,
		"escalation", cfg.Escalation.Backend,
		"reply_cap", cfg.Router.ReplyCap,
		"ops", cfg.Ops.Listen,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("supportdesk stopped with error", "error", err)
		return err
	}
	slog.Info("supportdesk stopped")
	return nil
}

// operatorDirectory picks where handover alerts are posted.
func operatorDirectory(cfg *config.Config, tg *telegram.Channel) (escalation.Directory, error) {
	switch cfg.Escalation.Backend {
	case "discord":
		d, err := escalation.NewDiscordDirectory(cfg.Discord.Token, cfg.Discord.GuildID)
		if err != nil {
			return nil, fmt.Errorf("discord operator directory: %w", err)
		}
		return d, nil
	default:
		return tg, nil
	}
}
