// opsdeck runs the detection and notification engine: alert condition
// evaluation over the record streams, command pattern matching, and the
// HTTP API that manages both.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/opsdeck/opsdeck/internal/alerting"
	api "github.com/opsdeck/opsdeck/internal/api/v2"
	"github.com/opsdeck/opsdeck/internal/command"
	"github.com/opsdeck/opsdeck/internal/conf"
	"github.com/opsdeck/opsdeck/internal/datastore"
	"github.com/opsdeck/opsdeck/internal/datastore/repository"
	"github.com/opsdeck/opsdeck/internal/logger"
	"github.com/opsdeck/opsdeck/internal/notification"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "opsdeck",
		Short:         "Detection and notification engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(serveCommand(), evaluateCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app bundles everything both subcommands need.
type app struct {
	settings *conf.Settings
	log      logger.Logger
	db       *gorm.DB
	engine   *alerting.Engine
	resolver *alerting.Resolver
	matcher  *command.Matcher

	alerts    repository.AlertRepository
	commands  repository.CommandRepository
	templates repository.TemplateRepository
}

func buildApp() (*app, error) {
	settings, err := conf.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.NewSlogLogger(os.Stdout, parseLogLevel(settings.LogLevel), nil)

	db, err := datastore.Open(&settings.Database)
	if err != nil {
		return nil, err
	}

	alerts := repository.NewAlertRepository(db)
	commands := repository.NewCommandRepository(db)
	templates := repository.NewTemplateRepository(db)
	activity := repository.NewActivityRepository(db)
	sources := repository.NewSourceReader(db)

	var transport notification.Transport = notification.NoopTransport{}
	if settings.Notification.TransportURL != "" {
		st, err := notification.NewShoutrrrTransport(settings.Notification.TransportURL)
		if err != nil {
			return nil, err
		}
		transport = st
	} else {
		log.Warn("no notification transport configured, deliveries are discarded")
	}
	dispatcher := notification.NewDispatcher(templates, transport, log, settings.Notification.SendTimeout.Std())

	evaluator := alerting.NewEvaluator(sources, settings.Evaluation.AdapterTimeout.Std())
	engine := alerting.NewEngine(alerts, evaluator, dispatcher, log, settings.Evaluation.Concurrency)
	resolver := alerting.NewResolver(alerts, activity, log)
	matcher := command.NewMatcher(commands, activity, dispatcher, log, settings.Commands.PatternCacheTTL.Std())

	return &app{
		settings:  settings,
		log:       log,
		db:        db,
		engine:    engine,
		resolver:  resolver,
		matcher:   matcher,
		alerts:    alerts,
		commands:  commands,
		templates: templates,
	}, nil
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}

			e := echo.New()
			e.HideBanner = true
			e.Use(middleware.Recover())
			api.New(e, a.alerts, a.commands, a.templates, a.engine, a.resolver, a.matcher, a.log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("http server listening", logger.String("addr", a.settings.HTTP.Listen))
				errCh <- e.Start(a.settings.HTTP.Listen)
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				a.log.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := e.Shutdown(shutdownCtx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func evaluateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate every active alert condition once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			results, err := a.engine.RunAll(cmd.Context())
			if err != nil {
				return err
			}
			triggered := 0
			failed := 0
			for i := range results {
				if results[i].Triggered {
					triggered++
				}
				if results[i].Error != "" {
					failed++
				}
			}
			a.log.Info("evaluation run complete",
				logger.Int("evaluated", len(results)),
				logger.Int("triggered", triggered),
				logger.Int("failed", failed))
			if failed > 0 {
				return fmt.Errorf("%d of %d conditions failed to evaluate", failed, len(results))
			}
			return nil
		},
	}
}

func parseLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.LogLevelDebug
	case "warn":
		return logger.LogLevelWarn
	case "error":
		return logger.LogLevelError
	default:
		return logger.LogLevelInfo
	}
}
