package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const appName = "groveboard"

// handlerGrace is how long shutdown waits for running alert handlers.
const handlerGrace = 10 * time.Second

var version = "dev"

// Entry point for the Grove board service
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		platform   string
	)

	root := &cobra.Command{
		Use:          appName,
		Short:        "Grove sensor board service - motion alerts and LCD control",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to config.yaml")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Poll the motion sensor and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfgMgr ConfigManager
			if err := cfgMgr.Load(configPath); err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, &cfgMgr, debug, platform)
		},
	}
	serve.Flags().StringVar(&platform, "platform", "", "Override the configured transport (native, firmata)")

	hash := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for use in config.yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), hashPassword(args[0]))
			return nil
		},
	}

	root.AddCommand(serve, hash)
	return root
}

// run brings the board up in order: bridge, board, alert handlers, poll
// loop, HTTP API.  A non-empty platform overrides the configured transport
// for this run only.  It returns when ctx is cancelled or the API fails.
func run(ctx context.Context, cfgMgr *ConfigManager, debug bool, platform string) error {
	cfg := cfgMgr.Get()
	if platform != "" {
		cfg.Platform = platform
	}
	slog.SetDefault(newLogger(os.Stderr, cfg.Log, debug, cfg.Board))
	slog.Info("starting", "version", version, "config", cfgMgr.Path())

	transport, err := ParseTransport(cfg.Platform)
	if err != nil {
		return err
	}
	bridge, err := InitBridge(transport, cfg.FirmataPort)
	if err != nil {
		return err
	}

	events := NewEventLogger(cfg.Log.File)
	dispatcher := NewDispatcher(cfg.Board)
	board, err := NewBoard(cfg, bridge, dispatcher)
	if err != nil {
		return fmt.Errorf("initialisation error: %w", err)
	}
	defer board.Close()

	var pub publisher
	if cfg.MQTT.Broker != "" {
		mp := newMQTTPublisher(cfg.MQTT, cfg.Board)
		defer mp.Close()
		pub = mp
	}
	handlers := initAlertHandlers(cfg, board, pub)
	registerAlerts(dispatcher, handlers, events)

	if err := board.WriteMessage(cfg.Board+" ready", 0); err != nil {
		slog.Warn("initial display write failed", "err", err)
	}

	runner := NewRunner(board, cfg.PollInterval)
	srv := NewServer(cfgMgr, board, runner, events)
	err = serveWhilePolling(ctx, runner, dispatcher, srv.Start, handlerGrace)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server exited: %w", err)
	}
	slog.Info("shutting down")
	return nil
}

// serveWhilePolling runs the poll loop for as long as serve runs.  Once
// serve returns, for whatever reason, the loop is stopped and joined before
// the dispatcher is shut down, so no handler starts after this returns.
func serveWhilePolling(ctx context.Context, runner *Runner, dispatcher *Dispatcher, serve func(context.Context) error, grace time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	polling := make(chan struct{})
	go func() {
		defer close(polling)
		runner.Run(ctx)
	}()

	err := serve(ctx)
	cancel()
	<-polling
	if derr := dispatcher.Shutdown(grace); derr != nil {
		slog.Warn("shutdown with alert handlers pending", "err", derr, "grace", grace)
	}
	return err
}
