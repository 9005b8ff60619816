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

	"bvgboard/pkg/bvg"
	"bvgboard/pkg/config"
	"bvgboard/pkg/device"
	"bvgboard/pkg/display"
	"bvgboard/pkg/logging"
	"bvgboard/pkg/loki"
	"bvgboard/pkg/metrics"
	"bvgboard/pkg/parser"
	"bvgboard/pkg/pipeline"
	"bvgboard/pkg/profiling"
	"bvgboard/pkg/station"
	"bvgboard/pkg/tracing"
	"bvgboard/pkg/tui"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configure bool

	cmd := &cobra.Command{
		Use:   "bvgboard",
		Short: "Live BVG departure board",
		Long: `bvgboard shows the next departures from one Berlin stop and refreshes
them every 15 seconds. It runs on a Kindle as an e-ink board or in any
terminal.

Settings are read from bvgboard.yml (BVG_SETTINGS_FILE) and BVG_* environment
variables. The station lives in a key=value file with station_id and
station_name; send SIGHUP to reload it after editing by hand.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configure)
		},
	}
	cmd.Flags().BoolVar(&configure, "config", false, "edit the station before starting the board")

	return cmd
}

func run(configure bool) error {
	// Logs stay off stdout, which carries the board
	logging.InitLogging(os.Stderr)

	settings, err := config.Load(config.SettingsPath())
	if err != nil {
		return err
	}

	shutdownTracing, err := tracing.InitTracing()
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer shutdownTracing()

	shutdownMetrics, err := metrics.InitMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer shutdownMetrics()

	shutdownProfiling, err := profiling.InitProfiling()
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer shutdownProfiling()

	store, err := station.NewStore(settings.Board.StationFile)
	if err != nil {
		slog.Warn("Using default station", "path", store.Path(), "error", err)
	}

	if configure {
		if err := tui.EditStation(store); err != nil {
			return err
		}
	}

	renderers := []display.Renderer{
		display.NewTerminalRenderer(os.Stdout,
			display.WithWidth(settings.Board.Width),
			display.WithClearScreen(isatty.IsTerminal(os.Stdout.Fd())),
		),
	}
	if settings.LokiEnabled() {
		renderers = append(renderers, loki.NewClient(settings.Loki.URL, settings.Loki.User, settings.Loki.Password))
	}

	board, err := pipeline.New(pipeline.Config{
		Client: bvg.NewClient(
			bvg.WithBaseURL(settings.API.BaseURL),
			bvg.WithTimeout(settings.API.Timeout),
		),
		Parser: parser.NewDepartureParser(
			parser.WithTimeMode(settings.Board.ParsedTimeMode()),
			parser.WithLocation(settings.Board.Location()),
		),
		Renderer:         display.Multi(renderers...),
		Stations:         store,
		Device:           device.New(settings.Board.Device),
		Interval:         settings.Board.Interval,
		FullRefreshEvery: settings.Board.FullRefreshEvery,
	})
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	current := store.Get()
	slog.Info("Starting departure board",
		"stop_id", current.StopID,
		"station", current.Label,
		"interval", settings.Board.Interval,
		"time_mode", settings.Board.ParsedTimeMode(),
		"device", settings.Board.Device,
		"loki", settings.LokiEnabled(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- board.Run(ctx)
	}()

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				if err := store.Reload(); err != nil {
					slog.Warn("Station reload failed", "path", store.Path(), "error", err)
				}
				continue
			}

			slog.Info("Shutting down", "signal", sig.String())
			cancel()
			select {
			case <-time.After(5 * time.Second):
				slog.Warn("Shutdown timeout, forcing exit")
			case <-errChan:
			}
			slog.Info("Departure board stopped")
			return nil
		case err := <-errChan:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}
	}
}
