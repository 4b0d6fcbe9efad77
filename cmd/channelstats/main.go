// Command channelstats polls Twitch and YouTube for live viewer and
// subscriber counts once a minute and writes them into OBS text sources.
// Polling is controlled through a small HTTP API and control panel.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/Guliveer/obs-channel-stats/internal/config"
	"github.com/Guliveer/obs-channel-stats/internal/constants"
	"github.com/Guliveer/obs-channel-stats/internal/httpclient"
	"github.com/Guliveer/obs-channel-stats/internal/logger"
	"github.com/Guliveer/obs-channel-stats/internal/overlay"
	"github.com/Guliveer/obs-channel-stats/internal/scheduler"
	"github.com/Guliveer/obs-channel-stats/internal/server"
	"github.com/Guliveer/obs-channel-stats/internal/stats"
	"github.com/Guliveer/obs-channel-stats/internal/twitch"
	"github.com/Guliveer/obs-channel-stats/internal/youtube"
)

const banner = `
+--------------------------------------------------+
|        OBS Channel Stats  (Twitch + YouTube)     |
+--------------------------------------------------+
`

func main() {
	configPath := flag.String("config", constants.DefaultConfigFile, "Path to the YAML configuration file")
	envFile := flag.String("env-file", ".env", "Optional .env file with credentials")
	port := flag.String("port", "", "Port for the control server (overrides server.addr and PORT env)")
	logLevel := flag.String("log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (overrides LOG_LEVEL env)")
	noColor := flag.Bool("no-color", false, "Disable colored output (overrides TTY detection)")
	autostart := flag.Bool("autostart", false, "Start polling immediately (same as auto_start in the config)")
	flag.Parse()

	envErr := config.LoadEnvFile(*envFile)

	cfg, cfgErr := config.Load(*configPath)
	if errors.Is(cfgErr, fs.ErrNotExist) {
		cfg, cfgErr = config.Parse(nil)
	}
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", cfgErr)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	switch {
	case *logLevel != "":
		level = logger.ParseLevel(*logLevel)
	case os.Getenv("LOG_LEVEL") != "":
		level = logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	case cfg.Log.Level != "":
		level = logger.ParseLevel(cfg.Log.Level)
	}

	colored := !*noColor && term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""

	rootLog, logErr := logger.Setup(logger.Config{
		Level:     level,
		FileLevel: level,
		Colored:   colored,
		LogFile:   cfg.Log.File,
	})
	defer rootLog.Close()

	fmt.Print(banner)
	rootLog.Info("Starting OBS channel stats")

	if logErr != nil {
		rootLog.Warn("Log file unavailable, logging to console only", "error", logErr)
	}
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		rootLog.Warn("Failed to load env file", "path", *envFile, "error", envErr)
	}
	if _, err := os.Stat(*configPath); errors.Is(err, fs.ErrNotExist) {
		rootLog.Warn("Config file not found, using defaults and environment", "path", *configPath)
	}
	for _, w := range config.Warnings(cfg) {
		rootLog.Warn(w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		rootLog.Info("Received shutdown signal", "signal", sig.String())
		cancel()

		time.AfterFunc(30*time.Second, func() {
			rootLog.Error("Graceful shutdown timed out, forcing exit")
			os.Exit(1)
		})
	}()

	store := config.NewStore(cfg)
	clock := clockwork.NewRealClock()
	httpClient := httpclient.New(constants.DefaultHTTPTimeout, rootLog)

	sink, err := newSink(cfg.Sink, rootLog)
	if err != nil {
		rootLog.Error("Failed to create overlay sink", "type", cfg.Sink.Type, "error", err)
		os.Exit(1)
	}
	sinks := overlay.NewSwitch(sink)

	twitchSession := twitch.NewSession(httpClient, clock, rootLog)
	youtubeClient := youtube.NewClient(httpClient, rootLog)
	aggregator := stats.NewAggregator(twitchSession, youtubeClient, sinks, rootLog)
	collector := stats.NewCollector(store, twitchSession, youtubeClient, aggregator, clock, rootLog)
	sched := scheduler.New(collector, clock, rootLog)

	store.OnChange(func(old, next *config.Settings) {
		applySettingsChange(old, next, sinks, sched, rootLog)
	})

	addr := cfg.Server.Addr
	if envPort := os.Getenv("PORT"); envPort != "" {
		addr = withPort(addr, envPort)
	}
	if *port != "" {
		addr = withPort(addr, *port)
	}
	controlServer := server.New(addr, sched, collector, store, sinks, rootLog)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return controlServer.Run(gctx)
	})

	g.Go(func() error {
		return watchReload(gctx, *configPath, store, rootLog)
	})

	rootLog.Info("Control server started", "addr", addr)

	if *autostart || cfg.AutoStart {
		sched.Start(gctx)
	} else {
		rootLog.Info("Polling is stopped, press START in the control panel or POST /api/start")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		rootLog.Error("Service failed", "error", err)
	}

	sched.Stop(context.Background())
	closeSink(sinks.Current(), rootLog)

	rootLog.Info("Shutdown complete")
}

// withPort replaces the port of addr and keeps its host, so a port override
// does not widen the listen address beyond loopback.
func withPort(addr, port string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = ""
	}
	return net.JoinHostPort(host, port)
}

// watchReload reloads the configuration file on SIGHUP until ctx is done.
func watchReload(ctx context.Context, path string, store *config.Store, log *logger.Logger) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if err := store.Reload(path); err != nil {
				log.Error("Config reload failed, keeping current settings", "path", path, "error", err)
				continue
			}
			log.Info("Config reloaded", "path", path)
			for _, w := range config.Warnings(store.Current()) {
				log.Warn(w)
			}
		}
	}
}
