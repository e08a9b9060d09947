package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dmmcquay/leelawatcher/internal/archive"
	"github.com/dmmcquay/leelawatcher/internal/cache"
	"github.com/dmmcquay/leelawatcher/internal/config"
	"github.com/dmmcquay/leelawatcher/internal/goboard"
	"github.com/dmmcquay/leelawatcher/internal/harness"
	"github.com/dmmcquay/leelawatcher/internal/health"
	"github.com/dmmcquay/leelawatcher/internal/logging"
	mcptools "github.com/dmmcquay/leelawatcher/internal/mcp"
	"github.com/dmmcquay/leelawatcher/internal/metrics"
	"github.com/dmmcquay/leelawatcher/internal/parser"
	"github.com/dmmcquay/leelawatcher/internal/ratelimit"
	"github.com/dmmcquay/leelawatcher/internal/registry"
	httpserver "github.com/dmmcquay/leelawatcher/internal/server"
	"github.com/dmmcquay/leelawatcher/internal/shutdown"
	"github.com/dmmcquay/leelawatcher/internal/watcher"
	"github.com/mark3labs/mcp-go/server"
)

var (
	// Version information injected at build time.
	GitCommit string = "unknown"
	BuildTime string = "unknown"
)

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Printf("leelawatcher version 0.1.0\n")
		fmt.Printf("Git commit: %s\n", GitCommit)
		fmt.Printf("Build time: %s\n", BuildTime)
		os.Exit(0)
	}

	configPath := opts.configPath
	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	opts.apply(cfg)

	format := cfg.Logging.Format
	if env := os.Getenv("LEELAWATCHER_LOG_FORMAT"); env != "" {
		format = env
	}
	logger, logCloser, err := logging.NewLoggerFromConfig(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      logging.LogFormat(format),
		Service:     cfg.Server.Name,
		Version:     cfg.Server.Version,
		Prefix:      cfg.Logging.Prefix,
		OutputPaths: cfg.Logging.OutputPaths,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	err = run(cfg, logger)
	logCloser.Close()
	if err != nil {
		os.Exit(1)
	}
}

// run returns an error only when startup fails.
func run(cfg *config.Config, logger logging.ContextLogger) error {
	logger.Info("Starting leelawatcher version %s (commit: %s, built: %s)",
		cfg.Server.Version, GitCommit, BuildTime)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewPrometheusCollector()
	shut := shutdown.NewManager(logger)

	regOpts := []registry.Option{registry.WithPostEndgameThreshold(cfg.Viewer.PostEndgameThreshold)}
	if cfg.Viewer.PositionalSuperko {
		regOpts = append(regOpts, registry.WithBoardOptions(goboard.WithPositionalSuperko()))
	}
	reg := registry.New(regOpts...)

	var store *archive.Store
	if cfg.Archive.Enabled {
		var err error
		if store, err = archive.Open(cfg.Archive.Path); err != nil {
			logger.Error("Failed to open archive", "path", cfg.Archive.Path, "error", err)
			return err
		}
		shut.Register("archive", func(context.Context) error { return store.Close() })
		logger.Info("Archiving finished games", "path", cfg.Archive.Path)
	}

	hub := httpserver.NewHub(reg, logger, m)
	go hub.Run(ctx)

	limiter := ratelimit.NewLimiter(&cfg.RateLimit, logger)
	go limiter.Run(ctx)

	controller := watcher.New(reg, buildSink(cfg, store, logger),
		watcher.WithLogger(logger),
		watcher.WithMetrics(m),
		watcher.WithListener(watcher.MultiListener{
			watcher.ListenerFuncs{
				Message: func(msg string) { logger.Info("%s", msg) },
				Progress: func(inProgress bool) {
					logger.Debug("Games in progress changed", "inProgress", inProgress)
				},
			},
			hub,
		}),
	)

	proc := harness.NewProcess(&cfg.Harness, logger, m)

	checker := health.NewChecker(logger, cfg.Server.Version, GitCommit)
	checker.RegisterCheck("harness", health.HarnessCheck(proc))
	if store != nil {
		checker.RegisterOptionalCheck("archive", health.ArchiveCheck(store))
	}

	if cfg.Server.HTTPAddr != "" {
		srvOpts := []httpserver.Option{
			httpserver.WithBoards(reg),
			httpserver.WithNavigator(controller),
			httpserver.WithHub(hub),
			httpserver.WithRateLimiter(limiter),
		}
		if store != nil {
			srvOpts = append(srvOpts, httpserver.WithArchive(store))
		}
		httpServer := httpserver.NewHTTPServer(cfg.Server.HTTPAddr, logger, checker, srvOpts...)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", "error", err)
			shut.Shutdown(shutdown.DefaultTimeout)
			return err
		}
		shut.Register("http", httpServer.Stop)
	}

	output, err := proc.Start(ctx)
	if err != nil {
		logger.Error("Failed to start harness", "command", cfg.Harness.Command, "error", err)
		shut.Shutdown(shutdown.DefaultTimeout)
		return err
	}

	// stdout belongs to the MCP transport in MCP mode.
	var stream io.Reader = output
	if !cfg.Viewer.BoardOnly && !cfg.Server.MCP {
		stream = io.TeeReader(output, os.Stdout)
	}

	handler := parser.HandlerFunc(func(ev parser.Event) {
		controller.HandleEvent(ev)
		hub.BoardChanged()
	})
	parsed := parser.New(logger, m).Start(ctx, stream, handler)

	// The last games are held for a score line that will not come.
	streamDone := make(chan error, 1)
	flushed := make(chan struct{})
	go func() {
		err := <-parsed
		controller.Flush()
		close(flushed)
		streamDone <- err
	}()

	// Runs first: stopping the harness ends the stream, and the flush has to
	// reach the archive before it closes.
	shut.Register("harness", func(ctx context.Context) error {
		err := proc.Stop()
		select {
		case <-flushed:
		case <-ctx.Done():
			return ctx.Err()
		}
		return err
	})

	var mcpDone <-chan error
	if cfg.Server.MCP {
		mcpDone = serveMCP(cfg, logger, m, limiter, reg, controller, store, proc)
	}

	stopSignals := shut.HandleSignals()
	defer stopSignals()

	select {
	case err := <-streamDone:
		if err != nil {
			logger.Error("Harness stream failed", "error", err)
			break
		}
		<-proc.Done()
		if err := proc.Err(); err != nil {
			logger.Warn("Harness exited with error", "error", err)
		} else {
			logger.Info("Harness exited")
		}
	case err := <-mcpDone:
		if err != nil {
			logger.Error("MCP server error", "error", err)
		}
	case <-shut.Done():
	}

	if err := shut.Shutdown(shutdown.DefaultTimeout); err != nil {
		logger.Warn("Shutdown finished with errors", "error", err)
	}
	return nil
}

func buildSink(cfg *config.Config, store *archive.Store, logger logging.ContextLogger) registry.Sink {
	var sinks registry.MultiSink
	if !cfg.Viewer.NoSGF {
		sinks = append(sinks, &registry.FileSink{
			Dir:     cfg.Viewer.SGFDir,
			Written: func(path string) { logger.Info("Saved game", "path", path) },
		})
	}
	if store != nil {
		sinks = append(sinks, store)
	}
	if len(sinks) == 0 {
		return registry.DiscardSink{}
	}
	return sinks
}

func serveMCP(
	cfg *config.Config,
	logger logging.ContextLogger,
	m *metrics.PrometheusCollector,
	limiter *ratelimit.Limiter,
	reg *registry.Registry,
	controller *watcher.Controller,
	store *archive.Store,
	proc *harness.Process,
) <-chan error {
	mcpServer := server.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		server.WithLogging(),
	)

	tools := mcptools.NewToolsHandler(reg, controller, logger)
	tools.SetMiddleware(mcptools.NewMiddleware(logger, m, limiter))
	if store != nil {
		tools.SetArchive(store)
		tools.SetPositionCache(cache.NewLRU[string, string](cfg.Archive.CacheSize))
	}
	tools.SetStatus(func() mcptools.Status {
		active, finished := reg.Counts()
		st := mcptools.Status{
			HarnessRunning:   proc.IsRunning(),
			InProgress:       controller.InProgress(),
			ActiveBoards:     active,
			FinishedBoards:   finished,
			EndgameThreshold: reg.PostEndgameThreshold(),
		}
		if store != nil {
			st.ArchivedGames, _ = store.Count()
		}
		return st
	})
	tools.RegisterTools(mcpServer)

	logger.Info("MCP server ready on stdio")
	done := make(chan error, 1)
	go func() {
		done <- server.ServeStdio(mcpServer)
	}()
	return done
}
