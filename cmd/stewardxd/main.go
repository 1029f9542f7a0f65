// Command stewardxd is the stewardx scheduler daemon: it loads
// configuration, opens the SQLite store, and wires the Persistence
// Gateway, Executor, TaskWatcher, Reactor, HTTP API Adapter and control
// socket together, then runs until told to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/gokayokyay/stewardx/internal/api"
	"github.com/gokayokyay/stewardx/internal/bus"
	"github.com/gokayokyay/stewardx/internal/config"
	"github.com/gokayokyay/stewardx/internal/executor"
	"github.com/gokayokyay/stewardx/internal/persistence"
	"github.com/gokayokyay/stewardx/internal/reactor"
	"github.com/gokayokyay/stewardx/internal/socket"
	"github.com/gokayokyay/stewardx/internal/telemetry"
	"github.com/gokayokyay/stewardx/internal/webhook"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.1-dev"

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:

  %s [flags]             Start the scheduler daemon in the foreground

FLAGS:
`, os.Args[0], os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
ENVIRONMENT VARIABLES:
  STEWARDX_CONFIG          Path to config.json (default ~/.config/stewardx/config.json)
  STEWARDX_DATABASE_URL    SQLite DSN or file path (required)
  STEWARDX_SERVER_HOST     HTTP bind host (default 127.0.0.1)
  STEWARDX_SERVER_PORT     HTTP bind port (default 3000)
  STEWARDX_DIR             Runtime directory for the control socket (default /tmp)
`)
}

func main() {
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Usage = printUsage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer stop()

	bootLogger := slog.Default()
	cfg, err := config.Load(bootLogger)
	if err != nil {
		fatalStartup(nil, "E_CONFIG_LOAD", err)
	}

	tty := isatty.IsTerminal(os.Stdout.Fd())
	logger, closer, err := telemetry.NewLogger(cfg.LogsFolderAbs, *logLevel, tty)
	if err != nil {
		fatalStartup(nil, "E_LOGGER_INIT", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)
	logger.Info("startup phase", "phase", "config_loaded", "version", Version)

	cache := config.NewCache(cfg, logger)
	if err := cache.Watch(ctx); err != nil {
		logger.Warn("config hot-reload watcher failed to start", "error", err)
	}

	store, err := persistence.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		fatalStartup(logger, "E_STORE_OPEN", err)
	}
	defer store.Close()
	logger.Info("startup phase", "phase", "schema_migrated")

	gw := persistence.NewGateway(store, logger)
	defer gw.Close()

	outputs := bus.New(logger)
	ex := executor.New(logger)
	defer ex.Close()

	hooks := webhook.New(logger)
	r := reactor.New(gw, ex, outputs, hooks, logger)
	defer r.Close()

	go r.RunTicker(ctx)
	logger.Info("startup phase", "phase", "reactor_started")

	apiServer := api.New(api.Config{
		Reactor:           r,
		Logger:            logger,
		ServerCRUDFeature: cache.Get().ServerCRUDFeature,
		PanelFeature:      cache.Get().PanelFeature,
	})
	addr := net.JoinHostPort(cfg.ServerHost, fmt.Sprintf("%d", cfg.ServerPort))
	httpServer := &http.Server{Addr: addr, Handler: apiServer.Handler()}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http_listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sock := socket.New(activeTaskCounter{ex}, stop, logger)
	go func() {
		if err := sock.Listen(ctx); err != nil {
			logger.Error("control_socket_error", "error", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("http_server_error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("shutdown complete")
}

// activeTaskCounter adapts *executor.Executor to socket.StatusProvider.
type activeTaskCounter struct {
	ex *executor.Executor
}

func (a activeTaskCounter) ActiveTaskCount(ctx context.Context) (int, error) {
	ids, err := a.ex.ActiveTaskIDs(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func fatalStartup(logger *slog.Logger, reasonCode string, err error) {
	message := ""
	if err != nil {
		message = err.Error()
	}
	if logger != nil {
		logger.Error("startup failure", "reason_code", reasonCode, "error", message)
	} else {
		fmt.Fprintf(os.Stderr, "startup failure: reason_code=%s error=%s\n", reasonCode, message)
	}
	os.Exit(1)
}
