// Command campowerd is the camera sensor power daemon. It attaches the
// sensors described in board.yaml and serves the control API.
// Run with --mock to use the simulated bench (no GPIO or regulator access).
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/micro-nova/campower/internal/api"
	"github.com/micro-nova/campower/internal/auth"
	"github.com/micro-nova/campower/internal/backend"
	"github.com/micro-nova/campower/internal/config"
	"github.com/micro-nova/campower/internal/controller"
	"github.com/micro-nova/campower/internal/events"
	"github.com/micro-nova/campower/internal/identity"
	"github.com/micro-nova/campower/internal/models"
	"github.com/micro-nova/campower/internal/zeroconf"
)

func main() {
	var (
		mock    = flag.Bool("mock", false, "use the simulated bench instead of real hardware")
		addr    = flag.String("addr", ":8080", "HTTP listen address")
		cfgDir  = flag.String("config-dir", "", "config directory (default: ~/.config/campower)")
		cfgFile = flag.String("config", "", "board file (default: <config-dir>/board.yaml)")
		debug   = flag.Bool("debug", false, "enable debug logging")
		noMDNS  = flag.Bool("no-mdns", false, "do not advertise the API over mDNS")
	)
	flag.Parse()

	// Configure logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Resolve config directory
	if *cfgDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Error("cannot determine home directory", "err", err)
			os.Exit(1)
		}
		*cfgDir = filepath.Join(home, ".config", "campower")
	}
	if err := os.MkdirAll(*cfgDir, 0755); err != nil {
		slog.Error("cannot create config directory", "path", *cfgDir, "err", err)
		os.Exit(1)
	}
	if *cfgFile == "" {
		*cfgFile = filepath.Join(*cfgDir, config.DefaultFileName)
	}

	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Board description
	store := config.NewYAMLStore(*cfgFile)
	board, err := store.Load()
	if err != nil {
		slog.Error("cannot load board description", "path", *cfgFile, "err", err)
		os.Exit(1)
	}
	if *mock {
		board.Backend = config.BackendMock
	}

	deps, release, err := backend.Build(board)
	if err != nil {
		slog.Error("board subsystem initialization failed", "backend", board.Backend, "err", err)
		os.Exit(1)
	}
	defer release()

	bus := events.NewBus()

	ctrl, err := controller.New(board, deps, bus)
	if err != nil {
		slog.Error("controller initialization failed", "err", err)
		os.Exit(1)
	}

	// Reload sensors when the board file changes. The backend is fixed for
	// the life of the process.
	running := board.Backend
	go func() {
		err := config.Watch(ctx, *cfgFile, func() {
			next, err := store.Load()
			if err != nil {
				slog.Warn("board file rejected, keeping current sensors", "err", err)
				return
			}
			if *mock {
				next.Backend = config.BackendMock
			}
			if next.Backend != running {
				slog.Warn("backend change needs a restart", "running", running, "file", next.Backend)
			}
			if err := ctrl.Reload(ctx, next); err != nil {
				slog.Error("board reload failed", "err", err)
			}
		})
		if err != nil {
			slog.Warn("board watch failed", "err", err)
		}
	}()

	// Auth service
	authSvc, err := auth.NewService(*cfgDir)
	if err != nil {
		slog.Error("auth service initialization failed", "err", err)
		os.Exit(1)
	}
	defer authSvc.Close()

	id := identity.Get(*cfgDir)

	// Zeroconf mDNS registration
	if !*noMDNS {
		port := 80
		if parts := strings.SplitN(*addr, ":", 2); len(parts) == 2 && parts[1] != "" {
			if p, err := strconv.Atoi(parts[1]); err == nil {
				port = p
			}
		}
		zc := zeroconf.New(id.Hostname, port, id.Version, id.Model)
		go func() {
			if err := zc.Start(ctx); err != nil {
				slog.Warn("zeroconf failed", "err", err)
			}
		}()
	}

	info := func() models.Info {
		return models.Info{
			Hostname: id.Hostname,
			Version:  id.Version,
			Model:    id.Model,
			Backend:  running,
			Mock:     running == config.BackendMock,
		}
	}

	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.NewRouter(ctrl, authSvc, bus, info),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE)
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("campowerd listening", "addr", *addr, "backend", running, "config", *cfgFile)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}

	// Sensors still powered are brought down before their rails are released.
	ctrl.Close(shutCtx)

	slog.Info("shutdown complete")
}
