package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/rpggio/feedsync/internal/config"
	"github.com/rpggio/feedsync/internal/engine"
	"github.com/rpggio/feedsync/internal/mcp"
	"github.com/rpggio/feedsync/internal/scheduler"
	"github.com/rpggio/feedsync/internal/transport"
	"github.com/rpggio/feedsync/internal/watch"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync engine and its MCP server",
		Long: `Run the sync engine with its scheduler, the device log watcher and the
MCP server. The transport (stdio or http) comes from server.transport.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, cmd.ErrOrStderr())
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions, errOut io.Writer) error {
	// Logs go to stderr so stdout stays clean for stdio JSON-RPC.
	app, logCloser, err := openApp(opts, errOut)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	defer app.Close()
	logger := app.Logger
	cfg := app.Config

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logBusyTransitions(app.Controller.Status(), logger.With("component", "engine"))

	errc := make(chan error, 3)
	running := 0

	sched := scheduler.New(app.Controller, scheduler.Config{
		RefreshInterval: cfg.Sync.RefreshInterval,
		RefreshOnStart:  cfg.Remote.BaseURL != "",
	}, logger.With("component", "scheduler"))
	running++
	go func() { errc <- sched.Run(ctx) }()

	if cfg.Device.Watch && len(app.DevicePaths()) > 0 {
		w, err := watch.New(app.DevicePaths(), app.Controller, cfg.Device.Debounce, logger.With("component", "watch"))
		if err != nil {
			return WrapExitError(ExitCommandError, "device watcher", err)
		}
		defer w.Close()
		running++
		go func() { errc <- w.Run(ctx) }()
	}

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Sync:       app.Controller,
			Timeline:   app.Timeline,
			Status:     app.Controller.Status(),
			Watermarks: app.Watermarks,
		},
		AuthToken:     cfg.Server.AuthToken,
		TransportMode: cfg.Server.Transport,
		Logger:        logger.With("component", "mcp"),
	})

	running++
	if cfg.Server.Transport == config.TransportStdio {
		logger.Info("starting stdio transport")
		go func() { errc <- mcpServer.Run(ctx, &sdkmcp.StdioTransport{}) }()
	} else {
		go func() { errc <- serveHTTP(ctx, app, mcpServer) }()
	}

	// The first component to stop takes the others down with it.
	var firstErr error
	for i := 0; i < running; i++ {
		err := <-errc
		if err != nil && !errors.Is(err, context.Canceled) && firstErr == nil {
			firstErr = err
		}
		cancel()
	}
	logger.Info("shut down")
	if firstErr != nil {
		return WrapExitError(ExitFailure, "server error", firstErr)
	}
	return nil
}

func serveHTTP(ctx context.Context, app *App, mcpServer *sdkmcp.Server) error {
	cfg := app.Config
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:      false,
			SessionTimeout: 30 * time.Minute,
		},
	)
	router := transport.NewServer(transport.Deps{
		MCP:        mcpHandler,
		Status:     app.Controller.Status(),
		Watermarks: app.Watermarks,
		AuthToken:  cfg.Server.AuthToken,
		Logger:     app.Logger.With("component", "http"),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		app.Logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	app.Logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// logBusyTransitions logs every busy/idle change of the engine.
func logBusyTransitions(status *engine.StatusCache, logger *slog.Logger) {
	status.Subscribe(func(s engine.Snapshot) {
		if s.Busy {
			logger.Info("sync busy", "phase", s.Phase, "reasons", s.BusyReasons)
			return
		}
		if s.LastError != "" {
			logger.Info("sync idle", "last_error", s.LastError)
			return
		}
		logger.Info("sync idle")
	})
}
