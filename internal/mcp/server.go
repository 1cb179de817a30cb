package mcp

import (
	"context"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/domain/watermark"
	"github.com/rpggio/feedsync/internal/engine"
)

// SyncService issues sync requests. engine.Controller implements it.
type SyncService interface {
	RequestRefresh() <-chan engine.Result
	RequestOlder() <-chan engine.Result
	RequestDeviceChanged(kind engine.DeviceKind) <-chan engine.Result
}

// TimelineService reads the timeline store.
type TimelineService interface {
	List(ctx context.Context, opts timeline.ListOptions) ([]timeline.Record, error)
	Count(ctx context.Context) (int64, error)
}

// StatusService reports engine status. engine.StatusCache implements it.
type StatusService interface {
	Snapshot() engine.Snapshot
}

// Services contains everything the tools need.
type Services struct {
	Sync       SyncService
	Timeline   TimelineService
	Status     StatusService
	Watermarks watermark.Store
}

// Config contains server configuration.
type Config struct {
	Services      Services
	AuthToken     string
	TransportMode string // "stdio" or "http"
	// WaitTimeout bounds how long a sync tool waits for its result.
	WaitTimeout time.Duration
	Logger      *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = time.Minute
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "feedsync",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Stdio is local only; HTTP checks the bearer token when one is configured.
	if cfg.TransportMode != "stdio" && cfg.AuthToken != "" {
		server.AddReceivingMiddleware(authMiddleware(cfg.AuthToken))
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Services, cfg.WaitTimeout)

	return server
}
