package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/feedsync/internal/devicelog"
	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/engine"
	"github.com/rpggio/feedsync/internal/mcp"
	"github.com/rpggio/feedsync/internal/remote"
	"github.com/rpggio/feedsync/internal/scheduler"
	"github.com/rpggio/feedsync/internal/sqlite"
	"github.com/rpggio/feedsync/internal/transport"
)

// Options configure a TestServer.
type Options struct {
	Token   string
	Fetcher remote.Fetcher
	Calls   []devicelog.CallEvent
	SMS     []devicelog.SMSEvent
}

// TestServer is the full HTTP stack over an in-memory timeline database with
// a running scheduler.
type TestServer struct {
	Server     *httptest.Server
	DB         *sqlite.DB
	Token      string
	Controller *engine.Controller
	Watermarks *sqlite.WatermarkRepository
	Timeline   *timeline.Service
}

func New(t *testing.T, opts Options) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	timelineRepo := sqlite.NewTimelineRepository(db, 0)
	watermarkRepo := sqlite.NewWatermarkRepository(db)
	timelineSvc := timeline.NewService(timelineRepo, nil)

	readers := &devicelog.Readers{
		Calls: &devicelog.SliceSource[devicelog.CallEvent]{Events: opts.Calls},
		SMS:   &devicelog.SliceSource[devicelog.SMSEvent]{Events: opts.SMS},
		Deps: devicelog.Deps{
			Timeline:   timelineRepo,
			Watermarks: watermarkRepo,
			Contacts:   sqlite.NewContactRepository(db),
			Location:   time.UTC,
		},
	}
	controller := engine.NewController(engine.Config{Location: time.UTC}, engine.Deps{
		Timeline:     timelineRepo,
		Watermarks:   watermarkRepo,
		Fetcher:      opts.Fetcher,
		Readers:      readers,
		Connectivity: engine.NewToggle(opts.Fetcher != nil),
		Readiness:    engine.NewToggle(true),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = scheduler.New(controller, scheduler.Config{}, nil).Run(ctx)
	}()

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Sync:       controller,
			Timeline:   timelineSvc,
			Status:     controller.Status(),
			Watermarks: watermarkRepo,
		},
		AuthToken:     opts.Token,
		TransportMode: "http",
		WaitTimeout:   10 * time.Second,
	})
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{SessionTimeout: time.Minute},
	)
	server := httptest.NewServer(transport.NewServer(transport.Deps{
		MCP:        mcpHandler,
		Status:     controller.Status(),
		Watermarks: watermarkRepo,
		AuthToken:  opts.Token,
	}))

	t.Cleanup(func() {
		server.Close()
		cancel()
		<-done
		_ = db.Close()
	})

	return &TestServer{
		Server:     server,
		DB:         db,
		Token:      opts.Token,
		Controller: controller,
		Watermarks: watermarkRepo,
		Timeline:   timelineSvc,
	}
}

// Connect opens an MCP client session over the streamable HTTP endpoint.
func (ts *TestServer) Connect(t *testing.T) *sdkmcp.ClientSession {
	t.Helper()
	httpClient := &http.Client{Transport: bearerTransport{token: ts.Token, base: http.DefaultTransport}}
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	session, err := client.Connect(ctx, &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: httpClient,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if b.token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	return b.base.RoundTrip(req)
}
