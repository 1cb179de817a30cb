package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	activitiesPath  = "/activities"
	maxResponseSize = 8 << 20
	defaultTimeout  = 30 * time.Second
)

// Fetcher retrieves one filtered page of remote activities. It holds no
// incremental state between calls.
type Fetcher interface {
	FetchActivities(ctx context.Context, f Filter) (*Batch, error)
}

// Client fetches activities from the remote feed over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Client. A nil httpClient gets a default client
// with a 30s timeout.
func NewClient(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		logger:     logger,
	}
}

// FetchActivities implements Fetcher.
func (c *Client) FetchActivities(ctx context.Context, f Filter) (*Batch, error) {
	url := c.baseURL + activitiesPath + "?" + f.Values().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building activities request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, classifyTransportError(err)
	}
	c.logger.Debug("remote activities fetched",
		"filter", f.String(),
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		_, decodeErr := Decode(body, c.logger)
		var serverErr *ServerError
		if errors.As(decodeErr, &serverErr) {
			serverErr.HTTPStatus = resp.StatusCode
			return nil, serverErr
		}
		return nil, &ServerError{
			Code:        http.StatusText(resp.StatusCode),
			Description: clip(strings.TrimSpace(string(body))),
			HTTPStatus:  resp.StatusCode,
		}
	}

	return Decode(body, c.logger)
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
