package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/fargate-tools/ecs-metrics-exporter/internal/transport"
	"github.com/fargate-tools/ecs-metrics-exporter/internal/transport/dto"
)

const maxErrorBody = 256

// HTTPFetcher implements transport.MetadataFetcher against the Task Metadata endpoint
type HTTPFetcher struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
}

var _ transport.MetadataFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher for the given metadata base URL.
// maxRetries is the number of extra attempts made on 5xx responses and
// transport errors; 0 disables retrying.
func NewHTTPFetcher(baseURL string, timeout time.Duration, maxRetries int) *HTTPFetcher {
	if maxRetries < 0 {
		maxRetries = 0
	}

	httpTransport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &HTTPFetcher{
		httpClient: &http.Client{
			Transport: httpTransport,
			Timeout:   timeout,
		},
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: maxRetries,
	}
}

// FetchTask retrieves and decodes the task descriptor
func (c *HTTPFetcher) FetchTask(ctx context.Context) (*dto.TaskMetadata, error) {
	task := &dto.TaskMetadata{}
	if err := c.getJSON(ctx, transport.TaskPath, task); err != nil {
		return nil, err
	}
	return task, nil
}

// FetchStats retrieves and decodes the per-container stats snapshot
func (c *HTTPFetcher) FetchStats(ctx context.Context) (*dto.TaskStats, error) {
	stats := &dto.TaskStats{}
	if err := c.getJSON(ctx, transport.StatsPath, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// FetchRaw retrieves a document verbatim, only checking that it is valid JSON
func (c *HTTPFetcher) FetchRaw(ctx context.Context, path string) (json.RawMessage, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &transport.DecodeError{URL: c.baseURL + path, Err: fmt.Errorf("invalid JSON document")}
	}
	return json.RawMessage(body), nil
}

// Close cleans up resources
func (c *HTTPFetcher) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPFetcher) getJSON(ctx context.Context, path string, v interface{}) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &transport.DecodeError{URL: c.baseURL + path, Err: err}
	}
	return nil
}

func (c *HTTPFetcher) get(ctx context.Context, path string) ([]byte, error) {
	logger := log.FromContext(ctx).WithName("metadata-fetcher")
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &transport.FetchError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return nil, &transport.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &transport.FetchError{URL: url, StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}
	if err != nil {
		return nil, &transport.FetchError{URL: url, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	logger.V(1).Info("Fetched metadata document", "url", url, "bytes", len(body))
	return body, nil
}

// doWithRetry executes the request, retrying 5xx responses and transport errors
// with exponential backoff. The last 5xx response is returned once retries run out.
func (c *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	logger := log.FromContext(ctx).WithName("metadata-fetcher")

	backoff := wait.Backoff{
		Steps:    c.maxRetries + 1,
		Duration: 250 * time.Millisecond,
		Factor:   2.0,
		Jitter:   0.1,
		Cap:      4 * time.Second,
	}

	var resp *http.Response
	var lastErr error
	attempt := 0
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		attempt++
		if resp != nil {
			resp.Body.Close()
			resp = nil
		}

		r, err := c.httpClient.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			logger.V(1).Info("Metadata request failed", "url", req.URL.String(), "attempt", attempt, "error", err.Error())
			return false, nil
		}
		lastErr = nil
		resp = r
		if r.StatusCode >= 500 {
			logger.V(1).Info("Metadata endpoint returned server error", "url", req.URL.String(),
				"attempt", attempt, "status", r.StatusCode)
			return false, nil
		}
		return true, nil
	})

	if err == nil {
		return resp, nil
	}
	if wait.Interrupted(err) && ctx.Err() == nil {
		if resp != nil {
			return resp, nil
		}
		if lastErr != nil {
			return nil, lastErr
		}
	}
	if resp != nil {
		resp.Body.Close()
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, err
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
