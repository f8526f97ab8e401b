package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/wehubfusion/nucleares/internal/httpconn"
)

// maxBodyBytes caps how much of a response is read; variable values are short.
const maxBodyBytes = 64 << 10

// HTTPSource talks to the web server embedded in the game.
//
// Reads are GET /?Variable=NAME, writes are POST /?Variable=NAME&value=VALUE.
// Any non-2xx status is a transport failure.
type HTTPSource struct {
	mu     sync.RWMutex
	config httpconn.ConnectionConfig
	base   *url.URL
	client *http.Client
}

// NewHTTPSource creates a source for the given connection settings.
// A nil config uses httpconn.DefaultConnectionConfig.
func NewHTTPSource(config *httpconn.ConnectionConfig) (*HTTPSource, error) {
	if config == nil {
		config = httpconn.DefaultConnectionConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection config: %w", err)
	}

	return &HTTPSource{
		config: *config,
		base:   config.BaseURL(),
		client: httpconn.NewHTTPClient(config),
	}, nil
}

// SetEndpoint re-targets the source. Requests already in flight finish against the
// previous endpoint.
func (s *HTTPSource) SetEndpoint(host string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.config
	next.Host = host
	next.Port = port
	if err := next.Validate(); err != nil {
		return err
	}

	s.config = next
	s.base = next.BaseURL()
	return nil
}

// Endpoint returns the current host and port.
func (s *HTTPSource) Endpoint() (string, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Host, s.config.Port
}

// Read implements DataSource.
func (s *HTTPSource) Read(ctx context.Context, name string) (string, error) {
	body, err := s.do(ctx, http.MethodGet, name, url.Values{"Variable": {name}})
	if err != nil {
		return "", classify(ctx, name, err)
	}
	return strings.TrimSpace(body), nil
}

// Write implements DataSource.
func (s *HTTPSource) Write(ctx context.Context, name, value string) error {
	_, err := s.do(ctx, http.MethodPost, name, url.Values{"Variable": {name}, "value": {value}})
	return classify(ctx, name, err)
}

func (s *HTTPSource) do(ctx context.Context, method, name string, query url.Values) (string, error) {
	s.mu.RLock()
	target := *s.base
	s.mu.RUnlock()
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Variable: name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return string(body), nil
}

// StatusError is the underlying cause of a transport error for a non-2xx response.
type StatusError struct {
	Variable   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}
