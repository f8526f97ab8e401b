// Package httpconn holds the connection settings for the game's embedded web server.
package httpconn

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ConnectionConfig holds configuration for the game web server connection
type ConnectionConfig struct {
	// Host is the address of the machine running the game (e.g., "127.0.0.1")
	Host string

	// Port is the web server port configured in the game (default 8785)
	Port int

	// Timeout bounds a single request, including reading the body
	Timeout time.Duration

	// MaxIdleConns is the size of the keep-alive pool. It should be at least the
	// throttle capacity so throttled requests reuse connections.
	MaxIdleConns int
}

// DefaultConnectionConfig returns a configuration with the game's defaults
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Host:         "127.0.0.1",
		Port:         8785,
		Timeout:      5 * time.Second,
		MaxIdleConns: 16,
	}
}

// Validate checks the configuration before a client is built from it
func (c *ConnectionConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("connection config cannot be nil")
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// BaseURL returns the root URL of the web server.
func (c *ConnectionConfig) BaseURL() *url.URL {
	return &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/",
	}
}

// NewHTTPClient builds the *http.Client used for every request.
func NewHTTPClient(c *ConnectionConfig) *http.Client {
	idle := c.MaxIdleConns
	if idle <= 0 {
		idle = DefaultConnectionConfig().MaxIdleConns
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = idle
	transport.MaxIdleConnsPerHost = idle

	return &http.Client{
		Transport: transport,
		Timeout:   c.Timeout,
	}
}
