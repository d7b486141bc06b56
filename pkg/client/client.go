// Package client is the operator-facing counterpart of internal/control:
// it dials the control channel, writes one request line, and reads back
// the reply until the supervisor closes the connection (spec.md §6). There
// is no HTTP layer and no TLS — the
// control channel is a local line-oriented socket, not a network API.
package client

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
)

// Config holds client configuration.
type Config struct {
	Addr    string
	Timeout time.Duration
	Logger  *slog.Logger
}

// DefaultConfig returns the default control-channel address and timeout.
func DefaultConfig() Config {
	return Config{Addr: "localhost:4241", Timeout: 5 * time.Second}
}

// Client sends one control-channel request per call; each call opens and
// closes its own connection, matching the supervisor's one-command-per-
// connection protocol (spec.md §4.4).
type Client struct {
	addr    string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a control-channel client.
func New(cfg Config) *Client {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:4241"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{addr: cfg.Addr, timeout: cfg.Timeout, logger: cfg.Logger}
}

// IsReachable reports whether the supervisor's control channel accepts
// connections.
func (c *Client) IsReachable() bool {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		c.logger.Debug("supervisor unreachable", "error", err)
		return false
	}
	_ = conn.Close()
	return true
}

// Status requests status for every job (the bare "status" form).
func (c *Client) Status() (string, error) {
	return c.send("status")
}

// StatusJob requests status for one job, optionally scoped to an index.
func (c *Client) StatusJob(job string, index int) (string, error) {
	return c.send(target("status", job, index))
}

// Start issues the start command against a job, optionally scoped to an
// index (index < 0 means "all instances").
func (c *Client) Start(job string, index int) (string, error) {
	return c.send(target("start", job, index))
}

// Stop issues the stop command.
func (c *Client) Stop(job string, index int) (string, error) {
	return c.send(target("stop", job, index))
}

// Restart issues the restart command.
func (c *Client) Restart(job string, index int) (string, error) {
	return c.send(target("restart", job, index))
}

func target(cmd, job string, index int) string {
	if index < 0 {
		return fmt.Sprintf("%s %s", cmd, job)
	}
	return fmt.Sprintf("%s %s:%d", cmd, job, index)
}

// send writes one request line and reads back the full reply (which may
// itself be multiple newline-separated lines, as "status" with no
// argument is).
func (c *Client) send(line string) (string, error) {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return "", fmt.Errorf("dial supervisor: %w", err)
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return "", fmt.Errorf("write request: %w", err)
	}

	var b strings.Builder
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	reply := b.String()
	if strings.HasPrefix(reply, "error:") {
		return "", fmt.Errorf("%s", strings.TrimSpace(strings.TrimPrefix(reply, "error:")))
	}
	return reply, nil
}
