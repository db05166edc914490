// Package daemon probes the remote execution daemon a workspace points at.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Status is the outcome of one probe. A daemon that cannot be reached is a
// disconnected status, not an error.
type Status struct {
	Connected   bool
	DaemonID    string
	JinaVersion string
}

type statusResponse struct {
	Jina struct {
		Jina string `json:"jina"`
	} `json:"jina"`
	Jinad struct {
		ID string `json:"id"`
	} `json:"jinad"`
}

// Client queries GET {endpoint}/status
type Client struct {
	http    *http.Client
	timeout time.Duration
	log     *zap.Logger
}

func NewClient(timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		http:    &http.Client{},
		timeout: timeout,
		log:     log,
	}
}

// Status probes the daemon at endpoint. It only returns an error for an
// endpoint that is not a usable URL.
func (c *Client) Status(ctx context.Context, endpoint string) (Status, error) {
	statusURL, err := statusURL(endpoint)
	if err != nil {
		return Status{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return Status{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Info("Daemon unreachable", zap.String("endpoint", endpoint), zap.Error(err))
		return Status{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Info("Daemon returned non-OK status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
		)
		return Status{}, nil
	}

	var body statusResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		c.log.Info("Daemon returned malformed status", zap.String("endpoint", endpoint), zap.Error(err))
		return Status{}, nil
	}

	return Status{
		Connected:   true,
		DaemonID:    body.Jinad.ID,
		JinaVersion: body.Jina.Jina,
	}, nil
}

func statusURL(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("daemon endpoint is empty")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid daemon endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported daemon endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid daemon endpoint %q: missing host", endpoint)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/status"
	return u.String(), nil
}
