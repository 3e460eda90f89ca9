// Package rpcclient is the thin HTTP client every juststart CLI
// subcommand uses to talk to a running daemon. Grounded on
// mux_client.go's MuxClient.doRequest shape (marshal body, decode
// response, surface a {"error": "..."} body as a Go error), adapted
// from a unix-socket transport to TCP and with every request signed
// via internal/rpcauth instead of relying on socket permissions.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xz-dev/juststart/internal/rpcauth"
	"github.com/xz-dev/juststart/internal/runnerconfig"
)

// Client is a signed RPC client bound to one daemon address.
type Client struct {
	Addr       string // host:port
	Secret     []byte
	httpClient *http.Client
}

// New returns a Client that signs every request with secret.
func New(addr string, secret []byte) *Client {
	return &Client{Addr: addr, Secret: secret, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
	}

	headers, err := rpcauth.Sign(c.Secret, method, path, bodyBytes, time.Now())
	if err != nil {
		return fmt.Errorf("signing request: %w", err)
	}

	url := fmt.Sprintf("http://%s%s", c.Addr, path)
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", c.Addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(raw))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Info mirrors the daemon's /utils/info response.
type Info struct {
	Pid       int       `json:"pid"`
	StartedAt time.Time `json:"startedAt"`
	Version   struct {
		GitRepo   string `json:"gitRepo,omitempty"`
		GitBranch string `json:"gitBranch,omitempty"`
		GitCommit string `json:"gitCommit,omitempty"`
		BuildTime string `json:"buildTime,omitempty"`
	} `json:"version"`
}

// StatusEntry mirrors one row of the daemon's /manager/status response.
type StatusEntry struct {
	Path        string    `json:"Path"`
	Flags       []string  `json:"Flags"`
	ChangedTime time.Time `json:"ChangedTime"`
}

func (c *Client) Info(ctx context.Context) (Info, error) {
	var info Info
	err := c.doRequest(ctx, http.MethodGet, "/utils/info", nil, &info)
	return info, err
}

func (c *Client) Shutdown(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodPost, "/utils/shutdown", nil, nil)
}

func (c *Client) Start(ctx context.Context, path string, cfg *runnerconfig.RunnerConfig) error {
	return c.doRequest(ctx, http.MethodPost, "/manager/start", map[string]any{"path": path, "config": cfg}, nil)
}

// Stop stops path. checkRunning mirrors spec.md's stop_runner
// check_running parameter: when true, the stop is skipped (but the
// roster/table removal is not) if the service is not currently running.
func (c *Client) Stop(ctx context.Context, path string, checkRunning bool) error {
	body := map[string]any{"path": path, "check_running": checkRunning}
	return c.doRequest(ctx, http.MethodPost, "/manager/stop", body, nil)
}

func (c *Client) Restart(ctx context.Context, path string) error {
	return c.doRequest(ctx, http.MethodPost, "/manager/restart", map[string]string{"path": path}, nil)
}

func (c *Client) Reload(ctx context.Context, path string) error {
	return c.doRequest(ctx, http.MethodPost, "/manager/reload", map[string]string{"path": path}, nil)
}

func (c *Client) Status(ctx context.Context) ([]StatusEntry, error) {
	var out []StatusEntry
	err := c.doRequest(ctx, http.MethodGet, "/manager/status", nil, &out)
	return out, err
}

func (c *Client) Clean(ctx context.Context) ([]string, error) {
	var out struct {
		Reaped []string `json:"reaped"`
	}
	err := c.doRequest(ctx, http.MethodPost, "/manager/clean", nil, &out)
	return out.Reaped, err
}

func (c *Client) RosterAdd(ctx context.Context, path string) error {
	return c.doRequest(ctx, http.MethodPost, "/roster/add", map[string]string{"path": path}, nil)
}

func (c *Client) RosterDelete(ctx context.Context, path string) error {
	return c.doRequest(ctx, http.MethodPost, "/roster/delete", map[string]string{"path": path}, nil)
}

func (c *Client) RosterEnable(ctx context.Context, path string) error {
	return c.doRequest(ctx, http.MethodPost, "/roster/enable", map[string]string{"path": path}, nil)
}

func (c *Client) RosterDisable(ctx context.Context, path string) error {
	return c.doRequest(ctx, http.MethodPost, "/roster/disable", map[string]string{"path": path}, nil)
}

func (c *Client) RosterList(ctx context.Context) (map[string]bool, error) {
	var out map[string]bool
	err := c.doRequest(ctx, http.MethodGet, "/roster/list", nil, &out)
	return out, err
}

// Ping reports whether a daemon is reachable and authenticating
// correctly at c.Addr.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Info(ctx)
	return err
}
