package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/jcdickinson/rsdocseek/internal/rpc"
)

// Client talks to a daemon over its unix socket.
type Client struct {
	socketPath string
	httpClient *http.Client
}

// StatusError is a non-200 reply from the daemon. Message is the "error"
// field of the body when there is one, otherwise the raw body.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Code, e.Message)
}

func NewClient(socketPath string) *Client {
	dialer := &net.Dialer{}
	return &Client{
		socketPath: socketPath,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return dialer.DialContext(ctx, "unix", socketPath)
				},
			},
			// Loads of large remote payloads stream progress for minutes.
			Timeout: 5 * time.Minute,
		},
	}
}

// ConnectOrSpawn returns a client for the daemon on socketPath, starting
// one in the background if nothing is listening yet.
func ConnectOrSpawn(socketPath string) (*Client, error) {
	client := NewClient(socketPath)
	if client.IsAvailable() {
		return client, nil
	}

	if err := Spawn(); err != nil {
		return nil, fmt.Errorf("spawning daemon: %w", err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case <-ticker.C:
			if client.IsAvailable() {
				return client, nil
			}
		case <-timeout:
			return nil, fmt.Errorf("daemon did not start within 5 seconds")
		}
	}
}

// IsAvailable reports whether something accepts connections on the socket.
func (c *Client) IsAvailable() bool {
	conn, err := net.DialTimeout("unix", c.socketPath, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Load asks the daemon to load indexes, forwarding its progress messages to
// onProgress as they arrive. Per-index failures are reported in the
// results, not as an error.
func (c *Client) Load(ctx context.Context, indexes []rpc.IndexSpec, onProgress func(string)) (*rpc.LoadResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/load", rpc.LoadRequest{Indexes: indexes})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result rpc.LoadResponse
	dec := json.NewDecoder(resp.Body)
	for dec.More() {
		var line rpc.ProgressLine
		if err := dec.Decode(&line); err != nil {
			return nil, fmt.Errorf("decoding progress: %w", err)
		}
		switch {
		case line.Type == "progress" && onProgress != nil:
			onProgress(line.Message)
		case line.Type == "result" && line.Result != nil:
			result.Results = append(result.Results, *line.Result)
		}
	}
	return &result, nil
}

func (c *Client) Search(ctx context.Context, req rpc.SearchRequest) (*rpc.SearchResponse, error) {
	var resp rpc.SearchResponse
	if err := c.call(ctx, http.MethodPost, "/search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Status(ctx context.Context) (*rpc.StatusResponse, error) {
	var resp rpc.StatusResponse
	if err := c.call(ctx, http.MethodGet, "/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Unload(ctx context.Context, names []string) (*rpc.UnloadResponse, error) {
	var resp rpc.UnloadResponse
	if err := c.call(ctx, http.MethodPost, "/unload", rpc.UnloadRequest{Names: names}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ClearCache(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/clear-cache", nil, nil)
}

func (c *Client) Shutdown(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/shutdown", nil, nil)
}

// call sends body as JSON and decodes the reply into result, if non-nil.
func (c *Client) call(ctx context.Context, method, path string, body, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result == nil {
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// do issues the request and turns a non-200 reply into a *StatusError. The
// caller owns the body of a successful response.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://unix"+path, rd)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending %s request: %w", path, err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	serr := &StatusError{Code: resp.StatusCode, Message: string(bytes.TrimSpace(raw))}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		serr.Message = payload.Error
	}
	return nil, serr
}
