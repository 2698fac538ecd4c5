package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "kestrel/pkg/errors"
)

// HTTPClient talks to a clash-compatible engine control API.
type HTTPClient struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// HTTPClientConfig holds configuration for the HTTP bridge client.
type HTTPClientConfig struct {
	BaseURL string
	Secret  string
	Timeout time.Duration
}

// DefaultHTTPClientConfig returns default HTTP bridge configuration.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		BaseURL: "http://127.0.0.1:9090",
		Timeout: 10 * time.Second,
	}
}

// NewHTTPClient creates a new HTTP bridge client.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid bridge URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  cfg.Secret,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// do executes one authenticated request and decodes the JSON response into
// target when target is non-nil.
func (c *HTTPClient) do(ctx context.Context, op, method, endpoint string, body, target interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &pkgerrors.BridgeError{Op: op, Err: err}
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return &pkgerrors.BridgeError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &pkgerrors.BridgeError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &pkgerrors.BridgeError{Op: op, StatusCode: resp.StatusCode, Err: pkgerrors.ErrBridgeUnauthorized}
	case resp.StatusCode >= 400:
		// The engine reports elevation failures with a distinguished
		// error body so the UI can route them to the recovery flow.
		var apiErr struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		if strings.Contains(strings.ToLower(apiErr.Message), "elevation required") {
			return &pkgerrors.BridgeError{Op: op, StatusCode: resp.StatusCode, Err: pkgerrors.ErrElevationRequired}
		}
		return &pkgerrors.BridgeError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", firstNonEmpty(apiErr.Message, resp.Status)),
		}
	}

	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return &pkgerrors.BridgeError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// GetStatus fetches the engine's current runtime status.
func (c *HTTPClient) GetStatus(ctx context.Context) (*EngineStatus, error) {
	var status EngineStatus
	if err := c.do(ctx, "getStatus", http.MethodGet, "/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetRunMode fetches the engine's active routing mode.
func (c *HTTPClient) GetRunMode(ctx context.Context) (RunMode, error) {
	var resp struct {
		Mode RunMode `json:"mode"`
	}
	if err := c.do(ctx, "getRunMode", http.MethodGet, "/configs", nil, &resp); err != nil {
		return "", err
	}
	return resp.Mode, nil
}

// Start asks the host process to launch the engine.
func (c *HTTPClient) Start(ctx context.Context) error {
	return c.do(ctx, "start", http.MethodPost, "/engine/start", nil, nil)
}

// Stop asks the host process to stop the engine.
func (c *HTTPClient) Stop(ctx context.Context) error {
	return c.do(ctx, "stop", http.MethodPost, "/engine/stop", nil, nil)
}

// Restart asks the host process to restart the engine.
func (c *HTTPClient) Restart(ctx context.Context) error {
	return c.do(ctx, "restart", http.MethodPost, "/engine/restart", nil, nil)
}

// SetRunMode switches the engine's routing mode.
func (c *HTTPClient) SetRunMode(ctx context.Context, mode RunMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid run mode: %s", mode)
	}
	body := map[string]string{"mode": string(mode)}
	return c.do(ctx, "setRunMode", http.MethodPatch, "/configs", body, nil)
}

// SetSystemProxy enables or disables the OS-level proxy registration.
func (c *HTTPClient) SetSystemProxy(ctx context.Context, enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	return c.do(ctx, "setSystemProxy", http.MethodPost, "/system-proxy", body, nil)
}

// SetEnhancedMode enables or disables the engine's enhanced (TUN) mode.
// May fail with ErrElevationRequired.
func (c *HTTPClient) SetEnhancedMode(ctx context.Context, enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	return c.do(ctx, "setEnhancedMode", http.MethodPost, "/enhanced-mode", body, nil)
}

// GetTraffic fetches one instantaneous throughput reading.
func (c *HTTPClient) GetTraffic(ctx context.Context) (*Traffic, error) {
	var t Traffic
	if err := c.do(ctx, "getTraffic", http.MethodGet, "/traffic", nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// wireConnection is the engine's connection JSON with nested metadata.
type wireConnection struct {
	ID       string `json:"id"`
	Metadata struct {
		Host          string `json:"host"`
		SourceIP      string `json:"sourceIP"`
		DestinationIP string `json:"destinationIP"`
		ProcessPath   string `json:"processPath"`
	} `json:"metadata"`
	Upload      uint64    `json:"upload"`
	Download    uint64    `json:"download"`
	Start       time.Time `json:"start"`
	Chains      []string  `json:"chains"`
	Rule        string    `json:"rule"`
	RulePayload string    `json:"rulePayload"`
}

func (w *wireConnection) record() ConnectionRecord {
	return ConnectionRecord{
		ID:            w.ID,
		Host:          w.Metadata.Host,
		Process:       processName(w.Metadata.ProcessPath),
		SourceIP:      w.Metadata.SourceIP,
		DestinationIP: w.Metadata.DestinationIP,
		Rule:          w.Rule,
		RulePayload:   w.RulePayload,
		Chains:        w.Chains,
		Upload:        w.Upload,
		Download:      w.Download,
		StartedAt:     w.Start,
	}
}

// GetConnections fetches the current live connection snapshot.
func (c *HTTPClient) GetConnections(ctx context.Context) ([]ConnectionRecord, error) {
	var resp struct {
		Connections []wireConnection `json:"connections"`
	}
	if err := c.do(ctx, "getConnections", http.MethodGet, "/connections", nil, &resp); err != nil {
		return nil, err
	}
	records := make([]ConnectionRecord, 0, len(resp.Connections))
	for i := range resp.Connections {
		records = append(records, resp.Connections[i].record())
	}
	return records, nil
}

// CloseConnection asks the engine to close a single connection.
func (c *HTTPClient) CloseConnection(ctx context.Context, id string) error {
	return c.do(ctx, "closeConnection", http.MethodDelete, "/connections/"+url.PathEscape(id), nil, nil)
}

// CloseAllConnections asks the engine to close every live connection.
func (c *HTTPClient) CloseAllConnections(ctx context.Context) error {
	return c.do(ctx, "closeAllConnections", http.MethodDelete, "/connections", nil, nil)
}

// GetNodeGroups fetches all selectable node groups.
func (c *HTTPClient) GetNodeGroups(ctx context.Context) ([]NodeGroup, error) {
	var resp struct {
		Groups []NodeGroup `json:"groups"`
	}
	if err := c.do(ctx, "getNodeGroups", http.MethodGet, "/groups", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

// SelectNode switches a group's active node.
func (c *HTTPClient) SelectNode(ctx context.Context, group, node string) error {
	body := map[string]string{"name": node}
	return c.do(ctx, "selectNode", http.MethodPut, "/groups/"+url.PathEscape(group), body, nil)
}

// TestNodeDelay asks the engine to probe one node and returns the round-trip
// time in milliseconds.
func (c *HTTPClient) TestNodeDelay(ctx context.Context, nodeName string) (int, error) {
	endpoint := fmt.Sprintf("/proxies/%s/delay?url=%s&timeout=%d",
		url.PathEscape(nodeName),
		url.QueryEscape("https://www.gstatic.com/generate_204"),
		5000)
	var resp struct {
		Delay int `json:"delay"`
	}
	if err := c.do(ctx, "testNodeDelay", http.MethodGet, endpoint, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Delay, nil
}

// processName trims a process path down to its base name.
func processName(path string) string {
	if path == "" {
		return ""
	}
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
