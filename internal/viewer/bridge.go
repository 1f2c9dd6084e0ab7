package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"site-delivery-backend/config"
	"site-delivery-backend/internal/logger"
)

// bridgeResponse is the envelope every bridge endpoint answers with.
type bridgeResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Bridge is a Client that forwards calls as JSON POSTs to a viewer bridge
// running next to the embedded viewer.
type Bridge struct {
	baseURL string
	headers map[string]string
	client  *http.Client
}

// NewBridge builds a Bridge from config. An invalid proxy URL is logged and
// ignored.
func NewBridge(cfg config.ViewerConfig, log logger.Logger) *Bridge {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn("invalid viewer proxy URL, not using a proxy", "proxy", cfg.HTTPProxy, "error", err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Bridge{
		baseURL: strings.TrimRight(cfg.BridgeURL, "/"),
		headers: cfg.Headers,
		client: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

func (b *Bridge) GetSelection(ctx context.Context) ([]Selection, error) {
	var out []Selection
	if err := b.call(ctx, "selection/get", struct{}{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Bridge) ConvertToObjectIDs(ctx context.Context, modelID string, runtimeIDs []int64) ([]string, error) {
	req := map[string]any{"model_id": modelID, "runtime_ids": runtimeIDs}
	var out []string
	if err := b.call(ctx, "objects/convert", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Bridge) GetObjectProperties(ctx context.Context, modelID string, runtimeIDs []int64) ([]ObjectProperties, error) {
	req := map[string]any{"model_id": modelID, "runtime_ids": runtimeIDs}
	var out []ObjectProperties
	if err := b.call(ctx, "objects/properties", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Bridge) SetSelection(ctx context.Context, guids []string) error {
	return b.call(ctx, "selection/set", map[string]any{"guids": guids}, nil)
}

func (b *Bridge) SetObjectState(ctx context.Context, guids []string, color Color) error {
	req := map[string]any{"guids": guids, "state": map[string]any{"color": color}}
	return b.call(ctx, "objects/state", req, nil)
}

// call posts payload to the named endpoint and decodes the envelope's data
// into out when out is non-nil.
func (b *Bridge) call(ctx context.Context, endpoint string, payload any, out any) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/"+endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range b.headers {
		req.Header.Set(key, value)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("viewer request %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("viewer %s returned status code %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var envelope bridgeResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal viewer response: %w", err)
	}
	if envelope.Code != 0 {
		return fmt.Errorf("viewer %s returned code %d: %s", endpoint, envelope.Code, envelope.Message)
	}

	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", endpoint, err)
	}
	return nil
}
