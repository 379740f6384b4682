package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPBackend calls the selection-translation endpoint over HTTP.
type HTTPBackend struct {
	// BaseURL of the server, without trailing slash.
	BaseURL string
	// AuthToken, when set, is sent as a bearer token.
	AuthToken string
	// Client defaults to http.DefaultClient. The coordinator owns all
	// timeout handling, so the client itself carries none.
	Client *http.Client
}

// Translate posts the request and decodes the structured response. Error
// payloads keep their server-side message so transient classification can
// match on it.
func (b *HTTPBackend) Translate(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("translate: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.BaseURL+"/api/translation/selection", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("translate: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.AuthToken)
	}

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("translate: network: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("translate: read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &payload)
		return nil, HTTPError{StatusCode: httpResp.StatusCode, Message: payload.Error}
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("translate: decode response: %w", err)
	}
	return &resp, nil
}
