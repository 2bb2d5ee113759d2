package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tokenpulse/tokenpulse/internal/apperrors"
)

// HTTPOracle is the production Oracle: a single-endpoint symbol-
// identification service, called with the generic request-and-decode
// shape the teacher's internal/clients/birdeye.Client.getRequest uses for
// every external call. Out of scope to train/host for real per
// spec.md §1 — this is the HTTP transport around it, not the model.
type HTTPOracle struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewHTTPOracle(baseURL, apiKey string) *HTTPOracle {
	return &HTTPOracle{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

type identifyRequest struct {
	Prompt string `json:"prompt"`
}

type identifyResponse struct {
	Symbol string `json:"symbol"`
}

func (o *HTTPOracle) Identify(ctx context.Context, prompt string) (string, error) {
	if o.baseURL == "" {
		return "", nil
	}

	body, err := json.Marshal(identifyRequest{Prompt: prompt})
	if err != nil {
		return "", apperrors.NewParseError("encode oracle request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewTransientError("build oracle request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewTransientError("oracle request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", apperrors.NewRateLimitError("oracle rate limited")
	}
	if resp.StatusCode >= 500 {
		return "", apperrors.NewTransientError(fmt.Sprintf("oracle status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewParseError(fmt.Sprintf("oracle status %d", resp.StatusCode), nil)
	}

	var parsed identifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apperrors.NewParseError("decode oracle response", err)
	}
	return parsed.Symbol, nil
}

var _ Oracle = (*HTTPOracle)(nil)
