package openaicompat

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rhuss/lmscore/pkg/api"
	"github.com/rhuss/lmscore/pkg/debug"
	"github.com/rhuss/lmscore/pkg/observability"
	"github.com/rhuss/lmscore/pkg/provider"
)

// Client performs HTTP requests against an OpenAI-compatible legacy
// completions backend.
//
// Provider adapters embed this Client and delegate their Complete calls
// to it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	// EngineRoutes sends requests to /v1/engines/{model}/completions instead
	// of /v1/completions.
	EngineRoutes bool

	// ModelMapper is an optional function that transforms the model name
	// before sending it to the backend. If nil, the model name is used as-is.
	ModelMapper func(string) string
}

// NewClient creates a new Client for an OpenAI-compatible backend. The label
// names the backend in HTTP metrics.
func NewClient(label, baseURL, apiKey string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: observability.InstrumentTransport(label, nil),
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// Complete performs one request against the completions endpoint.
func (c *Client) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	reqCopy := *req
	if c.ModelMapper != nil {
		reqCopy.Model = c.ModelMapper(reqCopy.Model)
	}

	wireReq, err := TranslateRequest(&reqCopy)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	endpoint := c.endpoint(reqCopy.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	debug.Log("providers", "completion request", "url", endpoint, "model", reqCopy.Model, "prompts", len(reqCopy.Prompts))
	debug.Raw("providers", debug.Truncate(string(body), 2048))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var wireResp CompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&wireResp); err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to parse backend response: %s", err.Error()))
	}

	if len(wireResp.Choices) != len(reqCopy.Prompts) {
		return nil, api.NewServerError(fmt.Sprintf("backend returned %d choices for %d prompts", len(wireResp.Choices), len(reqCopy.Prompts)))
	}

	return TranslateResponse(&wireResp), nil
}

func (c *Client) endpoint(model string) string {
	if c.EngineRoutes {
		return c.baseURL + "/v1/engines/" + url.PathEscape(model) + "/completions"
	}
	return c.baseURL + "/v1/completions"
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
