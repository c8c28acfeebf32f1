package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/rhuss/lmscore/pkg/api"
	"github.com/rhuss/lmscore/pkg/debug"
	"github.com/rhuss/lmscore/pkg/observability"
	"github.com/rhuss/lmscore/pkg/provider"
	"github.com/rhuss/lmscore/pkg/provider/openaicompat"
)

// DefaultBaseURL is the public OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// Config holds configuration for the OpenAI provider adapter.
type Config struct {
	// BaseURL defaults to DefaultBaseURL. A missing "/v1" suffix is added.
	BaseURL string

	// APIKey is the OpenAI secret key.
	APIKey string

	// Timeout for individual HTTP requests. Defaults to 120s.
	Timeout time.Duration

	// ModelMapping maps requested engine names to OpenAI model ids.
	ModelMapping map[string]string
}

// OpenAIProvider implements provider.Provider using the OpenAI SDK.
type OpenAIProvider struct {
	cfg         Config
	client      sdk.Client
	httpClient  *http.Client
	modelMapper func(string) string
}

var _ provider.Provider = (*OpenAIProvider)(nil)

// New creates a new OpenAIProvider with the given configuration.
func New(cfg Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: APIKey is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := &http.Client{
		Transport: observability.InstrumentTransport("openai", nil),
	}

	client := sdk.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(normalizeBaseURL(cfg.BaseURL)),
		option.WithHTTPClient(httpClient),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	)

	return &OpenAIProvider{
		cfg:         cfg,
		client:      client,
		httpClient:  httpClient,
		modelMapper: provider.ModelMapper(cfg.ModelMapping),
	}, nil
}

func normalizeBaseURL(u string) string {
	u = strings.TrimRight(u, "/")
	if !strings.HasSuffix(u, "/v1") {
		u += "/v1"
	}
	return u + "/"
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Capabilities returns what this provider supports.
func (p *OpenAIProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		TokenPrompts: true,
		Echo:         true,
	}
}

// Complete performs one request through the SDK's Completions service.
func (p *OpenAIProvider) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	if p.modelMapper != nil {
		mapped := *req
		mapped.Model = p.modelMapper(req.Model)
		req = &mapped
	}

	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	debug.Log("providers", "openai completion request", "model", req.Model, "prompts", len(req.Prompts))

	resp, err := p.client.Completions.New(ctx, params)
	if err != nil {
		return nil, mapError(err)
	}

	if len(resp.Choices) != len(req.Prompts) {
		return nil, api.NewServerError(fmt.Sprintf("backend returned %d choices for %d prompts", len(resp.Choices), len(req.Prompts)))
	}

	return translateResponse(resp)
}

// Close releases provider resources.
func (p *OpenAIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func buildParams(req *provider.CompletionRequest) (sdk.CompletionNewParams, error) {
	params := sdk.CompletionNewParams{
		Model:     sdk.CompletionNewParamsModel(req.Model),
		MaxTokens: param.NewOpt(int64(req.MaxTokens)),
	}

	if len(req.Prompts) == 0 {
		return params, api.NewInvalidRequestError("prompt", "at least one prompt is required")
	}

	if req.Prompts[0].IsTokens() {
		prompts := make([][]int64, len(req.Prompts))
		for i, p := range req.Prompts {
			if !p.IsTokens() {
				return params, api.NewInvalidRequestError(fmt.Sprintf("prompt[%d]", i), "cannot mix text and token prompts in one request")
			}
			ids := make([]int64, len(p.Tokens))
			for j, id := range p.Tokens {
				ids[j] = int64(id)
			}
			prompts[i] = ids
		}
		params.Prompt = sdk.CompletionNewParamsPromptUnion{OfArrayOfTokenArrays: prompts}
	} else {
		prompts := make([]string, len(req.Prompts))
		for i, p := range req.Prompts {
			if p.IsTokens() {
				return params, api.NewInvalidRequestError(fmt.Sprintf("prompt[%d]", i), "cannot mix text and token prompts in one request")
			}
			prompts[i] = p.Text
		}
		params.Prompt = sdk.CompletionNewParamsPromptUnion{OfArrayOfStrings: prompts}
	}

	if req.Echo {
		params.Echo = param.NewOpt(true)
	}
	if req.Logprobs != nil {
		params.Logprobs = param.NewOpt(int64(*req.Logprobs))
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Temperature)
	}
	if len(req.Stop) > 0 {
		params.Stop = sdk.CompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}

	return params, nil
}

// translateResponse converts the SDK response. Logprobs are decoded from the
// raw choice JSON because the SDK's typed slice turns null entries into 0.
func translateResponse(resp *sdk.Completion) (*provider.CompletionResponse, error) {
	out := &provider.CompletionResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Choices: make([]provider.Choice, len(resp.Choices)),
		Usage: provider.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}

	for i, c := range resp.Choices {
		choice := provider.Choice{
			Index:        int(c.Index),
			Text:         c.Text,
			FinishReason: string(c.FinishReason),
		}

		if raw := c.Logprobs.RawJSON(); raw != "" && raw != "null" {
			var lp openaicompat.CompletionLogprobs
			if err := json.Unmarshal([]byte(raw), &lp); err != nil {
				return nil, api.NewServerError(fmt.Sprintf("failed to parse logprobs: %s", err.Error()))
			}
			choice.Logprobs = &provider.Logprobs{
				Tokens:        lp.Tokens,
				TokenLogprobs: lp.TokenLogprobs,
				TopLogprobs:   lp.TopLogprobs,
				TextOffset:    lp.TextOffset,
			}
		}
		out.Choices[i] = choice
	}

	provider.SortChoices(out.Choices)
	return out, nil
}

func mapError(err error) error {
	var sdkErr *sdk.Error
	if !errors.As(err, &sdkErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return openaicompat.MapNetworkError(err)
	}

	message := sdkErr.Message
	if message == "" {
		message = fmt.Sprintf("backend error (HTTP %d)", sdkErr.StatusCode)
	}

	var apiErr *api.APIError
	switch {
	case sdkErr.StatusCode == http.StatusBadRequest:
		apiErr = api.NewInvalidRequestError(sdkErr.Param, message)
	case sdkErr.StatusCode == http.StatusUnauthorized || sdkErr.StatusCode == http.StatusForbidden:
		apiErr = api.NewAuthenticationError(message)
	case sdkErr.StatusCode == http.StatusNotFound:
		apiErr = api.NewNotFoundError(message)
	case sdkErr.StatusCode == http.StatusTooManyRequests:
		apiErr = api.NewTooManyRequestsError(message)
	default:
		apiErr = api.NewServerError(message)
	}
	apiErr.StatusCode = sdkErr.StatusCode
	return apiErr
}
