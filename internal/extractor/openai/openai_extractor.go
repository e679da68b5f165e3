package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"calibra/internal/config"
	"calibra/internal/domain"
	"calibra/internal/extractor"
	"calibra/internal/port"
)

const (
	apiURL        = "https://api.openai.com/v1/chat/completions"
	openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

func init() {
	extractor.RegisterProvider(ProviderOpenAI, func(cfg *config.ExtractorConfig) (port.VisionExtractor, error) {
		return NewExtractor(cfg), nil
	})
	extractor.RegisterProvider(ProviderOpenRouter, func(cfg *config.ExtractorConfig) (port.VisionExtractor, error) {
		return NewOpenRouterExtractor(cfg), nil
	})
}

// Extractor implements port.VisionExtractor using the OpenAI Chat Completions
// API or any service speaking the same protocol (OpenRouter).
type Extractor struct {
	provider    string
	apiKey      string
	model       string
	endpoint    string
	temperature float64
	maxTokens   int
	headers     map[string]string
	routing     []string
	client      *http.Client
}

// NewExtractor creates an OpenAI-backed extractor. cfg.Endpoint overrides the API URL.
func NewExtractor(cfg *config.ExtractorConfig) *Extractor {
	return newExtractor(cfg, ProviderOpenAI, apiURL, "gpt-4o-mini")
}

// NewOpenRouterExtractor creates an extractor for OpenRouter's OpenAI-compatible API.
func NewOpenRouterExtractor(cfg *config.ExtractorConfig) *Extractor {
	e := newExtractor(cfg, ProviderOpenRouter, openRouterURL, "openai/gpt-4o-mini")
	if cfg.Referer != "" {
		e.headers["HTTP-Referer"] = cfg.Referer
	}
	if cfg.AppTitle != "" {
		e.headers["X-Title"] = cfg.AppTitle
	}
	e.routing = cfg.Providers
	return e
}

func newExtractor(cfg *config.ExtractorConfig, provider, defaultURL, defaultModel string) *Extractor {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &Extractor{
		provider:    provider,
		apiKey:      cfg.APIKey,
		model:       model,
		endpoint:    endpoint,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		headers:     map[string]string{},
		client:      &http.Client{Timeout: cfg.Timeout()},
	}
}

func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	system := extractor.SystemInstruction()

	reqBody := map[string]interface{}{
		"model":       e.model,
		"temperature": e.temperature,
		"max_tokens":  e.maxTokens,
		"messages": []map[string]interface{}{
			{
				"role":    "system",
				"content": system,
			},
			{
				"role":    "user",
				"content": buildContentBlocks(input),
			},
		},
	}
	if len(e.routing) > 0 {
		reqBody["provider"] = map[string]interface{}{
			"order":           e.routing,
			"allow_fallbacks": false,
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, domain.NewServiceError(e.provider, 0, fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, domain.NewServiceError(e.provider, 0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, domain.NewServiceError(e.provider, 0, fmt.Errorf("calling %s API: %w", e.provider, err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewServiceError(e.provider, resp.StatusCode, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, extractor.StatusError(e.provider, resp, respBody)
	}

	text, err := parseResponse(respBody)
	if err != nil {
		return nil, domain.NewServiceError(e.provider, resp.StatusCode, err)
	}

	return &port.ExtractOutput{
		RawResponse: text,
		Provider:    e.provider,
		ModelUsed:   e.model,
		PromptUsed:  system,
	}, nil
}

func buildContentBlocks(input port.ExtractInput) []map[string]interface{} {
	contentType := input.ContentType
	if contentType == "" {
		contentType = domain.ImageContentType
	}
	encoded := base64.StdEncoding.EncodeToString(input.ImageBytes)
	dataURI := fmt.Sprintf("data:%s;base64,%s", contentType, encoded)

	return []map[string]interface{}{
		{
			"type": "text",
			"text": extractor.UserInstruction,
		},
		{
			"type": "image_url",
			"image_url": map[string]interface{}{
				"url": dataURI,
			},
		},
	}
}

// apiResponse models the Chat Completions response. OpenRouter reports some
// upstream failures as a 200 carrying an error object.
type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error,omitempty"`
}

func parseResponse(body []byte) (string, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s (type: %s, code: %v)", resp.Error.Message, resp.Error.Type, resp.Error.Code)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from API: no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
