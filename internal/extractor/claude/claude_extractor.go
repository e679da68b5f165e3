package claude

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
	apiURL     = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"

	Provider = "claude"
)

func init() {
	extractor.RegisterProvider(Provider, func(cfg *config.ExtractorConfig) (port.VisionExtractor, error) {
		return NewExtractor(cfg), nil
	})
}

// Extractor implements port.VisionExtractor using the Anthropic Messages API.
type Extractor struct {
	apiKey      string
	model       string
	endpoint    string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewExtractor creates a Claude-backed extractor. cfg.Endpoint overrides the API URL.
func NewExtractor(cfg *config.ExtractorConfig) *Extractor {
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = apiURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &Extractor{
		apiKey:      cfg.APIKey,
		model:       model,
		endpoint:    endpoint,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		client:      &http.Client{Timeout: cfg.Timeout()},
	}
}

func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	system := extractor.SystemInstruction()

	reqBody := map[string]interface{}{
		"model":       e.model,
		"max_tokens":  e.maxTokens,
		"temperature": e.temperature,
		"system":      system,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": buildContentBlocks(input),
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, domain.NewServiceError(Provider, 0, fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, domain.NewServiceError(Provider, 0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, domain.NewServiceError(Provider, 0, fmt.Errorf("calling anthropic API: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewServiceError(Provider, resp.StatusCode, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, extractor.StatusError(Provider, resp, respBody)
	}

	text, err := parseResponse(respBody)
	if err != nil {
		return nil, domain.NewServiceError(Provider, resp.StatusCode, err)
	}

	return &port.ExtractOutput{
		RawResponse: text,
		Provider:    Provider,
		ModelUsed:   e.model,
		PromptUsed:  system,
	}, nil
}

func buildContentBlocks(input port.ExtractInput) []map[string]interface{} {
	contentType := input.ContentType
	if contentType == "" {
		contentType = domain.ImageContentType
	}
	return []map[string]interface{}{
		{
			"type": "text",
			"text": extractor.UserInstruction,
		},
		{
			"type": "image",
			"source": map[string]interface{}{
				"type":       "base64",
				"media_type": contentType,
				"data":       base64.StdEncoding.EncodeToString(input.ImageBytes),
			},
		},
	}
}

// apiResponse models the Anthropic Messages API response.
type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func parseResponse(body []byte) (string, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("empty response from API: no text content")
}
