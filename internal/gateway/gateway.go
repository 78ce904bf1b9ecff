// Package gateway is the single entry point for requesting a validated
// structured object or free text from a language model. Every caller in
// the engine — Primary Actor, the meta-agents — goes through here.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kibbyd/negotiation-engine/internal/schemas"
)

// #region config

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gateway wraps a Gemini-compatible generateContent HTTP endpoint.
type Gateway struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// New builds a Gateway. apiKey and model are required; an empty baseURL
// defaults to the public Gemini API.
func New(apiKey, model, baseURL string) *Gateway {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Gateway{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// #endregion config

// #region wire types

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64                `json:"temperature,omitempty"`
	FrequencyPenalty float64                `json:"frequencyPenalty,omitempty"`
	ResponseMimeType string                 `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]interface{} `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// #endregion wire types

// #region request/response

// Request is one Gateway call: a system prompt (actor's layered system
// content, or a meta-agent's fixed role prompt) and a user message (the
// layer-3 state payload).
type Request struct {
	SystemPrompt string
	UserMessage  string
	Temperature  float64
	FrequencyPenalty float64
	// Schema, when set, constrains the model to structured JSON output
	// matching that schema and is also used to validate the response.
	Schema schemas.Name
}

// TokenUsage mirrors the provider's usage accounting for a single call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// #endregion request/response

// #region generate

// GenerateText issues a free-text request (no schema constraint).
func (g *Gateway) GenerateText(ctx context.Context, req Request) (string, TokenUsage, error) {
	text, usage, _, err := g.call(ctx, req, false)
	return text, usage, err
}

// GenerateStructured issues a request constrained to req.Schema and
// returns the decoded+validated JSON object as a map. Returns a
// *schemas.ValidationError on schema mismatch so callers can distinguish
// validation failures (locally recoverable via retry) from transport
// errors (not).
func (g *Gateway) GenerateStructured(ctx context.Context, req Request) (map[string]interface{}, TokenUsage, error) {
	if req.Schema == "" {
		return nil, TokenUsage{}, fmt.Errorf("gateway: structured request requires a schema name")
	}
	text, usage, _, err := g.call(ctx, req, true)
	if err != nil {
		return nil, usage, err
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, usage, fmt.Errorf("gateway: model output is not valid JSON: %w", err)
	}
	if err := schemas.Validate(req.Schema, obj); err != nil {
		return nil, usage, err
	}
	return obj, usage, nil
}

func (g *Gateway) call(ctx context.Context, req Request, structured bool) (string, TokenUsage, *generateResponse, error) {
	if g.apiKey == "" {
		return "", TokenUsage{}, nil, fmt.Errorf("gateway: API key not configured")
	}

	genCfg := generationConfig{
		Temperature:      req.Temperature,
		FrequencyPenalty: req.FrequencyPenalty,
	}
	if structured {
		genCfg.ResponseMimeType = "application/json"
		if raw, ok := schemas.RawSchema(req.Schema); ok {
			var schemaObj map[string]interface{}
			if err := json.Unmarshal([]byte(raw), &schemaObj); err == nil {
				genCfg.ResponseSchema = schemaObj
			}
		}
	}

	body := generateRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.UserMessage}}},
		},
		GenerationConfig: genCfg,
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", TokenUsage{}, nil, fmt.Errorf("gateway: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", TokenUsage{}, nil, fmt.Errorf("gateway: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", TokenUsage{}, nil, fmt.Errorf("gateway: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", TokenUsage{}, nil, fmt.Errorf("gateway: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", TokenUsage{}, nil, fmt.Errorf("gateway: API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", TokenUsage{}, nil, fmt.Errorf("gateway: parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", TokenUsage{}, nil, fmt.Errorf("gateway: API error: %s", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", TokenUsage{}, nil, fmt.Errorf("gateway: empty response")
	}

	usage := TokenUsage{
		PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
		CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
	}

	return parsed.Candidates[0].Content.Parts[0].Text, usage, &parsed, nil
}

// #endregion generate
