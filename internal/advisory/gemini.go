package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// ErrNoAPIKey is returned when the client is constructed without a key.
// The poller treats it like any other oracle failure (HOLD, confidence 0).
var ErrNoAPIKey = errors.New("gemini: no API key configured")

// GeminiClient asks the Gemini API for a scalping recommendation over a
// price window. Responses are constrained to a JSON schema so the model
// output decodes directly into Advice.
type GeminiClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewGeminiClient creates a client for the given model (e.g.
// "gemini-2.5-flash"). baseURL is overridable for tests; empty selects the
// public endpoint.
func NewGeminiClient(apiKey, model, baseURL string) *GeminiClient {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string       `json:"responseMimeType"`
	ResponseSchema   geminiSchema `json:"responseSchema"`
}

type geminiSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]geminiField `json:"properties"`
	Required   []string               `json:"required"`
}

type geminiField struct {
	Type        string   `json:"type"`
	Enum        []string `json:"enum,omitempty"`
	Description string   `json:"description,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Analyze submits the window and decodes the schema-constrained reply.
func (g *GeminiClient) Analyze(ctx context.Context, prices []float64) (Advice, error) {
	if g.apiKey == "" {
		return Advice{}, ErrNoAPIKey
	}

	window, err := json.Marshal(prices)
	if err != nil {
		return Advice{}, fmt.Errorf("gemini: marshal window: %w", err)
	}

	prompt := fmt.Sprintf(`Atue como um especialista em Scalping Trading para o índice Volatility 100.
Analise os seguintes preços de fechamento (ticks) recentes: %s.
A estratégia é Scalping de altíssima frequência.
Identifique se há uma micro-tendência de alta (CALL) ou baixa (PUT).
Se o mercado estiver lateral, responda HOLD.`, window)

	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema: geminiSchema{
				Type: "OBJECT",
				Properties: map[string]geminiField{
					"recommendation": {Type: "STRING", Enum: []string{"CALL", "PUT", "HOLD"}},
					"reasoning":      {Type: "STRING"},
					"confidence":     {Type: "NUMBER", Description: "Confidence score 0-100"},
				},
				Required: []string{"recommendation", "reasoning", "confidence"},
			},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return Advice{}, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return Advice{}, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Advice{}, fmt.Errorf("gemini: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Advice{}, fmt.Errorf("gemini: unexpected status %d: %s", resp.StatusCode, msg)
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return Advice{}, fmt.Errorf("gemini: decode response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return Advice{}, fmt.Errorf("gemini: empty response")
	}

	var out struct {
		Recommendation string  `json:"recommendation"`
		Reasoning      string  `json:"reasoning"`
		Confidence     float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(gr.Candidates[0].Content.Parts[0].Text), &out); err != nil {
		return Advice{}, fmt.Errorf("gemini: decode analysis: %w", err)
	}

	rec := Recommendation(out.Recommendation)
	switch rec {
	case RecommendCall, RecommendPut, RecommendHold:
	default:
		return Advice{}, fmt.Errorf("gemini: unknown recommendation %q", out.Recommendation)
	}

	return Advice{
		Recommendation: rec,
		Reasoning:      out.Reasoning,
		Confidence:     out.Confidence,
	}, nil
}
