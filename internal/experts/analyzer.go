package experts

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-resty/resty/v2"
	"google.golang.org/genai"

	"github.com/ternarybob/augur/internal/models"
)

// Analyzer runs one prompt against one endpoint of a logical model.
// Implementations are stateless; credentials travel in the endpoint.
type Analyzer interface {
	Analyze(ctx context.Context, cfg models.ModelConfig, endpoint models.ModelEndpoint, prompt Prompt) (*Outcome, error)
}

const (
	defaultTemperature = 0.7
	maxResponseTokens  = 4096
)

func endpointTemperature(endpoint models.ModelEndpoint) float64 {
	if endpoint.Temperature != nil {
		return *endpoint.Temperature
	}
	return defaultTemperature
}

// geminiAnalyzer speaks the Gemini API via the genai SDK.
type geminiAnalyzer struct{}

func (a *geminiAnalyzer) Analyze(ctx context.Context, cfg models.ModelConfig, endpoint models.ModelEndpoint, prompt Prompt) (*Outcome, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  endpoint.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	temp := float32(endpointTemperature(endpoint))
	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(temp),
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
	}

	model := cfg.ModelName
	if model == "" {
		model = "gemini-2.0-flash"
	}
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt.User), config)
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}
	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty text in Gemini response")
	}
	return ParseOutcome(text)
}

// claudeAnalyzer speaks the Anthropic Messages API.
type claudeAnalyzer struct{}

func (a *claudeAnalyzer) Analyze(ctx context.Context, cfg models.ModelConfig, endpoint models.ModelEndpoint, prompt Prompt) (*Outcome, error) {
	opts := []option.RequestOption{option.WithAPIKey(endpoint.APIKey)}
	if endpoint.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(endpoint.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.ModelName
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_0)
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   maxResponseTokens,
		Temperature: anthropic.Float(endpointTemperature(endpoint)),
		System:      []anthropic.TextBlockParam{{Text: prompt.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
		},
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from Claude API")
	}
	return ParseOutcome(text.String())
}

// openAIAnalyzer speaks the OpenAI chat-completions wire format, which
// covers the official API and every compatible proxy.
type openAIAnalyzer struct {
	timeout time.Duration
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (a *openAIAnalyzer) Analyze(ctx context.Context, cfg models.ModelConfig, endpoint models.ModelEndpoint, prompt Prompt) (*Outcome, error) {
	baseURL := strings.TrimSuffix(endpoint.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	if a.timeout > 0 {
		client.SetTimeout(a.timeout)
	}
	if endpoint.VerifySSL != nil && !*endpoint.VerifySSL {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	model := cfg.ModelName
	if model == "" {
		model = "gpt-4o-mini"
	}
	resp, err := client.R().
		SetContext(ctx).
		SetAuthToken(endpoint.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"model":       model,
			"temperature": endpointTemperature(endpoint),
			"messages": []map[string]string{
				{"role": "system", "content": prompt.System},
				{"role": "user", "content": prompt.User},
			},
		}).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("chat completion request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("chat completion returned status %d: %s",
			resp.StatusCode(), models.TruncateError(resp.String(), 200))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse chat completion response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("chat completion error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("empty chat completion response")
	}
	return ParseOutcome(parsed.Choices[0].Message.Content)
}

// NewAnalyzers builds the per-dialect analyzer set.
func NewAnalyzers(llmTimeout time.Duration) map[models.ModelProvider]Analyzer {
	return map[models.ModelProvider]Analyzer{
		models.ProviderGemini:           &geminiAnalyzer{},
		models.ProviderClaude:           &claudeAnalyzer{},
		models.ProviderOpenAICompatible: &openAIAnalyzer{timeout: llmTimeout},
	}
}
