package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/moody-app/moody/internal/config"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"
)

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-haiku-4-5-20251001"
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, prompt string, maxTokens int) (string, error)
	// Model names the model answering, for records.
	Model() string
}

// NewGenerator builds a Generator for the configured provider. OpenAI and
// Anthropic go through the jetify model abstraction; OpenAI-compatible
// endpoints are called over plain HTTP.
func NewGenerator(provider *config.AIProvider) (Generator, error) {
	if provider == nil {
		return nil, errors.New("AI provider is nil")
	}
	if strings.TrimSpace(provider.APIKey) == "" {
		return nil, errors.New("AI provider api key is empty")
	}
	switch config.NormalizeProviderType(provider.Type) {
	case "openai-compatible":
		model := strings.TrimSpace(provider.DefaultModel)
		if model == "" {
			model = defaultOpenAIModel
		}
		return &compatGenerator{
			endpoint: normalizeOpenAICompatibleEndpoint(provider.Endpoint),
			apiKey:   strings.TrimSpace(provider.APIKey),
			model:    model,
			client:   &http.Client{Timeout: 30 * time.Second},
		}, nil
	case "anthropic", "openai":
		model, id := buildLanguageModel(provider)
		return &modelGenerator{model: model, id: id}, nil
	default:
		return nil, fmt.Errorf("unsupported AI provider type %q", provider.Type)
	}
}

type modelGenerator struct {
	model jetapi.LanguageModel
	id    string
}

func (g *modelGenerator) Model() string { return g.id }

func (g *modelGenerator) Generate(ctx context.Context, systemPrompt, prompt string, maxTokens int) (string, error) {
	resp, err := jetai.GenerateText(
		ctx,
		buildPromptMessages(systemPrompt, prompt),
		jetai.WithModel(g.model),
		jetai.WithMaxOutputTokens(maxTokens),
	)
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

func buildLanguageModel(provider *config.AIProvider) (jetapi.LanguageModel, string) {
	apiKey := strings.TrimSpace(provider.APIKey)
	modelID := strings.TrimSpace(provider.DefaultModel)
	endpoint := strings.TrimSpace(provider.Endpoint)

	if config.NormalizeProviderType(provider.Type) == "anthropic" {
		if modelID == "" {
			modelID = defaultAnthropicModel
		}
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
		}
		client := anthropicclient.NewClient(opts...)
		return jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client)), modelID
	}

	if modelID == "" {
		modelID = defaultOpenAIModel
	}
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
	}
	if normalized := normalizeOpenAIBaseURL(endpoint); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized))
	}
	client := openaiclient.NewClient(opts...)
	return jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client)), modelID
}

func buildPromptMessages(systemPrompt, prompt string) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: systemPrompt})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)})
	return messages
}

func extractText(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", errors.New("empty response from AI")
	}
	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}
	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty response from AI")
	}
	return text, nil
}

type compatGenerator struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

func (g *compatGenerator) Model() string { return g.model }

func (g *compatGenerator) Generate(ctx context.Context, systemPrompt, prompt string, maxTokens int) (string, error) {
	messages := make([]map[string]string, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, map[string]string{"role": "system", "content": systemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body, err := json.Marshal(map[string]interface{}{
		"model":      g.model,
		"messages":   messages,
		"max_tokens": maxTokens,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("openai-compatible error: %s", strings.TrimSpace(string(respBody)))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}
	if result.Error != nil && strings.TrimSpace(result.Error.Message) != "" {
		return "", fmt.Errorf("openai-compatible error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", errors.New("empty response from AI")
	}
	return result.Choices[0].Message.Content, nil
}

func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}
	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}

func normalizeOpenAICompatibleEndpoint(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return "https://api.openai.com"
	}
	return strings.TrimSuffix(base, "/v1")
}
