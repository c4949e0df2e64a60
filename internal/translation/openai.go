package translation

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is the chat model used when TRANSLATION_MODEL is unset.
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAIProvider translates text through an OpenAI-compatible chat
// completions endpoint.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProviderFromEnv builds a provider from env vars.
//   - TRANSLATION_ENDPOINT (default: the OpenAI API)
//   - TRANSLATION_MODEL (default: gpt-4o-mini)
//   - TRANSLATION_API_KEY
func NewOpenAIProviderFromEnv() *OpenAIProvider {
	return NewOpenAIProvider(
		os.Getenv("TRANSLATION_ENDPOINT"),
		os.Getenv("TRANSLATION_MODEL"),
		os.Getenv("TRANSLATION_API_KEY"),
	)
}

// NewOpenAIProvider builds a provider for the given endpoint/model.
func NewOpenAIProvider(endpoint, model, apiKey string) *OpenAIProvider {
	trimmedModel := strings.TrimSpace(model)
	if trimmedModel == "" {
		trimmedModel = DefaultOpenAIModel
	}

	clientConfig := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if normalized := normalizeEndpoint(endpoint); normalized != "" {
		clientConfig.BaseURL = normalized
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  trimmedModel,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

// ModelName returns the configured model identifier.
func (p *OpenAIProvider) ModelName() string {
	if p == nil {
		return ""
	}
	return p.model
}

func (p *OpenAIProvider) SupportedLanguages() []string {
	return SupportedTranslationLanguageCodes()
}

func (p *OpenAIProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	if p == nil {
		return nil, fmt.Errorf("openai provider is nil")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}

	sourceLang := normalizeLangCode(req.SourceLang)
	targetLang := normalizeLangCode(req.TargetLang)
	if targetLang == "" {
		return nil, fmt.Errorf("target language is required")
	}

	started := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildTranslationPrompt(text, sourceLang, targetLang),
			},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("send translation request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("translation response missing choices")
	}

	translated := strings.TrimSpace(resp.Choices[0].Message.Content)
	if translated == "" {
		return nil, fmt.Errorf("translation response was empty")
	}

	latency := time.Since(started).Milliseconds()
	return &TranslateResponse{
		Text:         translated,
		SourceLang:   sourceLang,
		TargetLang:   targetLang,
		ProviderName: p.Name(),
		LatencyMs:    latency,
	}, nil
}

func buildTranslationPrompt(text, sourceLang, targetLang string) string {
	target := targetLanguageLabel(targetLang)
	if sourceLang == "" {
		return fmt.Sprintf("Translate the following text into %s. Respond with only the translation, without additional explanation.\n\n%s", target.english, text)
	}
	source := targetLanguageLabel(sourceLang)
	return fmt.Sprintf("Translate the following %s text into %s. Respond with only the translation, without additional explanation.\n\n%s", source.english, target.english, text)
}

func normalizeEndpoint(raw string) string {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		return ""
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	parsed, err := url.Parse(endpoint)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return ""
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	if parsed.Path == "" {
		parsed.Path = "/v1"
	}
	return parsed.String()
}
