package speech

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"horse.fit/parrot/internal/config"
)

// OpenAISynthesizer renders speech through the OpenAI TTS API and stores
// mp3 assets under a configured directory.
type OpenAISynthesizer struct {
	client *openai.Client
	model  string
	voice  string
	speed  float64
	dir    string
}

func NewOpenAISynthesizer(cfg *config.Config) (*OpenAISynthesizer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.SpeechAPIKey) == "" {
		return nil, fmt.Errorf("SPEECH_API_KEY is required")
	}

	dir := strings.TrimSpace(cfg.AudioDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio directory: %w", err)
	}

	model := strings.TrimSpace(cfg.SpeechModel)
	if model == "" {
		model = "tts-1"
	}
	voice := strings.TrimSpace(cfg.SpeechVoice)
	if voice == "" {
		voice = "alloy"
	}
	speed := cfg.SpeechSpeed
	if speed <= 0 {
		speed = 1.0
	}

	return &OpenAISynthesizer{
		client: openai.NewClient(strings.TrimSpace(cfg.SpeechAPIKey)),
		model:  model,
		voice:  voice,
		speed:  speed,
		dir:    dir,
	}, nil
}

// Synthesize renders text in lang and returns the stored asset file name.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, lang string) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("synthesizer is not initialized")
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("text is required")
	}
	if !IsSupportedSpeechLanguage(lang) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}

	response, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          trimmed,
		Voice:          openai.SpeechVoice(s.voice),
		Speed:          s.speed,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return "", fmt.Errorf("speech request: %w", err)
	}
	defer response.Close()

	assetName := newAudioAssetName()
	outputPath := filepath.Join(s.dir, assetName)

	out, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	defer out.Close()

	written, err := io.Copy(out, response)
	if err != nil {
		_ = os.Remove(outputPath)
		return "", fmt.Errorf("write audio file: %w", err)
	}
	if written == 0 {
		_ = os.Remove(outputPath)
		return "", fmt.Errorf("no audio data received")
	}

	return assetName, nil
}
