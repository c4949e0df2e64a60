package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/parrot/internal/db"
)

const (
	defaultProviderCallTimeout = 60 * time.Second
	maxTextLength              = 10_000
)

var (
	ErrInvalidInput  = errors.New("invalid translation input")
	ErrUserNotFound  = errors.New("user not found")
	ErrQuotaExceeded = errors.New("translation quota exceeded")
)

// Store is the persistence surface the orchestrator needs: quota admission
// and the write-through history log.
type Store interface {
	TryConsumeQuota(ctx context.Context, userID int64, units int) (*db.QuotaRow, error)
	InsertHistoryRecord(ctx context.Context, params db.InsertHistoryRecordParams) (*db.HistoryRecord, error)
}

// Synthesizer renders translated text to a stored audio asset and returns
// the asset file name.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (string, error)
}

// DetectFunc guesses the ISO 639-1 code of a text sample. Empty means unknown.
type DetectFunc func(text string) string

// OneRequest is a single-target translation request.
type OneRequest struct {
	Text       string
	TargetLang string
	PlayAudio  bool
	Provider   string
	UserID     *int64
}

// MultiRequest is a multi-target translation request.
type MultiRequest struct {
	Text      string
	Languages []string
	PlayAudio bool
	Provider  string
}

// Result is the outcome for one target language. A failed language carries
// the error marker in TranslatedText and the cause in Error.
type Result struct {
	TargetLang     string `json:"target_lang"`
	SourceLang     string `json:"source_lang"`
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
	AudioFile      string `json:"audio_file,omitempty"`
	ProviderName   string `json:"provider_name,omitempty"`
	LatencyMs      int64  `json:"latency_ms,omitempty"`
	Error          string `json:"error,omitempty"`
}

// QuotaStatus is the quota snapshot after admission.
type QuotaStatus struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

// MultiResult carries per-language results in request order.
type MultiResult struct {
	Results []Result    `json:"translations"`
	Quota   QuotaStatus `json:"quota"`
}

// Orchestrator coordinates quota admission, provider fan-out, speech
// synthesis, and history recording.
type Orchestrator struct {
	store       Store
	registry    *Registry
	speech      Synthesizer
	detect      DetectFunc
	logger      zerolog.Logger
	callTimeout time.Duration
}

func NewOrchestrator(
	store Store,
	registry *Registry,
	speech Synthesizer,
	detect DetectFunc,
	logger zerolog.Logger,
	callTimeout time.Duration,
) *Orchestrator {
	if callTimeout <= 0 {
		callTimeout = defaultProviderCallTimeout
	}
	return &Orchestrator{
		store:       store,
		registry:    registry,
		speech:      speech,
		detect:      detect,
		logger:      logger,
		callTimeout: callTimeout,
	}
}

// TranslateOne translates into a single target language. Provider failure
// fails the call and records nothing; speech failure does not.
func (o *Orchestrator) TranslateOne(ctx context.Context, req OneRequest) (*Result, error) {
	if o == nil || o.store == nil {
		return nil, fmt.Errorf("orchestrator is not initialized")
	}

	text, err := validateText(req.Text)
	if err != nil {
		return nil, err
	}
	targetLang, err := validateTargetLanguage(req.TargetLang)
	if err != nil {
		return nil, err
	}

	provider, err := o.resolveProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	sourceLang := o.detectSourceLang(text)
	result := o.translateTarget(ctx, provider, text, sourceLang, targetLang, req.PlayAudio)
	if result.Error != "" {
		return nil, fmt.Errorf("translate into %s: %s", targetLang, result.Error)
	}

	o.recordResult(ctx, req.UserID, result)
	return &result, nil
}

// TranslateMulti translates into every requested language. Quota is charged
// once for the whole request before any provider call; after admission the
// batch always completes and failed languages carry error markers.
func (o *Orchestrator) TranslateMulti(ctx context.Context, userID int64, req MultiRequest) (*MultiResult, error) {
	if o == nil || o.store == nil {
		return nil, fmt.Errorf("orchestrator is not initialized")
	}

	text, err := validateText(req.Text)
	if err != nil {
		return nil, err
	}
	if len(req.Languages) == 0 {
		return nil, fmt.Errorf("%w: at least one target language is required", ErrInvalidInput)
	}
	targets := make([]string, 0, len(req.Languages))
	for _, lang := range req.Languages {
		target, err := validateTargetLanguage(lang)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}

	provider, err := o.resolveProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	quota, err := o.store.TryConsumeQuota(ctx, userID, 1)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNoRows):
			return nil, fmt.Errorf("%w: user %d", ErrUserNotFound, userID)
		case errors.Is(err, db.ErrQuotaExceeded):
			return nil, ErrQuotaExceeded
		default:
			return nil, fmt.Errorf("consume quota: %w", err)
		}
	}

	sourceLang := o.detectSourceLang(text)

	// Fan out per target. Results land in the slot matching the request
	// order, regardless of completion order.
	results := make([]Result, len(targets))
	var wg sync.WaitGroup
	for idx, target := range targets {
		wg.Add(1)
		go func(idx int, target string) {
			defer wg.Done()
			results[idx] = o.translateTarget(ctx, provider, text, sourceLang, target, req.PlayAudio)
		}(idx, target)
	}
	wg.Wait()

	// History records are appended sequentially in request order so the
	// newest-first listing mirrors the request.
	for _, result := range results {
		o.recordResult(ctx, &userID, result)
	}

	return &MultiResult{
		Results: results,
		Quota: QuotaStatus{
			Used:  quota.QuotaUsed,
			Limit: quota.QuotaLimit,
		},
	}, nil
}

func (o *Orchestrator) translateTarget(
	ctx context.Context,
	provider Provider,
	text, sourceLang, targetLang string,
	playAudio bool,
) Result {
	result := Result{
		TargetLang:   targetLang,
		SourceLang:   sourceLang,
		OriginalText: text,
	}

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	resp, err := provider.Translate(callCtx, TranslateRequest{
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
	})
	if err != nil {
		o.logger.Warn().Err(err).Str("target_lang", targetLang).Msg("provider translate failed")
		result.TranslatedText = errorMarker(err)
		result.Error = err.Error()
		return result
	}

	result.TranslatedText = strings.TrimSpace(resp.Text)
	result.ProviderName = resp.ProviderName
	result.LatencyMs = resp.LatencyMs
	if resolved := normalizeLangCode(resp.SourceLang); resolved != "" {
		result.SourceLang = resolved
	}

	if playAudio && o.speech != nil {
		assetName, speechErr := o.speech.Synthesize(callCtx, result.TranslatedText, targetLang)
		if speechErr != nil {
			o.logger.Warn().Err(speechErr).Str("target_lang", targetLang).Msg("speech synthesis failed")
		} else {
			result.AudioFile = assetName
		}
	}

	return result
}

func (o *Orchestrator) recordResult(ctx context.Context, userID *int64, result Result) {
	_, err := o.store.InsertHistoryRecord(ctx, db.InsertHistoryRecordParams{
		UserID:         userID,
		TargetLang:     result.TargetLang,
		SourceLang:     result.SourceLang,
		OriginalText:   result.OriginalText,
		TranslatedText: result.TranslatedText,
		AudioFile:      result.AudioFile,
	})
	if err != nil {
		o.logger.Error().Err(err).Str("target_lang", result.TargetLang).Msg("insert history record failed")
	}
}

func (o *Orchestrator) resolveProvider(requested string) (Provider, error) {
	if o.registry == nil {
		return nil, fmt.Errorf("translation provider registry is not initialized")
	}
	return o.registry.Provider(requested)
}

func (o *Orchestrator) detectSourceLang(text string) string {
	if o.detect == nil {
		return ""
	}
	return o.detect(text)
}

func validateText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	if len(text) > maxTextLength {
		return "", fmt.Errorf("%w: text exceeds %d bytes", ErrInvalidInput, maxTextLength)
	}
	return text, nil
}

func validateTargetLanguage(raw string) (string, error) {
	target := normalizeLangCode(raw)
	if target == "" {
		return "", fmt.Errorf("%w: target language is required", ErrInvalidInput)
	}
	if !IsSupportedTargetLanguage(target) {
		return "", fmt.Errorf("%w: unsupported target language %q", ErrInvalidInput, target)
	}
	return target, nil
}

func errorMarker(err error) string {
	return "Error: " + err.Error()
}
