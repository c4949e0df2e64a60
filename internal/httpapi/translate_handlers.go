package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/parrot/internal/db"
	"horse.fit/parrot/internal/speech"
	"horse.fit/parrot/internal/translation"
)

const maxHistoryPageSize = 500

type translateOneRequest struct {
	Text      string `json:"text" form:"text"`
	Language  string `json:"language" form:"language"`
	PlayAudio bool   `json:"play_audio" form:"play_audio"`
	Provider  string `json:"provider" form:"provider"`
}

type quotaStore interface {
	EnsureQuota(ctx context.Context, userID int64, defaultLimit int) (*db.QuotaRow, error)
	GrantQuota(ctx context.Context, userID int64, extra int) (*db.QuotaRow, error)
}

type historyStore interface {
	ListHistoryRecords(ctx context.Context, filterLang string, limit int) ([]db.HistoryRecord, error)
	ListHistoryLanguages(ctx context.Context) ([]string, error)
}

func (s *Server) quotaDataStore() quotaStore {
	if s == nil {
		return nil
	}
	if s.quotaStore != nil {
		return s.quotaStore
	}
	if s.pool == nil {
		return nil
	}
	return s.pool
}

func (s *Server) historyDataStore() historyStore {
	if s == nil {
		return nil
	}
	if s.historyStore != nil {
		return s.historyStore
	}
	if s.pool == nil {
		return nil
	}
	return s.pool
}

// handleTranslate serves anonymous single-target translation. It charges no
// quota and records history without a user.
func (s *Server) handleTranslate(c echo.Context) error {
	if s.translator == nil {
		return internalError(c, "Translation is not available")
	}

	var req translateOneRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "could not parse request"})
	}

	var userID *int64
	if principal, ok := principalFromContext(c); ok {
		id := principal.UserID
		userID = &id
	}

	result, err := s.translator.TranslateOne(c.Request().Context(), translation.OneRequest{
		Text:       req.Text,
		TargetLang: req.Language,
		PlayAudio:  req.PlayAudio,
		Provider:   req.Provider,
		UserID:     userID,
	})
	if err != nil {
		if errors.Is(err, translation.ErrInvalidInput) {
			return failValidation(c, map[string]string{"request": err.Error()})
		}
		s.logger.Error().Err(err).Str("target_lang", req.Language).Msg("translate failed")
		return upstreamError(c, err.Error())
	}

	return success(c, map[string]any{
		"translation": result,
	})
}

// handleTranslateMulti serves the authenticated fan-out endpoint. One quota
// unit covers the whole request regardless of how many languages it names.
func (s *Server) handleTranslateMulti(c echo.Context) error {
	if s.translator == nil {
		return internalError(c, "Translation is not available")
	}

	principal, ok := principalFromContext(c)
	if !ok {
		return unauthorizedResponse(c)
	}

	body, err := readRequestBody(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	payload, err := ValidateTranslateMultiPayload(body)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	result, err := s.translator.TranslateMulti(c.Request().Context(), principal.UserID, translation.MultiRequest{
		Text:      payload.Text,
		Languages: payload.Languages,
		PlayAudio: payload.PlayAudio,
		Provider:  payload.Provider,
	})
	if err != nil {
		switch {
		case errors.Is(err, translation.ErrInvalidInput):
			return failValidation(c, map[string]string{"request": err.Error()})
		case errors.Is(err, translation.ErrUserNotFound):
			return failNotFound(c, "User not found")
		case errors.Is(err, translation.ErrQuotaExceeded):
			return fail(c, http.StatusForbidden, "Translation quota exceeded", map[string]any{
				"limit_reached": true,
			})
		default:
			s.logger.Error().Err(err).Int64("user_id", principal.UserID).Msg("translate multi failed")
			return internalError(c, "Translation failed")
		}
	}

	return success(c, result)
}

func (s *Server) handleHistory(c echo.Context) error {
	store := s.historyDataStore()
	if store == nil {
		return internalError(c, "Failed to load history")
	}

	limit, err := parsePositiveInt(c.QueryParam("limit"), 100, 1, maxHistoryPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}
	filterLang := strings.TrimSpace(c.QueryParam("lang"))
	// "All" is the UI's unfiltered selector, not a language code.
	if strings.EqualFold(filterLang, "all") {
		filterLang = ""
	}

	records, err := store.ListHistoryRecords(c.Request().Context(), filterLang, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list history records failed")
		return internalError(c, "Failed to load history")
	}

	languages, err := store.ListHistoryLanguages(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list history languages failed")
		return internalError(c, "Failed to load history")
	}

	return success(c, map[string]any{
		"records":             records,
		"available_languages": languages,
	})
}

func (s *Server) handleLanguages(c echo.Context) error {
	return success(c, map[string]any{
		"translation": translation.TranslationLanguageOptions(s.registry),
		"speech":      speech.SupportedSpeechLanguageCodes(),
	})
}

func (s *Server) handleQuota(c echo.Context) error {
	store := s.quotaDataStore()
	if store == nil {
		return internalError(c, "Failed to load quota")
	}

	principal, ok := principalFromContext(c)
	if !ok {
		return unauthorizedResponse(c)
	}

	quota, err := store.EnsureQuota(c.Request().Context(), principal.UserID, s.opts.DefaultQuotaLimit)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", principal.UserID).Msg("load quota failed")
		return internalError(c, "Failed to load quota")
	}

	return success(c, map[string]any{
		"quota": buildQuotaResponse(quota),
	})
}
