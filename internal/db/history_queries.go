package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"horse.fit/parrot/internal/language"
)

type HistoryRecord struct {
	RecordID       int64     `json:"record_id"`
	RecordUUID     string    `json:"record_uuid"`
	UserID         *int64    `json:"user_id,omitempty"`
	TargetLang     string    `json:"target_lang"`
	SourceLang     string    `json:"source_lang"`
	OriginalText   string    `json:"original_text"`
	TranslatedText string    `json:"translated_text"`
	AudioFile      string    `json:"audio_file,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

type InsertHistoryRecordParams struct {
	UserID         *int64
	TargetLang     string
	SourceLang     string
	OriginalText   string
	TranslatedText string
	AudioFile      string
}

// InsertHistoryRecord durably appends one record. Records are written through
// as translations complete and are never updated afterwards.
func (p *Pool) InsertHistoryRecord(ctx context.Context, params InsertHistoryRecordParams) (*HistoryRecord, error) {
	sourceLang := language.NormalizeCode(params.SourceLang)
	if sourceLang == "" {
		sourceLang = "und"
	}
	targetLang := language.NormalizeCode(params.TargetLang)
	if targetLang == "" {
		return nil, fmt.Errorf("target language is required")
	}

	const q = `
INSERT INTO parrot.history_records (
	user_id,
	target_lang,
	source_lang,
	original_text,
	translated_text,
	audio_file,
	recorded_at
)
VALUES ($1, $2, $3, $4, $5, $6, now())
RETURNING
	record_id,
	record_uuid::text,
	user_id,
	target_lang,
	source_lang,
	original_text,
	translated_text,
	audio_file,
	recorded_at
`

	var row HistoryRecord
	if err := p.QueryRow(
		ctx,
		q,
		params.UserID,
		targetLang,
		sourceLang,
		params.OriginalText,
		params.TranslatedText,
		strings.TrimSpace(params.AudioFile),
	).Scan(
		&row.RecordID,
		&row.RecordUUID,
		&row.UserID,
		&row.TargetLang,
		&row.SourceLang,
		&row.OriginalText,
		&row.TranslatedText,
		&row.AudioFile,
		&row.RecordedAt,
	); err != nil {
		return nil, fmt.Errorf("insert history record: %w", err)
	}
	return &row, nil
}

// ListHistoryRecords returns records newest first, optionally filtered by
// exact target language.
func (p *Pool) ListHistoryRecords(ctx context.Context, filterLang string, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	const q = `
SELECT
	record_id,
	record_uuid::text,
	user_id,
	target_lang,
	source_lang,
	original_text,
	translated_text,
	audio_file,
	recorded_at
FROM parrot.history_records
WHERE ($1 = '' OR target_lang = $1)
ORDER BY recorded_at DESC, record_id DESC
LIMIT $2
`

	rows, err := p.Query(ctx, q, language.NormalizeCode(filterLang), limit)
	if err != nil {
		return nil, fmt.Errorf("query history records: %w", err)
	}
	defer rows.Close()

	items := make([]HistoryRecord, 0, limit)
	for rows.Next() {
		var row HistoryRecord
		if err := rows.Scan(
			&row.RecordID,
			&row.RecordUUID,
			&row.UserID,
			&row.TargetLang,
			&row.SourceLang,
			&row.OriginalText,
			&row.TranslatedText,
			&row.AudioFile,
			&row.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history records: %w", err)
	}
	return items, nil
}

// ListHistoryLanguages returns the sorted distinct target languages present
// in the history log.
func (p *Pool) ListHistoryLanguages(ctx context.Context) ([]string, error) {
	const q = `
SELECT DISTINCT target_lang
FROM parrot.history_records
ORDER BY target_lang
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query history languages: %w", err)
	}
	defer rows.Close()

	langs := make([]string, 0, 8)
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, fmt.Errorf("scan history language: %w", err)
		}
		langs = append(langs, lang)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history languages: %w", err)
	}
	return langs, nil
}
