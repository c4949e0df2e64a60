package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"horse.fit/parrot/internal/db"
	"horse.fit/parrot/internal/translation"
)

type stubTranslator struct {
	oneResult   *translation.Result
	oneErr      error
	oneCalls    int
	lastOne     translation.OneRequest
	multiResult *translation.MultiResult
	multiErr    error
	multiCalls  int
	lastUserID  int64
	lastMulti   translation.MultiRequest
}

func (t *stubTranslator) TranslateOne(_ context.Context, req translation.OneRequest) (*translation.Result, error) {
	t.oneCalls++
	t.lastOne = req
	if t.oneErr != nil {
		return nil, t.oneErr
	}
	return t.oneResult, nil
}

func (t *stubTranslator) TranslateMulti(_ context.Context, userID int64, req translation.MultiRequest) (*translation.MultiResult, error) {
	t.multiCalls++
	t.lastUserID = userID
	t.lastMulti = req
	if t.multiErr != nil {
		return nil, t.multiErr
	}
	return t.multiResult, nil
}

type fakeQuotaStore struct {
	quotasByUserID map[int64]*db.QuotaRow
	grantCalls     int
	grantErr       error
}

func newFakeQuotaStore() *fakeQuotaStore {
	return &fakeQuotaStore{quotasByUserID: map[int64]*db.QuotaRow{}}
}

func (s *fakeQuotaStore) EnsureQuota(_ context.Context, userID int64, defaultLimit int) (*db.QuotaRow, error) {
	row, exists := s.quotasByUserID[userID]
	if !exists {
		row = &db.QuotaRow{UserID: userID, QuotaLimit: defaultLimit, UpdatedAt: time.Now().UTC()}
		s.quotasByUserID[userID] = row
	}
	copyRow := *row
	return &copyRow, nil
}

func (s *fakeQuotaStore) GrantQuota(_ context.Context, userID int64, extra int) (*db.QuotaRow, error) {
	s.grantCalls++
	if s.grantErr != nil {
		return nil, s.grantErr
	}
	row, exists := s.quotasByUserID[userID]
	if !exists {
		return nil, db.ErrNoRows
	}
	row.QuotaLimit += extra
	copyRow := *row
	return &copyRow, nil
}

type fakeHistoryStore struct {
	records   []db.HistoryRecord
	languages []string
	lastLang  string
	lastLimit int
}

func (s *fakeHistoryStore) ListHistoryRecords(_ context.Context, filterLang string, limit int) ([]db.HistoryRecord, error) {
	s.lastLang = filterLang
	s.lastLimit = limit
	return s.records, nil
}

func (s *fakeHistoryStore) ListHistoryLanguages(_ context.Context) ([]string, error) {
	return s.languages, nil
}

func authedContext(method, path, body string, userID int64) (echo.Context, *httptest.ResponseRecorder) {
	_, c, rec := newJSONContext(method, path, body)
	c.Set("auth.principal", authPrincipal{
		UserID:   userID,
		Email:    "user@example.com",
		FullName: "Test User",
	})
	return c, rec
}

func TestHandleTranslate_ReturnsTranslation(t *testing.T) {
	t.Parallel()

	trans := &stubTranslator{
		oneResult: &translation.Result{
			TargetLang:     "de",
			SourceLang:     "en",
			OriginalText:   "hello",
			TranslatedText: "hallo",
		},
	}
	server := &Server{
		logger:     zerolog.Nop(),
		translator: trans,
	}

	_, c, rec := newJSONContext(
		http.MethodPost,
		"/api/v1/translate",
		`{"text":"hello","language":"de"}`,
	)
	if err := server.handleTranslate(c); err != nil {
		t.Fatalf("handleTranslate returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
	if trans.oneCalls != 1 {
		t.Fatalf("expected one translate call, got %d", trans.oneCalls)
	}
	if trans.lastOne.TargetLang != "de" || trans.lastOne.Text != "hello" {
		t.Fatalf("unexpected translate request: %#v", trans.lastOne)
	}
	if trans.lastOne.UserID != nil {
		t.Fatalf("expected anonymous request without user id")
	}
	if !strings.Contains(rec.Body.String(), `"hallo"`) {
		t.Fatalf("expected translated text in response, got %s", rec.Body.String())
	}
}

func TestHandleTranslate_InvalidInputIsBadRequest(t *testing.T) {
	t.Parallel()

	trans := &stubTranslator{oneErr: translation.ErrInvalidInput}
	server := &Server{
		logger:     zerolog.Nop(),
		translator: trans,
	}

	_, c, rec := newJSONContext(
		http.MethodPost,
		"/api/v1/translate",
		`{"text":"","language":"de"}`,
	)
	if err := server.handleTranslate(c); err != nil {
		t.Fatalf("handleTranslate returned error: %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleTranslate_ProviderFailureIsBadGatewayWithMessage(t *testing.T) {
	t.Parallel()

	trans := &stubTranslator{oneErr: errors.New("translate to de: provider unavailable")}
	server := &Server{
		logger:     zerolog.Nop(),
		translator: trans,
	}

	_, c, rec := newJSONContext(
		http.MethodPost,
		"/api/v1/translate",
		`{"text":"hello","language":"de"}`,
	)
	if err := server.handleTranslate(c); err != nil {
		t.Fatalf("handleTranslate returned error: %v", err)
	}

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadGateway)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"status":"error"`) {
		t.Fatalf("expected error envelope, got %s", body)
	}
	if !strings.Contains(body, "provider unavailable") {
		t.Fatalf("expected provider message surfaced, got %s", body)
	}
}

func TestHandleTranslateMulti_ReturnsResultsInRequestOrder(t *testing.T) {
	t.Parallel()

	trans := &stubTranslator{
		multiResult: &translation.MultiResult{
			Results: []translation.Result{
				{TargetLang: "de", TranslatedText: "hallo"},
				{TargetLang: "fr", TranslatedText: "bonjour"},
				{TargetLang: "es", TranslatedText: "hola"},
			},
			Quota: translation.QuotaStatus{Used: 1, Limit: 3},
		},
	}
	server := &Server{
		logger:     zerolog.Nop(),
		translator: trans,
	}

	c, rec := authedContext(
		http.MethodPost,
		"/api/v1/translate-multi",
		`{"text":"hello","languages":["de","fr","es"],"play_audio":true}`,
		42,
	)
	if err := server.handleTranslateMulti(c); err != nil {
		t.Fatalf("handleTranslateMulti returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
	if trans.multiCalls != 1 {
		t.Fatalf("expected one translate call, got %d", trans.multiCalls)
	}
	if trans.lastUserID != 42 {
		t.Fatalf("unexpected user id: got %d want 42", trans.lastUserID)
	}
	if len(trans.lastMulti.Languages) != 3 || trans.lastMulti.Languages[0] != "de" {
		t.Fatalf("unexpected languages: %#v", trans.lastMulti.Languages)
	}
	if !trans.lastMulti.PlayAudio {
		t.Fatalf("expected play_audio to pass through")
	}

	body := rec.Body.String()
	deIdx := strings.Index(body, `"hallo"`)
	frIdx := strings.Index(body, `"bonjour"`)
	esIdx := strings.Index(body, `"hola"`)
	if deIdx < 0 || frIdx < 0 || esIdx < 0 || !(deIdx < frIdx && frIdx < esIdx) {
		t.Fatalf("expected request-order results in response, got %s", body)
	}
}

func TestHandleTranslateMulti_QuotaExceededIsForbiddenWithLimitFlag(t *testing.T) {
	t.Parallel()

	trans := &stubTranslator{multiErr: translation.ErrQuotaExceeded}
	server := &Server{
		logger:     zerolog.Nop(),
		translator: trans,
	}

	c, rec := authedContext(
		http.MethodPost,
		"/api/v1/translate-multi",
		`{"text":"hello","languages":["de"]}`,
		42,
	)
	if err := server.handleTranslateMulti(c); err != nil {
		t.Fatalf("handleTranslateMulti returned error: %v", err)
	}

	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusForbidden)
	}
	if !strings.Contains(rec.Body.String(), `"limit_reached":true`) {
		t.Fatalf("expected limit_reached flag, got %s", rec.Body.String())
	}
}

func TestHandleTranslateMulti_UnknownUserIsNotFound(t *testing.T) {
	t.Parallel()

	trans := &stubTranslator{multiErr: translation.ErrUserNotFound}
	server := &Server{
		logger:     zerolog.Nop(),
		translator: trans,
	}

	c, rec := authedContext(
		http.MethodPost,
		"/api/v1/translate-multi",
		`{"text":"hello","languages":["de"]}`,
		99,
	)
	if err := server.handleTranslateMulti(c); err != nil {
		t.Fatalf("handleTranslateMulti returned error: %v", err)
	}

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleTranslateMulti_SchemaViolationIsBadRequest(t *testing.T) {
	t.Parallel()

	trans := &stubTranslator{}
	server := &Server{
		logger:     zerolog.Nop(),
		translator: trans,
	}

	for name, body := range map[string]string{
		"missing languages": `{"text":"hello"}`,
		"empty languages":   `{"text":"hello","languages":[]}`,
		"unknown field":     `{"text":"hello","languages":["de"],"mode":"fast"}`,
		"not json":          `not-json`,
	} {
		c, rec := authedContext(http.MethodPost, "/api/v1/translate-multi", body, 42)
		if err := server.handleTranslateMulti(c); err != nil {
			t.Fatalf("%s: handleTranslateMulti returned error: %v", name, err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: unexpected status: got %d want %d", name, rec.Code, http.StatusBadRequest)
		}
	}
	if trans.multiCalls != 0 {
		t.Fatalf("did not expect translate calls for invalid payloads, got %d", trans.multiCalls)
	}
}

func TestHandleHistory_ReturnsRecordsAndLanguages(t *testing.T) {
	t.Parallel()

	history := &fakeHistoryStore{
		records: []db.HistoryRecord{
			{RecordID: 2, TargetLang: "de", TranslatedText: "neuer"},
			{RecordID: 1, TargetLang: "de", TranslatedText: "alter"},
		},
		languages: []string{"de", "fr"},
	}
	server := &Server{
		logger:       zerolog.Nop(),
		historyStore: history,
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/history?lang=de&limit=50", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := server.handleHistory(c); err != nil {
		t.Fatalf("handleHistory returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
	if history.lastLang != "de" || history.lastLimit != 50 {
		t.Fatalf("unexpected list args: lang=%q limit=%d", history.lastLang, history.lastLimit)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"available_languages":["de","fr"]`) {
		t.Fatalf("expected available languages in response, got %s", body)
	}
	if strings.Index(body, `"neuer"`) > strings.Index(body, `"alter"`) {
		t.Fatalf("expected newest-first record order preserved, got %s", body)
	}
}

func TestHandleHistory_AllSelectorReturnsUnfiltered(t *testing.T) {
	t.Parallel()

	history := &fakeHistoryStore{
		records: []db.HistoryRecord{
			{RecordID: 2, TargetLang: "de", TranslatedText: "hallo"},
			{RecordID: 1, TargetLang: "fr", TranslatedText: "bonjour"},
		},
		languages: []string{"de", "fr"},
	}
	server := &Server{
		logger:       zerolog.Nop(),
		historyStore: history,
	}

	for _, selector := range []string{"All", "all", "ALL"} {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/history?lang="+selector, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := server.handleHistory(c); err != nil {
			t.Fatalf("handleHistory returned error for %q: %v", selector, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status for %q: got %d want %d", selector, rec.Code, http.StatusOK)
		}
		if history.lastLang != "" {
			t.Fatalf("expected empty filter for %q, store received %q", selector, history.lastLang)
		}
		if !strings.Contains(rec.Body.String(), `"bonjour"`) {
			t.Fatalf("expected unfiltered records for %q, got %s", selector, rec.Body.String())
		}
	}
}

func TestHandleHistory_RejectsInvalidLimit(t *testing.T) {
	t.Parallel()

	server := &Server{
		logger:       zerolog.Nop(),
		historyStore: &fakeHistoryStore{},
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=boom", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := server.handleHistory(c); err != nil {
		t.Fatalf("handleHistory returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleQuota_ReturnsCurrentQuota(t *testing.T) {
	t.Parallel()

	quotas := newFakeQuotaStore()
	quotas.quotasByUserID[42] = &db.QuotaRow{UserID: 42, QuotaUsed: 1, QuotaLimit: 3}

	server := &Server{
		logger:     zerolog.Nop(),
		opts:       Options{DefaultQuotaLimit: 3},
		quotaStore: quotas,
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("auth.principal", authPrincipal{UserID: 42})

	if err := server.handleQuota(c); err != nil {
		t.Fatalf("handleQuota returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"used":1`) || !strings.Contains(body, `"remaining":2`) {
		t.Fatalf("unexpected quota payload: %s", body)
	}
}

func TestHandleLanguages_ListsTranslationAndSpeechLanguages(t *testing.T) {
	t.Parallel()

	server := &Server{logger: zerolog.Nop()}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := server.handleLanguages(c); err != nil {
		t.Fatalf("handleLanguages returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"translation"`) || !strings.Contains(body, `"speech"`) {
		t.Fatalf("expected translation and speech language lists, got %s", body)
	}
}
