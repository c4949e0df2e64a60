package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/parrot/internal/db"
	"horse.fit/parrot/internal/receipt"
)

type stubReceiptGenerator struct {
	fileName string
	err      error
	calls    int
	last     receipt.Purchase
}

func (g *stubReceiptGenerator) Generate(purchase receipt.Purchase) (string, error) {
	g.calls++
	g.last = purchase
	if g.err != nil {
		return "", g.err
	}
	return g.fileName, nil
}

func TestHandleBuyPlan_GrantsCreditsAndIssuesReceipt(t *testing.T) {
	t.Parallel()

	quotas := newFakeQuotaStore()
	quotas.quotasByUserID[42] = &db.QuotaRow{UserID: 42, QuotaUsed: 3, QuotaLimit: 3}
	receipts := &stubReceiptGenerator{fileName: "receipt_test.pdf"}

	server := &Server{
		logger:     zerolog.Nop(),
		quotaStore: quotas,
		receipts:   receipts,
	}

	c, rec := authedContext(http.MethodPost, "/api/v1/buy-plan", `{"messages":10}`, 42)
	if err := server.handleBuyPlan(c); err != nil {
		t.Fatalf("handleBuyPlan returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
	if quotas.grantCalls != 1 {
		t.Fatalf("expected one grant call, got %d", quotas.grantCalls)
	}
	if quotas.quotasByUserID[42].QuotaLimit != 13 {
		t.Fatalf("unexpected quota limit after grant: %d", quotas.quotasByUserID[42].QuotaLimit)
	}
	if receipts.calls != 1 || receipts.last.Credits != 10 {
		t.Fatalf("unexpected receipt generation: calls=%d last=%#v", receipts.calls, receipts.last)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"receipt_file":"receipt_test.pdf"`) {
		t.Fatalf("expected receipt file in response, got %s", body)
	}
	if !strings.Contains(body, `"remaining":10`) {
		t.Fatalf("expected updated remaining credits, got %s", body)
	}
}

func TestHandleBuyPlan_RejectsUnknownBundle(t *testing.T) {
	t.Parallel()

	quotas := newFakeQuotaStore()
	server := &Server{
		logger:     zerolog.Nop(),
		quotaStore: quotas,
	}

	for _, amount := range []int{0, -5, 3, 7, 100} {
		c, rec := authedContext(http.MethodPost, "/api/v1/buy-plan", fmt.Sprintf(`{"messages":%d}`, amount), 42)
		if err := server.handleBuyPlan(c); err != nil {
			t.Fatalf("handleBuyPlan returned error for %d: %v", amount, err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("unexpected status for %d: got %d want %d", amount, rec.Code, http.StatusBadRequest)
		}
	}
	if quotas.grantCalls != 0 {
		t.Fatalf("did not expect grant calls for invalid bundles, got %d", quotas.grantCalls)
	}
}

func TestHandleBuyPlan_ReceiptFailureDoesNotFailPurchase(t *testing.T) {
	t.Parallel()

	quotas := newFakeQuotaStore()
	quotas.quotasByUserID[42] = &db.QuotaRow{UserID: 42, QuotaUsed: 0, QuotaLimit: 3}
	receipts := &stubReceiptGenerator{err: fmt.Errorf("disk full")}

	server := &Server{
		logger:     zerolog.Nop(),
		quotaStore: quotas,
		receipts:   receipts,
	}

	c, rec := authedContext(http.MethodPost, "/api/v1/buy-plan", `{"messages":5}`, 42)
	if err := server.handleBuyPlan(c); err != nil {
		t.Fatalf("handleBuyPlan returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
	if quotas.grantCalls != 1 {
		t.Fatalf("expected one grant call, got %d", quotas.grantCalls)
	}
	if !strings.Contains(rec.Body.String(), `"receipt_file":""`) {
		t.Fatalf("expected empty receipt file in response, got %s", rec.Body.String())
	}
}

func TestHandleBuyPlan_UnknownUserIsNotFound(t *testing.T) {
	t.Parallel()

	server := &Server{
		logger:     zerolog.Nop(),
		quotaStore: newFakeQuotaStore(),
	}

	c, rec := authedContext(http.MethodPost, "/api/v1/buy-plan", `{"messages":5}`, 404)
	if err := server.handleBuyPlan(c); err != nil {
		t.Fatalf("handleBuyPlan returned error: %v", err)
	}

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusNotFound)
	}
}
