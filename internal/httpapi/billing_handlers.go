package httpapi

import (
	"errors"

	"github.com/labstack/echo/v4"

	"horse.fit/parrot/internal/db"
	"horse.fit/parrot/internal/globaltime"
	"horse.fit/parrot/internal/receipt"
)

// creditPlans are the purchasable credit bundles.
var creditPlans = map[int]bool{
	5:  true,
	10: true,
	15: true,
}

type buyPlanRequest struct {
	Messages int `json:"messages"`
}

type receiptGenerator interface {
	Generate(purchase receipt.Purchase) (string, error)
}

// handleBuyPlan raises the caller's quota limit by the purchased bundle.
// Receipt generation is best effort and never fails the purchase.
func (s *Server) handleBuyPlan(c echo.Context) error {
	store := s.quotaDataStore()
	if store == nil {
		return internalError(c, "Failed to process purchase")
	}

	principal, ok := principalFromContext(c)
	if !ok {
		return unauthorizedResponse(c)
	}

	var req buyPlanRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	if !creditPlans[req.Messages] {
		return failValidation(c, map[string]string{"messages": "must be one of 5, 10 or 15"})
	}

	quota, err := store.GrantQuota(c.Request().Context(), principal.UserID, req.Messages)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "User not found")
		}
		s.logger.Error().Err(err).Int64("user_id", principal.UserID).Msg("grant quota failed")
		return internalError(c, "Failed to process purchase")
	}

	receiptFile := ""
	if s.receipts != nil {
		fileName, receiptErr := s.receipts.Generate(receipt.Purchase{
			Email:    principal.Email,
			FullName: principal.FullName,
			Credits:  req.Messages,
			IssuedAt: globaltime.UTC(),
		})
		if receiptErr != nil {
			s.logger.Warn().Err(receiptErr).Int64("user_id", principal.UserID).Msg("receipt generation failed")
		} else {
			receiptFile = fileName
		}
	}

	return success(c, map[string]any{
		"quota":        buildQuotaResponse(quota),
		"credits":      req.Messages,
		"receipt_file": receiptFile,
	})
}
