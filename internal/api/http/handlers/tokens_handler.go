package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-service/internal/api/dto"
	"github.com/spec-kit/token-service/internal/observability"
	"github.com/spec-kit/token-service/internal/service"
	"github.com/spec-kit/token-service/pkg/util"
)

// TokensHandler exposes token issuance and lookup endpoints.
type TokensHandler struct {
	issuance *service.IssuanceService
	metrics  *observability.Metrics
}

// NewTokensHandler constructs handler.
func NewTokensHandler(issuanceService *service.IssuanceService, metrics *observability.Metrics) *TokensHandler {
	return &TokensHandler{issuance: issuanceService, metrics: metrics}
}

// Issue handles POST /tokens.
func (h *TokensHandler) Issue(c *fiber.Ctx) error {
	var req dto.IssueTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.Identity == "" {
		return util.NewInvalidIdentity("identity required")
	}

	result, err := h.issuance.Issue(c.UserContext(), service.IssueRequest{
		Identity:           req.Identity,
		CallerARN:          req.UserARN,
		AuthenticationType: req.AuthenticationType,
	})
	if err != nil {
		h.metrics.RecordIssuance(util.ToDomainError(err).Code)
		return err
	}
	h.metrics.RecordIssuance("issued")

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.IssueTokenResponse{
			Token:     result.Token,
			IssuedAt:  result.Record.IssuedAt,
			ExpiresAt: result.Record.ExpiresAt,
		},
	})
}

// Lookup handles GET /tokens/:token.
func (h *TokensHandler) Lookup(c *fiber.Ctx) error {
	record, err := h.issuance.Lookup(c.UserContext(), c.Params("token"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRecord(record)})
}
