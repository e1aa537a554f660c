package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/token-service/internal/config"
	"github.com/spec-kit/token-service/internal/events"
)

// AuditService records issuance outcomes and forwards them downstream when
// hooks are configured.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.HookConfig
	client     *http.Client
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.HookConfig) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTokenIssued, a.handleTokenIssued)
	a.dispatcher.Subscribe(events.EventIssuanceFailed, a.handleIssuanceFailed)
}

func (a *AuditService) handleTokenIssued(ctx context.Context, event events.Event) error {
	a.logger.Info("TokenIssued",
		zap.String("subject", event.Subject),
		zap.Any("payload", event.Payload))
	if a.cfg.NotifyIssued {
		a.postWebhook(ctx, event)
	}
	return nil
}

func (a *AuditService) handleIssuanceFailed(_ context.Context, event events.Event) error {
	a.logger.Warn("IssuanceFailed",
		zap.String("subject", event.Subject),
		zap.Any("payload", event.Payload))
	return nil
}

func (a *AuditService) postWebhook(ctx context.Context, event events.Event) {
	if strings.TrimSpace(a.cfg.WebhookURL) == "" {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		a.logger.Warn("failed to encode webhook payload", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		a.logger.Warn("failed to build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Warn("webhook delivery failed",
			zap.String("url", a.cfg.WebhookURL),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()

	a.logger.Debug("webhook delivered",
		zap.String("url", a.cfg.WebhookURL),
		zap.Int("status", resp.StatusCode),
		zap.String("event_type", string(event.Type)))
}
