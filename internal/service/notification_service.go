package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orderline/orders-bff/internal/config"
	"github.com/orderline/orders-bff/internal/events"
)

// NotificationService emits notifications for domain events.
type NotificationService struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
	client *http.Client
}

// NewNotificationService creates the service.
func NewNotificationService(logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		logger: logger,
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify logs the event and forwards it to the webhook when one is configured.
func (n *NotificationService) Notify(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventOpportunityStatusChanged:
		n.logger.Info("OpportunityStatusChanged", zap.String("opportunity_id", event.OpportunityID), zap.Any("payload", event.Payload))
	case events.EventOpportunityInvoiceRecorded:
		n.logger.Info("OpportunityInvoiceRecorded", zap.String("opportunity_id", event.OpportunityID), zap.Any("payload", event.Payload))
	default:
		n.logger.Debug("unhandled event", zap.String("event_type", string(event.Type)))
		return nil
	}
	return n.sendWebhook(ctx, event)
}

func (n *NotificationService) sendWebhook(ctx context.Context, event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook post: status %d", resp.StatusCode)
	}
	n.logger.Debug("webhook delivered",
		zap.String("opportunity_id", event.OpportunityID),
		zap.String("event_type", string(event.Type)))
	return nil
}
