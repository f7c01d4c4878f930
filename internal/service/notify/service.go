package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/Shoofai/apimarketplace-sub002/internal/domain"
	"github.com/Shoofai/apimarketplace-sub002/internal/repository"
	"github.com/Shoofai/apimarketplace-sub002/internal/ws"
	"github.com/Shoofai/apimarketplace-sub002/pkg/config"
)

// Event types dispatched through the notification pipeline.
const (
	EventSLAViolation = "api.sla_violation"
)

// Event is a structured notification request. The dispatcher persists it,
// pushes it to connected dashboard sockets, and optionally forwards it to a
// configured webhook.
type Event struct {
	Type           string         `json:"type"`
	UserID         string         `json:"userId"`
	OrganizationID string         `json:"organizationId"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	Link           string         `json:"link"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Service fans out notification events.
type Service struct {
	repo       repository.NotificationRepository
	hub        *ws.Hub
	logger     *slog.Logger
	webhookURL string
	secret     string
	httpClient *http.Client
	now        func() time.Time
}

// New constructs a notification dispatcher.
func New(repo repository.NotificationRepository, hub *ws.Hub, logger *slog.Logger, cfg config.APIConfig) *Service {
	timeout := cfg.NotifyWebhookTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger != nil {
		logger = logger.With("component", "notify")
	}
	return &Service{
		repo:       repo,
		hub:        hub,
		logger:     logger,
		webhookURL: strings.TrimSpace(cfg.NotifyWebhookURL),
		secret:     cfg.NotifyWebhookSecret,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Dispatch persists the event as an in-app notification and fans out to the
// live socket hub and outbound webhook. Fan-out failures are logged, not
// returned; only the persistence failure is an error.
func (s *Service) Dispatch(ctx context.Context, event Event) error {
	if s == nil {
		return errors.New("notification service not initialised")
	}
	if strings.TrimSpace(event.Type) == "" {
		return errors.New("event type required")
	}
	if strings.TrimSpace(event.UserID) == "" {
		return errors.New("event user id required")
	}

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return err
	}
	notification := &domain.Notification{
		ID:             uuid.NewString(),
		UserID:         event.UserID,
		OrganizationID: event.OrganizationID,
		Type:           event.Type,
		Title:          event.Title,
		Body:           event.Body,
		Link:           event.Link,
		Metadata:       metadata,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.InsertNotification(ctx, notification); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("failed to encode notification event", "type", event.Type, "error", err)
		}
		return nil
	}
	s.broadcast(event.OrganizationID, payload)
	s.forwardWebhook(ctx, payload)
	return nil
}

func (s *Service) broadcast(organizationID string, payload []byte) {
	if s.hub == nil || organizationID == "" {
		return
	}
	s.hub.Broadcast(organizationID, payload)
}

// forwardWebhook posts the event to the configured endpoint, signed with
// HMAC-SHA256 over the body.
func (s *Service) forwardWebhook(ctx context.Context, payload []byte) {
	if s.webhookURL == "" {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		s.logWebhookError(err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.secret != "" {
		hasher := hmac.New(sha256.New, []byte(s.secret))
		hasher.Write(payload)
		req.Header.Set("X-Notification-Signature", hex.EncodeToString(hasher.Sum(nil)))
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logWebhookError(err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		if s.logger != nil {
			s.logger.Warn("notification webhook rejected event", "status", resp.StatusCode)
		}
	}
}

func (s *Service) logWebhookError(err error) {
	if s.logger != nil {
		s.logger.Warn("notification webhook delivery failed", "error", err)
	}
}
