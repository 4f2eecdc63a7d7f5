// workers/notification_worker.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"trivia-match-system/models"
	"trivia-match-system/utils"

	"gorm.io/gorm"
)

const (
	deliveryBatchSize   = 20
	maxDeliveryAttempts = 5
)

// notificationEnvelope matches the JSON the notification service accepts.
type notificationEnvelope struct {
	RecipientID string          `json:"recipient_id"`
	Kind        string          `json:"kind"`
	SessionID   string          `json:"session_id"`
	Payload     json.RawMessage `json:"payload"`
}

// NotificationWorker drains the match_notifications outbox and delivers each
// row to the external notification service. Delivery is at-least-once: a row
// stays pending until a 2xx response, then rows past maxDeliveryAttempts are
// parked as failed.
type NotificationWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8600"
	endpointPath string // e.g., "/api/v1/notifications"
	serviceToken string
	httpClient   *http.Client
}

func NewNotificationWorker(db *gorm.DB, notifyServiceBaseURL, endpointPath, serviceToken string) *NotificationWorker {
	return &NotificationWorker{
		db:           db,
		interval:     5 * time.Second,
		baseURL:      notifyServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *NotificationWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Notification Worker (outbox → notification service)…")
	go w.run(ctx)
}

func (w *NotificationWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.deliverBatch(ctx); err != nil {
				log.Printf("❌ [NOTIFY] Delivery batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Notification Worker stopped")
			return
		}
	}
}

// deliverBatch picks up to deliveryBatchSize pending rows, oldest first, and
// attempts each one independently.
func (w *NotificationWorker) deliverBatch(ctx context.Context) error {
	var pending []models.MatchNotification
	err := w.db.Where("status = ? AND attempts < ?", models.NotificationPending, maxDeliveryAttempts).
		Order("created_at ASC").
		Limit(deliveryBatchSize).
		Find(&pending).Error
	if err != nil {
		return fmt.Errorf("failed to load pending notifications: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid notification service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath).String()

	var delivered, failed int
	for i := range pending {
		n := &pending[i]
		if err := w.deliverOne(ctx, endpointURL, n); err != nil {
			failed++
			n.Attempts++
			n.LastError = err.Error()
			if n.Attempts >= maxDeliveryAttempts {
				n.Status = models.NotificationFailed
				log.Printf("⚠️ [NOTIFY] Giving up on notification %s (kind=%s) after %d attempts: %v", n.ID, n.Kind, n.Attempts, err)
			}
			if saveErr := w.db.Save(n).Error; saveErr != nil {
				log.Printf("⚠️ [NOTIFY] Failed to record delivery failure for %s: %v", n.ID, saveErr)
			}
			continue
		}

		delivered++
		now := time.Now()
		n.Status = models.NotificationDelivered
		n.DeliveredAt = &now
		n.Attempts++
		n.LastError = ""
		if saveErr := w.db.Save(n).Error; saveErr != nil {
			log.Printf("⚠️ [NOTIFY] Failed to mark %s delivered: %v", n.ID, saveErr)
		}
	}

	log.Printf("📤 [NOTIFY] Batch done: %d delivered, %d failed (of %d)", delivered, failed, len(pending))
	return nil
}

func (w *NotificationWorker) deliverOne(ctx context.Context, endpointURL string, n *models.MatchNotification) error {
	payload := json.RawMessage(n.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	body, err := json.Marshal(notificationEnvelope{
		RecipientID: n.RecipientID,
		Kind:        n.Kind,
		SessionID:   n.SessionID,
		Payload:     payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification %s: %w", n.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpointURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to notification service failed: %w", err)
	}
	defer func() {
		// Always drain & close to prevent connection leaks
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notification service non-2xx response: %d — %s", resp.StatusCode, string(errBody))
	}
	return nil
}
