package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/forprompt/forprompt/api/internal/domain"
	"github.com/forprompt/forprompt/api/internal/pkg/id"
	"github.com/forprompt/forprompt/api/internal/pkg/metrics"
)

const (
	// maxDeliveryAttempts bounds a single delivery sequence.
	maxDeliveryAttempts = 3
	// retryBackoffBase is the wait before the first retry; each further
	// retry doubles it (2s, then 4s).
	retryBackoffBase = 2 * time.Second

	webhookUserAgent = "ForPrompt-Webhook/1.0"
)

// DeliveryService pushes event payloads to subscriber endpoints.
//
// A delivery sequence makes up to three HTTP attempts against the
// subscription URL. Any 2xx response ends the sequence as a success. A 4xx
// response is treated as terminal: the receiver understood the request and
// rejected it, so retrying the same payload cannot help. Everything else
// (5xx, timeouts, connection errors) is retryable with exponential backoff
// between attempts.
//
// Each request carries:
//   - X-Signature: hex HMAC-SHA256 of the raw body under the subscription secret
//   - X-Event: the event type
//   - X-Delivery-Id: a fresh UUID per sequence, for receiver-side deduplication
type DeliveryService struct {
	logger     *zap.Logger
	httpClient *http.Client
	// sleep is replaceable in tests so retry backoff doesn't slow them down
	sleep func(time.Duration)
}

// NewDeliveryService creates a new delivery service. requestTimeout bounds
// each individual HTTP attempt, not the whole sequence.
func NewDeliveryService(logger *zap.Logger, requestTimeout time.Duration) *DeliveryService {
	return &DeliveryService{
		logger: logger.Named("delivery"),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		sleep: time.Sleep,
	}
}

// Deliver runs one delivery sequence for a subscription and returns the
// terminal result. The error return is reserved for payload marshaling
// failures; delivery failures are reported through the result.
func (s *DeliveryService) Deliver(ctx context.Context, sub *domain.WebhookSubscription, payload *domain.WebhookPayload) (*domain.DeliveryResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	result := &domain.DeliveryResult{
		DeliveryID:     id.NewDeliveryID(),
		SubscriptionID: sub.ID,
		Event:          payload.Event,
		Outcome:        domain.DeliveryFailed,
	}
	signature := computeSignature(body, sub.Secret)

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		metrics.RecordWebhookDelivery(string(payload.Event), string(result.Outcome), result.Attempts, result.Duration)
	}()

	backoff := retryBackoffBase
	for attempt := 1; attempt <= maxDeliveryAttempts; attempt++ {
		result.Attempts = attempt

		statusCode, attemptErr := s.attempt(ctx, sub, body, signature, result.DeliveryID.String(), payload.Event)
		result.StatusCode = statusCode

		if attemptErr == nil {
			result.Outcome = domain.DeliverySucceeded
			result.Error = ""
			return result, nil
		}

		result.Error = attemptErr.Error()

		// 4xx means the receiver rejected the payload; retrying is pointless
		if statusCode >= 400 && statusCode < 500 {
			s.logger.Warn("webhook delivery rejected by receiver",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("event", string(payload.Event)),
				zap.Int("status_code", statusCode),
			)
			return result, nil
		}

		if attempt < maxDeliveryAttempts {
			select {
			case <-ctx.Done():
				result.Error = ctx.Err().Error()
				return result, nil
			default:
			}
			s.sleep(backoff)
			backoff *= 2
		}
	}

	s.logger.Warn("webhook delivery exhausted attempts",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("event", string(payload.Event)),
		zap.Int("attempts", result.Attempts),
		zap.String("error", result.Error),
	)

	return result, nil
}

// attempt makes a single HTTP POST. A nil error means a 2xx response.
func (s *DeliveryService) attempt(ctx context.Context, sub *domain.WebhookSubscription, body []byte, signature, deliveryID string, event domain.EventType) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	req.Header.Set("X-Signature", signature)
	req.Header.Set("X-Event", string(event))
	req.Header.Set("X-Delivery-Id", deliveryID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, nil
	}

	return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
}

// computeSignature computes the hex HMAC-SHA256 of body under secret
func computeSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
