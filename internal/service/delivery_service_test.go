package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forprompt/forprompt/api/internal/domain"
)

func newTestDelivery() (*DeliveryService, *[]time.Duration) {
	svc := NewDeliveryService(zap.NewNop(), 5*time.Second)
	var slept []time.Duration
	svc.sleep = func(d time.Duration) {
		slept = append(slept, d)
	}
	return svc, &slept
}

func testSubscription(url string) *domain.WebhookSubscription {
	return &domain.WebhookSubscription{
		ID:        uuid.New(),
		ProjectID: uuid.New(),
		URL:       url,
		Secret:    "super-secret-signing-key",
		Events:    []domain.EventType{domain.EventTypeTraceCreated},
		IsActive:  true,
	}
}

func testPayload(projectID uuid.UUID) *domain.WebhookPayload {
	return &domain.WebhookPayload{
		Event:     domain.EventTypeTraceCreated,
		Timestamp: time.Now().UTC(),
		ProjectID: projectID.String(),
		Data:      map[string]any{"traceId": "trace-1"},
	}
}

func TestDeliveryService_Deliver(t *testing.T) {
	t.Run("succeeds on 2xx with signed headers", func(t *testing.T) {
		var gotBody []byte
		var gotHeaders http.Header
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			gotHeaders = r.Header.Clone()
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		svc, slept := newTestDelivery()
		sub := testSubscription(server.URL)
		payload := testPayload(sub.ProjectID)

		result, err := svc.Deliver(context.Background(), sub, payload)
		require.NoError(t, err)

		assert.Equal(t, domain.DeliverySucceeded, result.Outcome)
		assert.Equal(t, 1, result.Attempts)
		assert.Equal(t, http.StatusOK, result.StatusCode)
		assert.Empty(t, *slept)

		mac := hmac.New(sha256.New, []byte(sub.Secret))
		mac.Write(gotBody)
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotHeaders.Get("X-Signature"))
		assert.Equal(t, "trace.created", gotHeaders.Get("X-Event"))
		assert.Equal(t, result.DeliveryID.String(), gotHeaders.Get("X-Delivery-Id"))
		assert.Equal(t, "ForPrompt-Webhook/1.0", gotHeaders.Get("User-Agent"))

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(gotBody, &decoded))
		assert.Equal(t, "trace.created", decoded["event"])
	})

	t.Run("retries on 5xx until success", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		svc, slept := newTestDelivery()
		sub := testSubscription(server.URL)

		result, err := svc.Deliver(context.Background(), sub, testPayload(sub.ProjectID))
		require.NoError(t, err)

		assert.Equal(t, domain.DeliverySucceeded, result.Outcome)
		assert.Equal(t, 3, result.Attempts)
		assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		svc, slept := newTestDelivery()
		sub := testSubscription(server.URL)

		result, err := svc.Deliver(context.Background(), sub, testPayload(sub.ProjectID))
		require.NoError(t, err)

		assert.Equal(t, domain.DeliveryFailed, result.Outcome)
		assert.Equal(t, 3, result.Attempts)
		assert.Equal(t, int32(3), calls.Load())
		assert.Len(t, *slept, 2)
		assert.Contains(t, result.Error, "502")
	})

	t.Run("does not retry a 4xx rejection", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusGone)
		}))
		defer server.Close()

		svc, slept := newTestDelivery()
		sub := testSubscription(server.URL)

		result, err := svc.Deliver(context.Background(), sub, testPayload(sub.ProjectID))
		require.NoError(t, err)

		assert.Equal(t, domain.DeliveryFailed, result.Outcome)
		assert.Equal(t, 1, result.Attempts)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, http.StatusGone, result.StatusCode)
		assert.Empty(t, *slept)
	})

	t.Run("retries connection errors", func(t *testing.T) {
		// A closed server refuses the connection outright
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		svc, slept := newTestDelivery()
		sub := testSubscription(server.URL)

		result, err := svc.Deliver(context.Background(), sub, testPayload(sub.ProjectID))
		require.NoError(t, err)

		assert.Equal(t, domain.DeliveryFailed, result.Outcome)
		assert.Equal(t, 3, result.Attempts)
		assert.Equal(t, 0, result.StatusCode)
		assert.Len(t, *slept, 2)
	})

	t.Run("stops retrying when the context is cancelled", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		svc, slept := newTestDelivery()
		sub := testSubscription(server.URL)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := svc.Deliver(ctx, sub, testPayload(sub.ProjectID))
		require.NoError(t, err)

		assert.Equal(t, domain.DeliveryFailed, result.Outcome)
		assert.Empty(t, *slept)
	})

	t.Run("fresh delivery ID per sequence", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		svc, _ := newTestDelivery()
		sub := testSubscription(server.URL)

		first, err := svc.Deliver(context.Background(), sub, testPayload(sub.ProjectID))
		require.NoError(t, err)
		second, err := svc.Deliver(context.Background(), sub, testPayload(sub.ProjectID))
		require.NoError(t, err)

		assert.NotEqual(t, first.DeliveryID, second.DeliveryID)
	})
}

func TestComputeSignature(t *testing.T) {
	sig := computeSignature([]byte(`{"event":"trace.created"}`), "secret-one")
	again := computeSignature([]byte(`{"event":"trace.created"}`), "secret-one")
	other := computeSignature([]byte(`{"event":"trace.created"}`), "secret-two")

	assert.Equal(t, sig, again)
	assert.NotEqual(t, sig, other)
	assert.Len(t, sig, 64)
}
