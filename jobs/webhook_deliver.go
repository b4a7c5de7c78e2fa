package jobs

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	jobmetrics "github.com/gatehouse-io/gatehouse/internal/jobs"
	"github.com/gatehouse-io/gatehouse/internal/webhooks"
)

const (
	signatureHeader = "X-Gatehouse-Signature"
	eventHeader     = "X-Gatehouse-Event"
	deliveryHeader  = "X-Gatehouse-Delivery"

	dedupeTTL = 24 * time.Hour
)

// WebhookDeliverJob posts queued events to subscriber endpoints. A Redis
// SETNX guard keyed by (event, endpoint) keeps retried enqueues from hitting
// an endpoint twice.
type WebhookDeliverJob struct {
	HTTPClient *http.Client
	Redis      *redis.Client
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	Timeout    time.Duration
}

// NewWebhookDeliverJob initialises the delivery handler.
func NewWebhookDeliverJob(redisClient *redis.Client, logger *slog.Logger, metrics *jobmetrics.Metrics, timeout time.Duration) *WebhookDeliverJob {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookDeliverJob{
		HTTPClient: &http.Client{Timeout: timeout},
		Redis:      redisClient,
		Logger:     logger,
		Metrics:    metrics,
		Timeout:    timeout,
	}
}

// Handle executes one delivery attempt.
func (j *WebhookDeliverJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("webhook deliver: handler not configured")
	}
	var d webhooks.Delivery
	if err := json.Unmarshal(t.Payload(), &d); err != nil {
		return asynq.SkipRetry
	}
	if d.URL == "" || d.EndpointID == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskWebhookDeliver)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("event_id", d.EventID),
		slog.String("event_type", d.EventType),
		slog.String("endpoint_id", d.EndpointID),
	)

	dedupeKey := fmt.Sprintf("gatehouse:webhook:sent:%s:%s", d.EventID, d.EndpointID)
	if j.Redis != nil {
		acquired, err := j.Redis.SetNX(ctx, dedupeKey, "1", dedupeTTL).Result()
		if err != nil {
			resultErr = fmt.Errorf("webhook deliver: dedupe check: %w", err)
			return resultErr
		}
		if !acquired {
			j.metrics().AddDelivery(d.EventType, "duplicate")
			logger.Info("skipping duplicate webhook delivery")
			return nil
		}
	}

	if err := j.send(ctx, d); err != nil {
		// Release the guard so the retry can attempt the send again.
		if j.Redis != nil {
			if delErr := j.Redis.Del(ctx, dedupeKey).Err(); delErr != nil {
				logger.Warn("release dedupe guard", slog.Any("error", delErr))
			}
		}
		j.metrics().AddDelivery(d.EventType, "failed")
		logger.Warn("webhook delivery failed", slog.Any("error", err))
		resultErr = err
		return resultErr
	}

	j.metrics().AddDelivery(d.EventType, "delivered")
	logger.Info("webhook delivered")
	return nil
}

func (j *WebhookDeliverJob) send(ctx context.Context, d webhooks.Delivery) error {
	envelope, err := json.Marshal(map[string]any{
		"id":         d.EventID,
		"type":       d.EventType,
		"occurredAt": d.OccurredAt.UTC().Format(time.RFC3339),
		"data":       d.Body,
	})
	if err != nil {
		return fmt.Errorf("webhook deliver: encode envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(envelope))
	if err != nil {
		return fmt.Errorf("webhook deliver: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(eventHeader, d.EventType)
	req.Header.Set(deliveryHeader, d.EventID)
	req.Header.Set(signatureHeader, Sign(d.Secret, envelope))

	resp, err := j.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("webhook deliver: post: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New("webhook deliver: endpoint returned " + strconv.Itoa(resp.StatusCode))
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 of the request body under the endpoint
// secret, prefixed with the scheme version.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (j *WebhookDeliverJob) httpClient() *http.Client {
	if j.HTTPClient != nil {
		return j.HTTPClient
	}
	return http.DefaultClient
}

func (j *WebhookDeliverJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskWebhookDeliver))
	}
	return slog.Default().With(slog.String("job", TaskWebhookDeliver))
}

func (j *WebhookDeliverJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
