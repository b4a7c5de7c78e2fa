package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/gatehouse-io/gatehouse/internal/jobs"
	"github.com/gatehouse-io/gatehouse/internal/webhooks"
)

func newTestJob(t *testing.T) (*WebhookDeliverJob, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewWebhookDeliverJob(client, slog.New(slog.DiscardHandler), metrics, 2*time.Second)
	return job, client
}

func deliveryTask(t *testing.T, d webhooks.Delivery) *asynq.Task {
	t.Helper()
	task, err := NewWebhookDeliveryTask(d)
	require.NoError(t, err)
	return task
}

func TestWebhookDeliverPostsSignedEnvelope(t *testing.T) {
	var gotBody []byte
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		var raw json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		gotBody = raw
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	job, _ := newTestJob(t)
	d := webhooks.Delivery{
		EventID:    "evt-1",
		EndpointID: "ep-1",
		URL:        srv.URL,
		Secret:     "whsec_test",
		EventType:  "group.deleted",
		OccurredAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Body:       json.RawMessage(`{"groupId":"g1"}`),
	}

	require.NoError(t, job.Handle(context.Background(), deliveryTask(t, d)))

	assert.Equal(t, "group.deleted", gotHeaders.Get("X-Gatehouse-Event"))
	assert.Equal(t, "evt-1", gotHeaders.Get("X-Gatehouse-Delivery"))
	assert.Equal(t, Sign("whsec_test", gotBody), gotHeaders.Get("X-Gatehouse-Signature"))

	var envelope struct {
		ID         string          `json:"id"`
		Type       string          `json:"type"`
		OccurredAt string          `json:"occurredAt"`
		Data       json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &envelope))
	assert.Equal(t, "evt-1", envelope.ID)
	assert.Equal(t, "2026-08-01T12:00:00Z", envelope.OccurredAt)
	assert.JSONEq(t, `{"groupId":"g1"}`, string(envelope.Data))
}

func TestWebhookDeliverSkipsDuplicate(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	job, _ := newTestJob(t)
	d := webhooks.Delivery{
		EventID:    "evt-1",
		EndpointID: "ep-1",
		URL:        srv.URL,
		Secret:     "whsec_test",
		EventType:  "group.deleted",
		Body:       json.RawMessage(`{}`),
	}

	require.NoError(t, job.Handle(context.Background(), deliveryTask(t, d)))
	require.NoError(t, job.Handle(context.Background(), deliveryTask(t, d)))
	assert.Equal(t, int32(1), hits.Load())
}

func TestWebhookDeliverRetriesAfterEndpointError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	job, _ := newTestJob(t)
	d := webhooks.Delivery{
		EventID:    "evt-1",
		EndpointID: "ep-1",
		URL:        srv.URL,
		Secret:     "whsec_test",
		EventType:  "group.deleted",
		Body:       json.RawMessage(`{}`),
	}

	require.Error(t, job.Handle(context.Background(), deliveryTask(t, d)))
	// The failed attempt releases the dedupe guard, so the retry goes through.
	require.NoError(t, job.Handle(context.Background(), deliveryTask(t, d)))
	assert.Equal(t, int32(2), hits.Load())
}

func TestWebhookDeliverMalformedPayload(t *testing.T) {
	job, _ := newTestJob(t)

	err := job.Handle(context.Background(), asynq.NewTask(TaskWebhookDeliver, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskWebhookDeliver, []byte(`{"eventId":"evt-1"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
