package webhooks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RepositoryPort defines data access methods for webhook endpoints.
type RepositoryPort interface {
	CreateEndpoint(ctx context.Context, e Endpoint) (Endpoint, error)
	GetEndpoint(ctx context.Context, id string) (Endpoint, error)
	ListEndpoints(ctx context.Context, organizationID string) ([]Endpoint, error)
	ListSubscribed(ctx context.Context, eventType string) ([]Endpoint, error)
	DisableEndpoint(ctx context.Context, id string) error
}

// DeliveryQueue hands deliveries to the background worker.
type DeliveryQueue interface {
	EnqueueDelivery(ctx context.Context, d Delivery) error
}

// ErrInvalidURL indicates a registration target that is not an absolute
// http(s) URL.
var ErrInvalidURL = errors.New("webhooks: invalid endpoint url")

// Service manages endpoint registrations and fans events out to them.
type Service struct {
	repo   RepositoryPort
	queue  DeliveryQueue
	logger *slog.Logger
	clock  func() time.Time
}

// NewService builds Service instance. queue may be nil, in which case
// Publish resolves subscribers but delivers nothing.
func NewService(repo RepositoryPort, queue DeliveryQueue, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		queue:  queue,
		logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Register creates an endpoint with a freshly minted signing secret. The
// secret is returned on the record and shown to the caller once.
func (s *Service) Register(ctx context.Context, organizationID, rawURL string, eventTypes []string) (Endpoint, error) {
	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !target.IsAbs() || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return Endpoint{}, ErrInvalidURL
	}
	types := normalizeEventTypes(eventTypes)
	if len(types) == 0 {
		types = []string{"*"}
	}
	secret, err := mintSecret()
	if err != nil {
		return Endpoint{}, err
	}
	return s.repo.CreateEndpoint(ctx, Endpoint{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		URL:            target.String(),
		Secret:         secret,
		EventTypes:     types,
		Status:         EndpointActive,
	})
}

// List returns the endpoints of an organization.
func (s *Service) List(ctx context.Context, organizationID string) ([]Endpoint, error) {
	return s.repo.ListEndpoints(ctx, organizationID)
}

// Disable stops deliveries to an endpoint. Disabled endpoints stay on
// record but never receive events again.
func (s *Service) Disable(ctx context.Context, id string) error {
	return s.repo.DisableEndpoint(ctx, id)
}

// Publish fans an event out to every active endpoint subscribed to its
// type. Each matching endpoint gets its own queued delivery; enqueue
// failures for one endpoint do not block the others.
func (s *Service) Publish(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhooks: encode %s payload: %w", eventType, err)
	}
	endpoints, err := s.repo.ListSubscribed(ctx, eventType)
	if err != nil {
		return err
	}
	if len(endpoints) == 0 || s.queue == nil {
		return nil
	}

	eventID := uuid.NewString()
	occurredAt := s.clock()
	var failed int
	for _, e := range endpoints {
		d := Delivery{
			EventID:    eventID,
			EndpointID: e.ID,
			URL:        e.URL,
			Secret:     e.Secret,
			EventType:  eventType,
			OccurredAt: occurredAt,
			Body:       body,
		}
		if err := s.queue.EnqueueDelivery(ctx, d); err != nil {
			failed++
			if s.logger != nil {
				s.logger.Warn("enqueue webhook delivery",
					slog.String("event_type", eventType),
					slog.String("endpoint_id", e.ID),
					slog.Any("error", err),
				)
			}
		}
	}
	if failed == len(endpoints) {
		return fmt.Errorf("webhooks: all %d deliveries for %s failed to enqueue", failed, eventType)
	}
	return nil
}

func normalizeEventTypes(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func mintSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("webhooks: random: %w", err)
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}
