package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/equipledger-backend/pkg/errors"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
	"github.com/angelmondragon/equipledger-backend/pkg/metrics"
	"github.com/angelmondragon/equipledger-backend/pkg/pagination"
	"github.com/angelmondragon/equipledger-backend/pkg/pubsub"
)

const (
	AggregateMovement       = "movement"
	AggregateRentalContract = "rental_contract"

	defaultPublishTimeout = 5 * time.Second
)

// Publisher is the outbound transport. *pubsub.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// Event is one committed ledger fact to announce.
type Event struct {
	Type          enums.NotificationEvent
	AggregateType string
	AggregateID   string
	OccurredAt    time.Time
	Data          any
}

// Envelope is the JSON body published for every event.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// Dispatcher announces committed facts. It never returns an error: the
// outcome is reported as a delivery status and the fact stays committed.
type Dispatcher interface {
	Notify(ctx context.Context, event Event) enums.DeliveryStatus
}

// Service is the dispatcher plus the delivery log read surface.
type Service interface {
	Dispatcher
	ListDeliveries(ctx context.Context, params ListParams) (*ListResult, error)
}

// ListParams configures pagination for one aggregate's deliveries.
type ListParams struct {
	AggregateType string
	AggregateID   string
	Limit         int
	Cursor        string
}

// ListResult wraps returned deliveries and the cursor for the next page.
type ListResult struct {
	Items  []models.NotificationDelivery `json:"items"`
	Cursor string                        `json:"cursor"`
}

type ServiceParams struct {
	Repo           Repository
	Publisher      Publisher
	Logger         *logger.Logger
	Metrics        *metrics.LedgerMetrics
	PublishTimeout time.Duration
}

type service struct {
	repo      Repository
	publisher Publisher
	logg      *logger.Logger
	metrics   *metrics.LedgerMetrics
	timeout   time.Duration
}

// NewService wires the dispatcher. A nil Publisher is allowed and yields
// not_attempted for every event.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := params.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &service{
		repo:      params.Repo,
		publisher: params.Publisher,
		logg:      params.Logger,
		metrics:   params.Metrics,
		timeout:   timeout,
	}, nil
}

func (s *service) Notify(ctx context.Context, event Event) enums.DeliveryStatus {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_type":     string(event.Type),
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
	})

	status, publishErr := s.publish(ctx, event)
	switch status {
	case enums.DeliveryStatusFailed:
		s.logg.Error(logCtx, "notification publish failed", publishErr)
	case enums.DeliveryStatusNotAttempted:
		s.logg.Debug(logCtx, "notification publisher not configured")
	default:
		s.logg.Info(logCtx, "notification published")
	}
	s.metrics.IncNotification(string(event.Type), string(status))

	delivery := &models.NotificationDelivery{
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.Type,
		Status:        status,
	}
	if publishErr != nil {
		msg := publishErr.Error()
		delivery.Error = &msg
	}
	// The request context may already be done once the response is on its way.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.repo.Create(recordCtx, delivery); err != nil {
		s.logg.Error(logCtx, "failed to record notification delivery", err)
	}
	return status
}

func (s *service) publish(ctx context.Context, event Event) (enums.DeliveryStatus, error) {
	if s.publisher == nil {
		return enums.DeliveryStatusNotAttempted, nil
	}

	body, err := encodeEnvelope(event)
	if err != nil {
		return enums.DeliveryStatusFailed, err
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	attrs := map[string]string{
		"event_type":     string(event.Type),
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
	}
	// events of one aggregate are delivered in publish order
	attrs[pubsub.OrderingKeyAttr] = event.AggregateType + ":" + event.AggregateID
	if _, err := s.publisher.Publish(pubCtx, body, attrs); err != nil {
		return enums.DeliveryStatusFailed, err
	}
	return enums.DeliveryStatusSent, nil
}

func encodeEnvelope(event Event) ([]byte, error) {
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	envelope := Envelope{
		EventID:       uuid.NewString(),
		EventType:     string(event.Type),
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		OccurredAt:    occurredAt.UTC(),
	}
	if event.Data != nil {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return nil, fmt.Errorf("encode event data: %w", err)
		}
		envelope.Data = data
	}
	return json.Marshal(envelope)
}

func (s *service) ListDeliveries(ctx context.Context, params ListParams) (*ListResult, error) {
	aggregateType := strings.TrimSpace(params.AggregateType)
	if aggregateType != AggregateMovement && aggregateType != AggregateRentalContract {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "aggregate type must be movement or rental_contract")
	}
	if strings.TrimSpace(params.AggregateID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "aggregate id required")
	}

	query := listDeliveriesParams{
		AggregateType: aggregateType,
		AggregateID:   strings.TrimSpace(params.AggregateID),
		Limit:         params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListByAggregate(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notification deliveries")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}
