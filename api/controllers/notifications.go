package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/equipledger-backend/api/responses"
	"github.com/angelmondragon/equipledger-backend/api/validators"
	"github.com/angelmondragon/equipledger-backend/internal/notifications"
	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/equipledger-backend/pkg/errors"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
	"github.com/angelmondragon/equipledger-backend/pkg/pagination"
	"github.com/angelmondragon/equipledger-backend/pkg/types"
)

type deliveryResponse struct {
	ID            uuid.UUID               `json:"id"`
	AggregateType string                  `json:"aggregate_type"`
	AggregateID   string                  `json:"aggregate_id"`
	EventType     enums.NotificationEvent `json:"event_type"`
	Status        enums.DeliveryStatus    `json:"status"`
	Error         *string                 `json:"error,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

func deliveryResponseFromModel(m models.NotificationDelivery) deliveryResponse {
	return deliveryResponse{
		ID:            m.ID,
		AggregateType: m.AggregateType,
		AggregateID:   m.AggregateID,
		EventType:     m.EventType,
		Status:        m.Status,
		Error:         m.Error,
		CreatedAt:     m.CreatedAt,
	}
}

// ListNotificationDeliveries returns the delivery log of one movement or contract, newest first.
func ListNotificationDeliveries(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		result, err := svc.ListDeliveries(r.Context(), notifications.ListParams{
			AggregateType: strings.TrimSpace(query.Get("aggregate_type")),
			AggregateID:   strings.TrimSpace(query.Get("aggregate_id")),
			Limit:         limit,
			Cursor:        strings.TrimSpace(query.Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]deliveryResponse, 0, len(result.Items))
		for _, item := range result.Items {
			items = append(items, deliveryResponseFromModel(item))
		}
		responses.WriteSuccess(w, types.Page[deliveryResponse]{Items: items, Cursor: result.Cursor})
	}
}
