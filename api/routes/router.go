package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/equipledger-backend/api/controllers"
	"github.com/angelmondragon/equipledger-backend/api/middleware"
	"github.com/angelmondragon/equipledger-backend/internal/assignments"
	"github.com/angelmondragon/equipledger-backend/internal/custody"
	"github.com/angelmondragon/equipledger-backend/internal/equipment"
	"github.com/angelmondragon/equipledger-backend/internal/movements"
	"github.com/angelmondragon/equipledger-backend/internal/notifications"
	"github.com/angelmondragon/equipledger-backend/internal/rentals"
	"github.com/angelmondragon/equipledger-backend/internal/signatures"
	"github.com/angelmondragon/equipledger-backend/pkg/config"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
	"github.com/angelmondragon/equipledger-backend/pkg/redis"
)

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Equipment     equipment.Service
	Movements     movements.Service
	Assignments   assignments.Service
	Custody       custody.Service
	Rentals       rentals.Service
	Signatures    signatures.Service
	Notifications notifications.Service
}

// Dependencies carries the infrastructure the router needs besides services.
type Dependencies struct {
	Idempotency redis.IdempotencyStore
	Pingers     map[string]controllers.Pinger
	Gatherer    prometheus.Gatherer
	Now         func() time.Time
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies, svcs Services) http.Handler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	idempotency := middleware.Idempotency(deps.Idempotency, cfg.Idempotency.TTL, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/custody", func(r chi.Router) {
			r.Get("/assignments", controllers.CurrentAssignments(svcs.Assignments, logg))
			r.Get("/reconciliation", controllers.Reconciliation(svcs.Assignments, logg))
			r.Group(func(r chi.Router) {
				r.Use(idempotency)
				r.Post("/deliveries", controllers.RecordDelivery(svcs.Custody, logg))
				r.Post("/returns", controllers.RecordReturn(svcs.Custody, logg))
			})
		})

		r.Route("/equipment", func(r chi.Router) {
			r.Get("/", controllers.ListEquipment(svcs.Equipment, logg))
			r.Get("/{equipmentId}", controllers.GetEquipment(svcs.Equipment, logg))
			r.Get("/{equipmentId}/movements", controllers.EquipmentMovements(svcs.Movements, logg))
			r.Get("/{equipmentId}/rentals", controllers.EquipmentRentals(svcs.Rentals, logg))
		})

		r.Route("/rentals", func(r chi.Router) {
			r.Get("/occupied", controllers.OccupiedEquipment(svcs.Rentals, logg, now))
			r.Get("/available", controllers.AvailableEquipment(svcs.Rentals, logg, now))
			r.Get("/{contractId}", controllers.GetRentalContract(svcs.Rentals, logg))
			r.Group(func(r chi.Router) {
				r.Use(idempotency)
				r.Post("/", controllers.CreateRentalContract(svcs.Rentals, logg))
				r.Post("/{contractId}/cancel", controllers.CancelRentalContract(svcs.Rentals, logg))
				r.Post("/{contractId}/reactivate", controllers.ReactivateRentalContract(svcs.Rentals, logg))
			})
		})

		r.Get("/movements/{movementId}", controllers.GetMovement(svcs.Movements, logg))
		r.Route("/movements/{movementId}/signature", func(r chi.Router) {
			r.Get("/", controllers.SignatureState(svcs.Signatures, logg))
			r.Group(func(r chi.Router) {
				r.Use(idempotency)
				r.Post("/", controllers.AttachSignature(svcs.Signatures, logg))
				r.Post("/invalidate", controllers.InvalidateSignature(svcs.Signatures, logg))
				r.Post("/confirm", controllers.ConfirmSignature(svcs.Signatures, logg))
			})
		})

		r.Get("/notifications/deliveries", controllers.ListNotificationDeliveries(svcs.Notifications, logg))
	})

	return r
}
