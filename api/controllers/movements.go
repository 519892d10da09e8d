package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/equipledger-backend/api/responses"
	"github.com/angelmondragon/equipledger-backend/api/validators"
	"github.com/angelmondragon/equipledger-backend/internal/movements"
	pkgerrors "github.com/angelmondragon/equipledger-backend/pkg/errors"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
	"github.com/angelmondragon/equipledger-backend/pkg/pagination"
	"github.com/angelmondragon/equipledger-backend/pkg/types"
)

// EquipmentMovements pages through one equipment's custody history in ledger order.
func EquipmentMovements(svc movements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "movements service unavailable"))
			return
		}

		equipmentID, err := validators.ParseURLUUID(r, "equipmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.History(r.Context(), equipmentID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]movementResponse, 0, len(page.Items))
		for _, m := range page.Items {
			items = append(items, movementResponseFromModel(m))
		}
		responses.WriteSuccess(w, types.Page[movementResponse]{Items: items, Cursor: page.Cursor})
	}
}

// GetMovement returns a single ledger fact by sequence number.
func GetMovement(svc movements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "movements service unavailable"))
			return
		}

		movementID, err := validators.ParseURLInt64(r, "movementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		movement, err := svc.Get(r.Context(), movementID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, movementResponseFromModel(*movement))
	}
}
