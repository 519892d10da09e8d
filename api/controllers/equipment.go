package controllers

import (
	"net/http"

	"github.com/angelmondragon/equipledger-backend/api/responses"
	"github.com/angelmondragon/equipledger-backend/api/validators"
	"github.com/angelmondragon/equipledger-backend/internal/equipment"
	pkgerrors "github.com/angelmondragon/equipledger-backend/pkg/errors"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
)

func ListEquipment(svc equipment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "equipment service unavailable"))
			return
		}

		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": equipmentResponses(rows)})
	}
}

func GetEquipment(svc equipment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "equipment service unavailable"))
			return
		}

		id, err := validators.ParseURLUUID(r, "equipmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eq, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, equipmentResponseFromModel(*eq))
	}
}
