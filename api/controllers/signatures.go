package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/equipledger-backend/api/responses"
	"github.com/angelmondragon/equipledger-backend/api/validators"
	"github.com/angelmondragon/equipledger-backend/internal/signatures"
	pkgerrors "github.com/angelmondragon/equipledger-backend/pkg/errors"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
)

type attachSignatureRequest struct {
	DocumentRef string `json:"document_ref" validate:"required,notblank,max=1024"`
}

// SignatureState reports the proof-of-custody state of a movement.
func SignatureState(svc signatures.Service, logg *logger.Logger) http.HandlerFunc {
	return signatureHandler(svc, logg, func(ctx context.Context, r *http.Request, movementID int64) (*signatures.Status, error) {
		return svc.State(ctx, movementID)
	})
}

// AttachSignature stores the reference of a signed handover document.
func AttachSignature(svc signatures.Service, logg *logger.Logger) http.HandlerFunc {
	return signatureHandler(svc, logg, func(ctx context.Context, r *http.Request, movementID int64) (*signatures.Status, error) {
		var payload attachSignatureRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.AttachSignedDocument(ctx, movementID, strings.TrimSpace(payload.DocumentRef))
	})
}

func InvalidateSignature(svc signatures.Service, logg *logger.Logger) http.HandlerFunc {
	return signatureHandler(svc, logg, func(ctx context.Context, r *http.Request, movementID int64) (*signatures.Status, error) {
		return svc.Invalidate(ctx, movementID)
	})
}

func ConfirmSignature(svc signatures.Service, logg *logger.Logger) http.HandlerFunc {
	return signatureHandler(svc, logg, func(ctx context.Context, r *http.Request, movementID int64) (*signatures.Status, error) {
		return svc.Confirm(ctx, movementID)
	})
}

type signatureAction func(ctx context.Context, r *http.Request, movementID int64) (*signatures.Status, error)

func signatureHandler(svc signatures.Service, logg *logger.Logger, action signatureAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "signatures service unavailable"))
			return
		}

		movementID, err := validators.ParseURLInt64(r, "movementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := action(r.Context(), r, movementID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
