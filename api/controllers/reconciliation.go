package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meridianfin/ledgermirror/api/responses"
	"github.com/meridianfin/ledgermirror/api/validators"
	"github.com/meridianfin/ledgermirror/internal/reconciliation"
	pkgerrors "github.com/meridianfin/ledgermirror/pkg/errors"
	"github.com/meridianfin/ledgermirror/pkg/logger"
)

type externalEventRequest struct {
	ExternalReference string          `json:"external_reference" validate:"required,min=1,max=255"`
	Amount            string          `json:"amount" validate:"required"`
	RawPayload        json.RawMessage `json:"raw_payload,omitempty"`
}

// ReconciliationIngest records a payment-rail settlement event and attempts a
// match. Safe to call repeatedly for the same reference.
func ReconciliationIngest(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req externalEventRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		entry, err := svc.IngestExternalEvent(r.Context(), reconciliation.ExternalEventInput{
			ExternalReference: req.ExternalReference,
			Amount:            amount,
			RawPayload:        req.RawPayload,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

// ReconciliationStatus returns the reconciliation state for a reference.
func ReconciliationStatus(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reference := strings.TrimSpace(chi.URLParam(r, "reference"))
		entry, err := svc.GetStatus(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

// ReconciliationConfirm moves a matched entry to reconciled.
func ReconciliationConfirm(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reference := strings.TrimSpace(chi.URLParam(r, "reference"))
		entry, err := svc.MarkReconciled(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}
