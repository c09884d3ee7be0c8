package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianfin/ledgermirror/api/responses"
	"github.com/meridianfin/ledgermirror/api/validators"
	"github.com/meridianfin/ledgermirror/internal/journal"
	"github.com/meridianfin/ledgermirror/pkg/enums"
	pkgerrors "github.com/meridianfin/ledgermirror/pkg/errors"
	"github.com/meridianfin/ledgermirror/pkg/logger"
)

type postLineRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid"`
	Type      string `json:"type" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
}

type postEntryRequest struct {
	EntryDate         time.Time         `json:"entry_date" validate:"required"`
	Description       string            `json:"description" validate:"max=500"`
	Source            string            `json:"source" validate:"required"`
	Lines             []postLineRequest `json:"lines" validate:"required,min=2,dive"`
	ExternalReference *string           `json:"external_reference,omitempty" validate:"omitempty,min=1,max=255"`
}

type reverseEntryRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// JournalPost appends a manual journal entry. Transfer-sync and reversal
// sources are system-owned and rejected here.
func JournalPost(svc journal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req postEntryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		source, err := enums.ParseEntrySource(req.Source)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entry source"))
			return
		}
		if source == enums.EntrySourceTransferSync || source == enums.EntrySourceReversal {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "source is reserved for system postings"))
			return
		}

		input := journal.PostEntryInput{
			EntryDate:         req.EntryDate,
			Description:       req.Description,
			Source:            source,
			ExternalReference: req.ExternalReference,
		}
		for _, line := range req.Lines {
			accountID, err := uuid.Parse(line.AccountID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid line account id"))
				return
			}
			lineType, err := enums.ParseLineType(line.Type)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid line type"))
				return
			}
			amount, err := decimal.NewFromString(line.Amount)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid line amount"))
				return
			}
			input.Lines = append(input.Lines, journal.LineInput{
				AccountID: accountID,
				Type:      lineType,
				Amount:    amount,
			})
		}

		entry, err := svc.Post(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

// JournalReverse appends a reversing entry for a posted one.
func JournalReverse(svc journal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req reverseEntryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reversal, err := svc.Reverse(r.Context(), id, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, reversal)
	}
}

// JournalGet returns one entry with its lines.
func JournalGet(svc journal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.GetEntry(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

// JournalGetByTransfer resolves the entry materialized for a transfer id.
func JournalGetByTransfer(svc journal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transferID := strings.TrimSpace(chi.URLParam(r, "transferId"))
		if transferID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "transfer id is required"))
			return
		}
		entry, err := svc.GetByTransferID(r.Context(), transferID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

// JournalList returns entries in posting order, oldest first.
func JournalList(svc journal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := journal.ListFilter{}

		query := r.URL.Query()
		if raw := strings.TrimSpace(query.Get("from")); raw != "" {
			value, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid from timestamp"))
				return
			}
			filter.From = &value
		}
		if raw := strings.TrimSpace(query.Get("to")); raw != "" {
			value, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid to timestamp"))
				return
			}
			filter.To = &value
		}
		if raw := strings.TrimSpace(query.Get("source")); raw != "" {
			value, err := enums.ParseEntrySource(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid source filter"))
				return
			}
			filter.Source = &value
		}
		if raw := strings.TrimSpace(query.Get("status")); raw != "" {
			value, err := enums.ParseEntryStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filter.Status = &value
		}
		if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
			value, err := strconv.Atoi(raw)
			if err != nil || value <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			filter.Limit = value
		}
		if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
			value, err := strconv.Atoi(raw)
			if err != nil || value < 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "offset must be a non-negative integer"))
				return
			}
			filter.Offset = value
		}

		entries, err := svc.ListEntries(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}
