package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridianfin/ledgermirror/api/responses"
	"github.com/meridianfin/ledgermirror/api/validators"
	"github.com/meridianfin/ledgermirror/internal/accounts"
	"github.com/meridianfin/ledgermirror/internal/balances"
	"github.com/meridianfin/ledgermirror/pkg/enums"
	pkgerrors "github.com/meridianfin/ledgermirror/pkg/errors"
	"github.com/meridianfin/ledgermirror/pkg/logger"
)

type createAccountRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
	Type string `json:"type" validate:"required"`
	Unit string `json:"unit" validate:"required,len=3"`
}

// AccountCreate registers a new chart-of-accounts entry.
func AccountCreate(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAccountRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accountType, err := enums.ParseAccountType(req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account type"))
			return
		}

		account, err := svc.Create(r.Context(), accounts.CreateAccountInput{
			Name: req.Name,
			Type: accountType,
			Unit: req.Unit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, account)
	}
}

// AccountGet returns one account by id.
func AccountGet(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}

// AccountList returns the chart of accounts. Pass includeInactive=true to see
// deactivated accounts too.
func AccountList(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		includeInactive := false
		if raw := strings.TrimSpace(r.URL.Query().Get("includeInactive")); raw != "" {
			value, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid includeInactive value"))
				return
			}
			includeInactive = value
		}

		rows, err := svc.List(r.Context(), includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// AccountDeactivate retires an account from new postings. History stays.
func AccountDeactivate(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Deactivate(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

// AccountBalance returns the projected balance for one account.
func AccountBalance(svc balances.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.GetBalance(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AccountBalanceRebuild recomputes the projection from journal lines.
func AccountBalanceRebuild(svc balances.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Rebuild(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return id, nil
}
