package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/meridianfin/ledgermirror/pkg/errors"
	"github.com/meridianfin/ledgermirror/pkg/types"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorEnvelope {
	t.Helper()
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope
}

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"status": "posted"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var envelope types.SuccessEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data, ok := envelope.Data.(map[string]any)
	if !ok || data["status"] != "posted" {
		t.Fatalf("unexpected payload: %+v", envelope.Data)
	}
}

func TestWriteErrorValidationPassesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "debit and credit totals must balance").
		WithDetails(map[string]any{"debit_total": "100"})
	WriteError(context.Background(), nil, rec, err)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	envelope := decodeError(t, rec)
	if envelope.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
	if envelope.Error.Message != "debit and credit totals must balance" {
		t.Fatalf("validation messages must pass through, got %q", envelope.Error.Message)
	}
	details, ok := envelope.Error.Details.(map[string]any)
	if !ok || details["debit_total"] != "100" {
		t.Fatalf("expected details, got %v", envelope.Error.Details)
	}
}

func TestWriteErrorInternalHidesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("pq: connection refused"), "insert journal entry")
	WriteError(context.Background(), nil, rec, err)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	envelope := decodeError(t, rec)
	if envelope.Error.Message == "insert journal entry" {
		t.Fatal("internal messages must not leak to clients")
	}
	if envelope.Error.Details != nil {
		t.Fatal("internal errors must not expose details")
	}
}

func TestWriteErrorUntypedDefaultsToInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, errors.New("boom"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	envelope := decodeError(t, rec)
	if envelope.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
}

func TestWriteErrorStateConflictStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeStateConflict, "journal entry is already reversed"))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}
