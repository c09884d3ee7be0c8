package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesChainAndCode(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeDependency, cause, "apply balance delta")

	require.NotNil(t, As(err))
	assert.Equal(t, CodeDependency, As(err).Code())
	assert.True(t, stdErrors.Is(err, cause))
	assert.True(t, Retryable(err))
}

func TestHasCodeThroughWrapping(t *testing.T) {
	inner := New(CodeIdempotency, "transfer already materialized")
	outer := fmt.Errorf("partition 2: %w", inner)

	assert.True(t, HasCode(outer, CodeIdempotency))
	assert.False(t, HasCode(outer, CodeValidation))
}

func TestWithDetailsClones(t *testing.T) {
	sentinel := New(CodeValidation, "debit and credit totals must balance")
	detailed := sentinel.WithDetails(map[string]any{"debit_total": "100"})

	require.NotSame(t, sentinel, detailed)
	assert.Nil(t, sentinel.Details())
	assert.NotNil(t, detailed.Details())
	assert.Equal(t, sentinel.Message(), detailed.Message())
}

func TestMetadataStatuses(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, MetadataFor(CodeValidation).HTTPStatus)
	assert.Equal(t, http.StatusUnprocessableEntity, MetadataFor(CodeStateConflict).HTTPStatus)
	assert.Equal(t, http.StatusServiceUnavailable, MetadataFor(CodeDependency).HTTPStatus)
	assert.False(t, MetadataFor(CodeConsistency).Retryable)
	assert.True(t, MetadataFor(CodeInternal).Retryable)
	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor(Code("UNKNOWN")))
}

func TestUntypedErrorsAreNotRetryable(t *testing.T) {
	assert.False(t, Retryable(stdErrors.New("boom")))
	assert.Nil(t, As(stdErrors.New("boom")))
}
