package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reputation-engine/internal/types"
)

func TestCategorize_ServiceErrorCodes(t *testing.T) {
	tests := []struct {
		code     string
		category ErrorCategory
		status   int
	}{
		{types.CodeInvalidInput, CategoryValidation, http.StatusBadRequest},
		{types.CodeInvalidTier, CategoryValidation, http.StatusBadRequest},
		{types.CodeUnknownTask, CategoryValidation, http.StatusBadRequest},
		{types.CodeProfileNotFound, CategoryNotFound, http.StatusNotFound},
		{types.CodeDuplicateCheckIn, CategoryConflict, http.StatusConflict},
		{types.CodeBoxAlreadyClaimed, CategoryConflict, http.StatusConflict},
		{types.CodeTaskAlreadyClaimed, CategoryConflict, http.StatusConflict},
		{types.CodeInsufficientStreak, CategoryConflict, http.StatusForbidden},
		{types.CodeCastNotFound, CategoryNotFound, http.StatusNotFound},
		{types.CodeCastNotOwned, CategoryConflict, http.StatusForbidden},
		{types.CodeDailyCastAlreadyRewarded, CategoryConflict, http.StatusConflict},
		{types.CodeProviderNotConfigured, CategoryConfiguration, http.StatusInternalServerError},
		{"SOMETHING_ELSE", CategorySystem, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			catErr := Categorize(types.NewServiceError(tt.code, "msg", nil))
			assert.Equal(t, tt.category, catErr.Category)
			assert.Equal(t, tt.status, catErr.StatusCode)
			assert.Equal(t, tt.code, catErr.Code)
		})
	}
}

func TestCategorize_Wrapped(t *testing.T) {
	inner := types.NewServiceError(types.CodeDuplicateCheckIn, "already checked in today", nil)
	wrapped := fmt.Errorf("check-in: %w", inner)

	assert.True(t, IsRejection(wrapped))
	assert.Equal(t, http.StatusConflict, GetHTTPStatusCode(wrapped))
}

func TestCategorize_PlainErrorIsInternal(t *testing.T) {
	catErr := Categorize(fmt.Errorf("boom"))
	assert.Equal(t, CategorySystem, catErr.Category)
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatusCode(catErr))
	assert.False(t, IsRejection(catErr))
	assert.Nil(t, Categorize(nil))
}

func TestProviderNotConfigured(t *testing.T) {
	err := NewProviderNotConfiguredError("covalent")
	assert.True(t, IsConfigurationError(err))
	assert.True(t, IsConfigurationError(fmt.Errorf("fetch: %w", err)))
	assert.False(t, IsUserError(err))
	assert.Equal(t, types.CodeProviderNotConfigured, err.ToServiceError().Code)
}

func TestNewInvalidInputError(t *testing.T) {
	err := NewInvalidInputError("address", "required")
	assert.True(t, IsUserError(err))
	assert.Equal(t, "address", err.Details["field"])
	assert.Equal(t, "INVALID_INPUT: invalid address: required", err.Error())
}

func TestConstructorsCarryStatusAndDetails(t *testing.T) {
	notFound := NewNotFoundError("endpoint", "/api/admin/referral-sweep")
	assert.Equal(t, http.StatusNotFound, GetHTTPStatusCode(notFound))
	assert.True(t, IsRejection(notFound))

	limited := NewRateLimitError(3)
	assert.True(t, IsUserError(limited))
	assert.False(t, IsRejection(limited))
	assert.Equal(t, 3, limited.Details["retryAfter"])

	dbErr := NewDatabaseError("create profile", fmt.Errorf("conn reset"))
	assert.Equal(t, "DATABASE_ERROR", dbErr.ToServiceError().Code)
	assert.ErrorContains(t, dbErr, "conn reset")
	assert.False(t, IsUserError(dbErr))
}
