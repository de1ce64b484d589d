package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"voucher-service/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHandleServiceErrorStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing fields", fmt.Errorf("resolve columns: %w", &domain.MissingFieldsError{Fields: []domain.CanonicalField{domain.FieldDate}}), http.StatusUnprocessableEntity},
		{"strict date", fmt.Errorf("extract records: %w", &domain.InvalidDateError{Value: "x", Reason: "no pattern"}), http.StatusUnprocessableEntity},
		{"input", &domain.InputError{Source: "template", Err: errors.New("docx_open")}, http.StatusBadRequest},
		{"cancelled", context.Canceled, http.StatusRequestTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
			handleServiceError(c, tc.err)
			if rec.Code != tc.want {
				t.Fatalf("status=%d, want %d", rec.Code, tc.want)
			}
		})
	}
}
