package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func record(fn func(c *gin.Context)) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)
	return w
}

func TestSendHelpers(t *testing.T) {
	tests := []struct {
		name   string
		send   func(c *gin.Context)
		status int
		code   string
	}{
		{"validation", func(c *gin.Context) { SendValidationError(c, "bad", "budget") }, http.StatusBadRequest, ErrCodeValidation},
		{"infeasible", func(c *gin.Context) { SendInfeasible(c, "nope", "") }, http.StatusUnprocessableEntity, ErrCodeInfeasible},
		{"timeout", func(c *gin.Context) { SendTimeout(c, "slow") }, http.StatusRequestTimeout, ErrCodeTimeout},
		{"not found", func(c *gin.Context) { SendNotFound(c, "gone") }, http.StatusNotFound, ErrCodeNotFound},
		{"rate limited", func(c *gin.Context) { SendRateLimited(c, "slow down") }, http.StatusTooManyRequests, ErrCodeRateLimited},
		{"unavailable", func(c *gin.Context) { SendUnavailable(c, "off") }, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{"internal", func(c *gin.Context) { SendInternalError(c, "boom") }, http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := record(tt.send)
			assert.Equal(t, tt.status, w.Code)

			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestSendSuccessWithMeta(t *testing.T) {
	w := record(func(c *gin.Context) {
		SendSuccessWithMeta(c, []int{1, 2}, &Meta{Limit: 2, Total: 5})
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.Equal(t, 2, resp.Meta.Limit)
	assert.Equal(t, int64(5), resp.Meta.Total)
}

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: gone", NewAppError(ErrCodeNotFound, "gone").Error())
	assert.Equal(t, "VALIDATION_ERROR: bad - budget", NewAppError(ErrCodeValidation, "bad", "budget").Error())
}
