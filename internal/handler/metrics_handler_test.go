package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noticedesk/notice-intake-api/internal/models"
	"github.com/noticedesk/notice-intake-api/internal/service"
)

func TestMetricsHandlerSystemSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.ObserveDBQuery("notice_save", 5*time.Millisecond)
	metrics.ObserveHTTPRequest(http.MethodGet, "/notices/:id", http.StatusOK, 2*time.Millisecond)
	handler := NewMetricsHandler(metrics)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/system/metrics", nil)

	handler.System(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data models.SystemMetrics `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, uint64(1), envelope.Data.DBQueryCount)
	assert.Equal(t, uint64(1), envelope.Data.RequestsTotal)
	assert.False(t, envelope.Data.GeneratedAt.IsZero())
}

func TestMetricsHandlerSystemUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/system/metrics", nil)

	handler.System(c)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}
