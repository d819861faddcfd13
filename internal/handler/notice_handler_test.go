package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noticedesk/notice-intake-api/internal/dto"
	"github.com/noticedesk/notice-intake-api/internal/models"
	"github.com/noticedesk/notice-intake-api/internal/service"
	appErrors "github.com/noticedesk/notice-intake-api/pkg/errors"
	"github.com/noticedesk/notice-intake-api/pkg/storage"
)

type noticeServiceMock struct {
	submitted   *dto.NoticeSubmission
	submitToken string
	submitErr   error
	notice      *models.Notice
	getErr      error
}

func (m *noticeServiceMock) Submit(ctx context.Context, token string, req dto.NoticeSubmission) (*models.Notice, error) {
	m.submitToken = token
	m.submitted = &req
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return m.notice, nil
}

func (m *noticeServiceMock) Get(ctx context.Context, id string) (*models.Notice, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.notice, nil
}

func noticeTestContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestNoticeHandlerCreateTokenFromBody(t *testing.T) {
	mock := &noticeServiceMock{notice: &models.Notice{ID: "n1"}}
	handler := NewNoticeHandler(mock, nil)

	payload := dto.CreateNoticeRequest{
		AuthenticationToken: "body-token",
		Notice:              dto.NoticeSubmission{Title: "Takedown"},
	}
	body, _ := json.Marshal(payload)
	c, w := noticeTestContext(t, http.MethodPost, "/notices", body)

	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "body-token", mock.submitToken)
	assert.Equal(t, "/api/v1/notices/n1", w.Header().Get("Location"))

	var envelope struct {
		Data dto.CreateNoticeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "n1", envelope.Data.ID)
}

func TestNoticeHandlerCreateHeaderTokenWins(t *testing.T) {
	mock := &noticeServiceMock{notice: &models.Notice{ID: "n1"}}
	handler := NewNoticeHandler(mock, nil)

	body, _ := json.Marshal(dto.CreateNoticeRequest{
		AuthenticationToken: "body-token",
		Notice:              dto.NoticeSubmission{Title: "Takedown"},
	})
	c, w := noticeTestContext(t, http.MethodPost, "/notices", body)
	c.Request.Header.Set("Authorization", "Bearer header-token")

	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "header-token", mock.submitToken)
}

func TestNoticeHandlerCreateInvalidBody(t *testing.T) {
	mock := &noticeServiceMock{}
	handler := NewNoticeHandler(mock, nil)

	c, w := noticeTestContext(t, http.MethodPost, "/notices", []byte(`{invalid`))

	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, mock.submitted)
}

func TestNoticeHandlerCreateUnauthorized(t *testing.T) {
	mock := &noticeServiceMock{submitErr: appErrors.Clone(appErrors.ErrUnauthorized, "authentication token required")}
	handler := NewNoticeHandler(mock, nil)

	body, _ := json.Marshal(dto.CreateNoticeRequest{Notice: dto.NoticeSubmission{Title: "Takedown"}})
	c, w := noticeTestContext(t, http.MethodPost, "/notices", body)

	handler.Create(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNoticeHandlerCreateValidationDetails(t *testing.T) {
	details := map[string][]string{"title": {"title is required"}}
	mock := &noticeServiceMock{submitErr: appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrUnprocessable, "notice failed validation"), details)}
	handler := NewNoticeHandler(mock, nil)

	body, _ := json.Marshal(dto.CreateNoticeRequest{Notice: dto.NoticeSubmission{}})
	c, w := noticeTestContext(t, http.MethodPost, "/notices", body)

	handler.Create(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, details, envelope.Error.Details)
}

func TestNoticeHandlerGet(t *testing.T) {
	mock := &noticeServiceMock{notice: &models.Notice{ID: "n1", Title: "Takedown"}}
	handler := NewNoticeHandler(mock, nil)

	c, w := noticeTestContext(t, http.MethodGet, "/notices/n1", nil)
	c.Params = gin.Params{{Key: "id", Value: "n1"}}

	handler.Get(c)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.Notice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "Takedown", envelope.Data.Title)
}

func TestNoticeHandlerGetNotFound(t *testing.T) {
	mock := &noticeServiceMock{getErr: appErrors.Clone(appErrors.ErrNotFound, "notice not found")}
	handler := NewNoticeHandler(mock, nil)

	c, w := noticeTestContext(t, http.MethodGet, "/notices/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

type exportNoticeStub struct {
	notice *models.Notice
}

func (s *exportNoticeStub) GetByID(ctx context.Context, id string) (*models.Notice, error) {
	return s.notice, nil
}

func newTestExportService(t *testing.T, notice *models.Notice) *service.ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	return service.NewExportService(&exportNoticeStub{notice: notice}, store, signer,
		service.ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, nil, nil, nil)
}

func TestNoticeHandlerExportBadFormat(t *testing.T) {
	notice := &models.Notice{ID: "n1", Title: "Takedown"}
	mock := &noticeServiceMock{notice: notice}
	handler := NewNoticeHandler(mock, newTestExportService(t, notice))

	c, w := noticeTestContext(t, http.MethodGet, "/notices/n1/export?format=xlsx", nil)
	c.Params = gin.Params{{Key: "id", Value: "n1"}}

	handler.Export(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNoticeHandlerExportThenDownload(t *testing.T) {
	notice := &models.Notice{ID: "n1", Title: "Takedown", Works: []models.Work{{
		Description: "Song",
		URLs:        []models.WorkURL{{Kind: models.URLKindInfringing, URL: "http://pirate.example/a"}},
	}}}
	mock := &noticeServiceMock{notice: notice}
	handler := NewNoticeHandler(mock, newTestExportService(t, notice))

	c, w := noticeTestContext(t, http.MethodGet, "/notices/n1/export?format=csv", nil)
	c.Params = gin.Params{{Key: "id", Value: "n1"}}
	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.ExportResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Contains(t, envelope.Data.URL, "token=")

	token := envelope.Data.URL[strings.Index(envelope.Data.URL, "token=")+len("token="):]
	c2, w2 := noticeTestContext(t, http.MethodGet, "/exports/download?token="+token, nil)
	handler.Download(c2)

	require.Equal(t, http.StatusOK, w2.Code)
	assert.Contains(t, w2.Body.String(), "http://pirate.example/a")
	assert.Contains(t, w2.Header().Get("Content-Disposition"), "attachment")
}

func TestNoticeHandlerDownloadMissingToken(t *testing.T) {
	mock := &noticeServiceMock{}
	handler := NewNoticeHandler(mock, newTestExportService(t, &models.Notice{ID: "n1"}))

	c, w := noticeTestContext(t, http.MethodGet, "/exports/download", nil)

	handler.Download(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNoticeHandlerDownloadBadToken(t *testing.T) {
	mock := &noticeServiceMock{}
	handler := NewNoticeHandler(mock, newTestExportService(t, &models.Notice{ID: "n1"}))

	c, w := noticeTestContext(t, http.MethodGet, "/exports/download?token=tampered", nil)

	handler.Download(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
