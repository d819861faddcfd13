package handler

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noticedesk/notice-intake-api/internal/dto"
	"github.com/noticedesk/notice-intake-api/internal/models"
	"github.com/noticedesk/notice-intake-api/internal/service"
	appErrors "github.com/noticedesk/notice-intake-api/pkg/errors"
	"github.com/noticedesk/notice-intake-api/pkg/response"
)

type noticeService interface {
	Submit(ctx context.Context, token string, req dto.NoticeSubmission) (*models.Notice, error)
	Get(ctx context.Context, id string) (*models.Notice, error)
}

// NoticeHandler wires the intake pipeline to HTTP.
type NoticeHandler struct {
	service noticeService
	exports *service.ExportService
}

// NewNoticeHandler creates a new handler.
func NewNoticeHandler(svc noticeService, exports *service.ExportService) *NoticeHandler {
	return &NoticeHandler{service: svc, exports: exports}
}

// Create godoc
// @Summary Submit a takedown notice
// @Description Run a notice submission through the intake pipeline. The token may be supplied as a Bearer header or in the authentication_token body field.
// @Tags Notices
// @Accept json
// @Produce json
// @Param payload body dto.CreateNoticeRequest true "Notice payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /notices [post]
func (h *NoticeHandler) Create(c *gin.Context) {
	var req dto.CreateNoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid notice payload"))
		return
	}

	token := bearerToken(c)
	if token == "" {
		token = req.AuthenticationToken
	}

	notice, err := h.service.Submit(c.Request.Context(), token, req.Notice)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Location", fmt.Sprintf("/api/v1/notices/%s", notice.ID))
	response.Created(c, dto.CreateNoticeResponse{ID: notice.ID})
}

// Get godoc
// @Summary Fetch a notice with its full graph
// @Tags Notices
// @Produce json
// @Param id path string true "Notice ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notices/{id} [get]
func (h *NoticeHandler) Get(c *gin.Context) {
	notice, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notice, nil)
}

// Export godoc
// @Summary Render a notice export and return a signed download URL
// @Tags Notices
// @Produce json
// @Param id path string true "Notice ID"
// @Param format query string false "pdf or csv" default(pdf)
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notices/{id}/export [get]
func (h *NoticeHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}

	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(service.ExportFormatPDF))))
	if format != service.ExportFormatPDF && format != service.ExportFormatCSV {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be pdf or csv"))
		return
	}

	id := c.Param("id")
	if _, err := h.service.Get(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.exports.Generate(c.Request.Context(), id, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.ExportResponse{
		NoticeID:  id,
		Format:    string(result.Format),
		URL:       result.URL,
		ExpiresAt: result.ExpiresAt,
	}, nil)
}

// Download godoc
// @Summary Download a rendered export via signed token
// @Tags Notices
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /exports/download [get]
func (h *NoticeHandler) Download(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	_, relPath, _, err := h.exports.ParseToken(token, false)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired token"))
		return
	}

	file, err := h.exports.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export file not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(relPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(relPath)))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
