package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noticedesk/notice-intake-api/internal/models"
	"github.com/noticedesk/notice-intake-api/pkg/export"
	"github.com/noticedesk/notice-intake-api/pkg/storage"
)

// ExportFormat is a supported export rendering.
type ExportFormat string

const (
	ExportFormatPDF ExportFormat = "pdf"
	ExportFormatCSV ExportFormat = "csv"
)

type exportNoticeSource interface {
	GetByID(ctx context.Context, id string) (*models.Notice, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders a notice's graph to a downloadable file and
// hands back a signed, expiring URL.
type ExportService struct {
	notices exportNoticeSource
	storage exportFileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(notices exportNoticeSource, store exportFileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		notices: notices,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate renders the notice in the requested format and stores the
// result, returning a signed download URL.
func (s *ExportService) Generate(ctx context.Context, noticeID string, format ExportFormat) (*ExportResult, error) {
	notice, err := s.notices.GetByID(ctx, noticeID)
	if err != nil {
		return nil, err
	}

	dataset := buildNoticeDataset(notice)

	var payload []byte
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("Notice %s - %s", notice.ID, notice.Title))
	default:
		err = fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(notice, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(notice.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download?token=%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// Warmup pre-renders the PDF export right after a notice is persisted
// so the first interactive download hits a warm file.
func (s *ExportService) Warmup(ctx context.Context, noticeID string) error {
	_, err := s.Generate(ctx, noticeID, ExportFormatPDF)
	return err
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (noticeID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(notice *models.Notice, format ExportFormat) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("notice_%s_%s.%s", sanitizeFilename(notice.ID), timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// buildNoticeDataset flattens the notice graph to one row per URL, with
// role and upload summaries folded into trailing rows. A notice with no
// URLs still yields a dataset with its parties.
func buildNoticeDataset(notice *models.Notice) export.Dataset {
	headers := []string{"Section", "Detail", "Kind", "Value"}
	rows := make([]map[string]string, 0, 8)

	rows = append(rows, map[string]string{
		"Section": "notice",
		"Detail":  notice.Title,
		"Kind":    string(notice.Type),
		"Value":   notice.CreatedAt.UTC().Format(time.RFC3339),
	})

	for _, role := range notice.Roles {
		name := ""
		if role.Entity != nil {
			name = role.Entity.Name
		}
		rows = append(rows, map[string]string{
			"Section": "party",
			"Detail":  name,
			"Kind":    string(role.Role),
			"Value":   role.EntityID,
		})
	}

	for _, work := range notice.Works {
		for _, u := range work.URLs {
			rows = append(rows, map[string]string{
				"Section": "work",
				"Detail":  work.Description,
				"Kind":    string(u.Kind),
				"Value":   u.URL,
			})
		}
	}

	for _, upload := range notice.FileUploads {
		rows = append(rows, map[string]string{
			"Section": "file",
			"Detail":  upload.FileName,
			"Kind":    string(upload.Kind),
			"Value":   fmt.Sprintf("%s (%d bytes)", upload.MediaType, upload.SizeBytes),
		})
	}

	return export.Dataset{Headers: headers, Rows: rows}
}
