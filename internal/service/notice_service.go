package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noticedesk/notice-intake-api/internal/dto"
	"github.com/noticedesk/notice-intake-api/internal/models"
	"github.com/noticedesk/notice-intake-api/pkg/config"
	"github.com/noticedesk/notice-intake-api/pkg/datauri"
	appErrors "github.com/noticedesk/notice-intake-api/pkg/errors"
	"github.com/noticedesk/notice-intake-api/pkg/jobs"
	"github.com/noticedesk/notice-intake-api/pkg/urlsplit"
)

type noticeRepository interface {
	Save(ctx context.Context, notice *models.Notice) (string, error)
	GetByID(ctx context.Context, id string) (*models.Notice, error)
}

type noticeCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type noticeBlobStore interface {
	Save(filename string, data []byte) (string, error)
	Delete(filename string) error
}

type noticeGate interface {
	Authorize(ctx context.Context, token, noticeType string) (*models.JWTClaims, error)
}

type noticeRoleResolver interface {
	ResolveRoles(ctx context.Context, submissions []dto.EntityRoleSubmission, claims *models.JWTClaims, verrs *ValidationErrors) ([]models.EntityNoticeRole, error)
}

type noticeAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type noticeExportQueue interface {
	Enqueue(job jobs.Job) error
}

type noticeQueryMetrics interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// NoticeService runs a submission through the intake pipeline: gate,
// type shaping, URL/entity/file resolution, validation, atomic write.
// Problems past the gate accumulate so the caller sees them all at
// once; nothing is persisted unless the whole graph is valid.
type NoticeService struct {
	repo        noticeRepository
	cache       noticeCache
	blobs       noticeBlobStore
	gate        noticeGate
	resolver    noticeRoleResolver
	audit       noticeAuditRepository
	exportQueue noticeExportQueue
	metrics     noticeQueryMetrics
	validator   *validator.Validate
	intakeCfg   config.IntakeConfig
	maxFileSize int64
	logger      *zap.Logger
}

// NoticeServiceParams collects the collaborators for NewNoticeService.
type NoticeServiceParams struct {
	Repo        noticeRepository
	Cache       noticeCache
	Blobs       noticeBlobStore
	Gate        noticeGate
	Resolver    noticeRoleResolver
	Audit       noticeAuditRepository
	ExportQueue noticeExportQueue
	Metrics     noticeQueryMetrics
	Validator   *validator.Validate
	IntakeCfg   config.IntakeConfig
	MaxFileSize int64
	Logger      *zap.Logger
}

// NewNoticeService constructs a NoticeService instance.
func NewNoticeService(p NoticeServiceParams) *NoticeService {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Validator == nil {
		p.Validator = validator.New()
	}
	return &NoticeService{
		repo:        p.Repo,
		cache:       p.Cache,
		blobs:       p.Blobs,
		gate:        p.Gate,
		resolver:    p.Resolver,
		audit:       p.Audit,
		exportQueue: p.ExportQueue,
		metrics:     p.Metrics,
		validator:   p.Validator,
		intakeCfg:   p.IntakeCfg,
		maxFileSize: p.MaxFileSize,
		logger:      p.Logger,
	}
}

// Submit runs the full pipeline for one submission and returns the
// persisted notice. Gate failures abort immediately; every later
// problem is collected into a single unprocessable response.
func (s *NoticeService) Submit(ctx context.Context, token string, req dto.NoticeSubmission) (*models.Notice, error) {
	claims, err := s.gate.Authorize(ctx, token, req.Type)
	if err != nil {
		return nil, err
	}

	notice := &models.Notice{
		Title:       req.Title,
		Type:        models.NoticeType(NormalizeNoticeType(s.intakeCfg, req.Type)),
		SubmittedBy: claims.UserID,
	}

	verrs := NewValidationErrors()

	notice.Works = shapeWorks(req.Works)

	roles, err := s.resolver.ResolveRoles(ctx, req.Roles, claims, verrs)
	if err != nil {
		return nil, err
	}
	notice.Roles = roles

	uploads, savedBlobs := s.decodeFileUploads(req.FileUploads, verrs)
	notice.FileUploads = uploads

	s.validate(notice, verrs)

	if !verrs.Empty() {
		s.discardBlobs(savedBlobs)
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrUnprocessable, "notice failed validation"),
			verrs.Details())
	}

	start := time.Now()
	id, err := s.repo.Save(ctx, notice)
	if err != nil {
		s.discardBlobs(savedBlobs)
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to persist notice")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("notice_save", time.Since(start))
	}

	s.recordAudit(ctx, claims.UserID, id)
	s.enqueueExportWarmup(id)

	s.logger.Info("notice persisted",
		zap.String("notice_id", id),
		zap.String("type", string(notice.Type)),
		zap.String("submitted_by", claims.UserID))

	return notice, nil
}

// Get returns a notice with its full graph, serving from cache when
// possible.
func (s *NoticeService) Get(ctx context.Context, id string) (*models.Notice, error) {
	cacheKey := "notice:" + id

	var cached models.Notice
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	start := time.Now()
	notice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch notice")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("notice_get", time.Since(start))
	}

	if err := s.cache.Set(ctx, cacheKey, notice, s.intakeCfg.NoticeCacheTTL); err != nil {
		s.logger.Warn("failed to cache notice", zap.String("notice_id", id), zap.Error(err))
	}

	return notice, nil
}

// shapeWorks expands every submitted URL through the deconcatenator and
// assigns stable positions. Infringing URLs precede copyrighted ones
// within a work, each group keeping submission order.
func shapeWorks(submissions []dto.WorkSubmission) []models.Work {
	works := make([]models.Work, 0, len(submissions))
	for i, sub := range submissions {
		work := models.Work{Description: sub.Description, Position: i}
		pos := 0
		for _, u := range sub.InfringingURLs {
			for _, chunk := range urlsplit.Split(u.URL) {
				work.URLs = append(work.URLs, models.WorkURL{Kind: models.URLKindInfringing, URL: chunk, Position: pos})
				pos++
			}
		}
		for _, u := range sub.CopyrightedURLs {
			for _, chunk := range urlsplit.Split(u.URL) {
				work.URLs = append(work.URLs, models.WorkURL{Kind: models.URLKindCopyrighted, URL: chunk, Position: pos})
				pos++
			}
		}
		works = append(works, work)
	}
	return works
}

// decodeFileUploads decodes each attachment and writes its bytes to
// blob storage. Blobs written here are discarded again if the notice
// is later rejected, keeping storage consistent with the database.
func (s *NoticeService) decodeFileUploads(submissions []dto.FileUploadSubmission, verrs *ValidationErrors) ([]models.FileUpload, []string) {
	uploads := make([]models.FileUpload, 0, len(submissions))
	var saved []string

	for i, sub := range submissions {
		field := fmt.Sprintf("file_uploads[%d]", i)

		file, err := datauri.Parse(sub.File)
		if err != nil {
			verrs.Add(field, "malformed file payload")
			continue
		}
		if s.maxFileSize > 0 && int64(len(file.Data)) > s.maxFileSize {
			verrs.Add(field, fmt.Sprintf("file exceeds maximum size of %d bytes", s.maxFileSize))
			continue
		}

		kind := models.FileUploadKind(sub.Kind)
		if kind != models.FileUploadKindOriginal && kind != models.FileUploadKindSupporting {
			kind = models.FileUploadKindSupporting
		}

		blobName := uuid.New().String() + filepath.Ext(sub.FileName)
		path, err := s.blobs.Save(blobName, file.Data)
		if err != nil {
			verrs.Add(field, "failed to store file")
			s.logger.Error("blob write failed", zap.String("file_name", sub.FileName), zap.Error(err))
			continue
		}
		saved = append(saved, blobName)

		uploads = append(uploads, models.FileUpload{
			Kind:        kind,
			FileName:    sub.FileName,
			MediaType:   file.MediaType,
			SizeBytes:   int64(len(file.Data)),
			StoragePath: path,
		})
	}

	return uploads, saved
}

// validate applies the structural rules: non-empty title, required
// roles present, every persisted URL row well formed.
func (s *NoticeService) validate(notice *models.Notice, verrs *ValidationErrors) {
	if notice.Title == "" {
		verrs.Add("title", "title is required")
	}

	present := make(map[models.EntityRole]bool, len(notice.Roles))
	for _, role := range notice.Roles {
		present[role.Role] = true
	}
	for _, required := range []models.EntityRole{models.EntityRoleSubmitter, models.EntityRoleRecipient} {
		if !present[required] {
			verrs.Add("entity_notice_roles", fmt.Sprintf("%s role is required", required))
		}
	}

	for wi, work := range notice.Works {
		for ui, u := range work.URLs {
			if err := s.validator.Var(u.URL, "url"); err != nil {
				verrs.Add(fmt.Sprintf("works[%d].urls[%d]", wi, ui), fmt.Sprintf("malformed URL %q", u.URL))
			}
		}
	}
}

func (s *NoticeService) discardBlobs(names []string) {
	for _, name := range names {
		if err := s.blobs.Delete(name); err != nil {
			s.logger.Warn("failed to remove rejected blob", zap.String("blob", name), zap.Error(err))
		}
	}
}

func (s *NoticeService) recordAudit(ctx context.Context, userID, noticeID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionNoticeSubmit,
		Resource:   "notices",
		ResourceID: &noticeID,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("notice_id", noticeID), zap.Error(err))
	}
}

func (s *NoticeService) enqueueExportWarmup(noticeID string) {
	if s.exportQueue == nil {
		return
	}
	job := jobs.Job{
		ID:      uuid.New().String(),
		Type:    "export_warmup",
		Payload: noticeID,
	}
	if err := s.exportQueue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue export warmup", zap.String("notice_id", noticeID), zap.Error(err))
	}
}
