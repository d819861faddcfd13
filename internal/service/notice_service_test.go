package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noticedesk/notice-intake-api/internal/dto"
	"github.com/noticedesk/notice-intake-api/internal/models"
	appErrors "github.com/noticedesk/notice-intake-api/pkg/errors"
	"github.com/noticedesk/notice-intake-api/pkg/jobs"
)

type stubNoticeRepository struct {
	saved    *models.Notice
	saveErr  error
	notices  map[string]*models.Notice
	saveCall int
}

func (s *stubNoticeRepository) Save(ctx context.Context, notice *models.Notice) (string, error) {
	s.saveCall++
	if s.saveErr != nil {
		return "", s.saveErr
	}
	notice.ID = "n1"
	s.saved = notice
	return notice.ID, nil
}

func (s *stubNoticeRepository) GetByID(ctx context.Context, id string) (*models.Notice, error) {
	if n, ok := s.notices[id]; ok {
		return n, nil
	}
	return nil, sql.ErrNoRows
}

type stubCache struct {
	values map[string]interface{}
	sets   int
}

func (s *stubCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	_, ok := s.values[key]
	return ok, nil
}

func (s *stubCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.values == nil {
		s.values = make(map[string]interface{})
	}
	s.values[key] = value
	s.sets++
	return nil
}

type stubBlobStore struct {
	saved   map[string][]byte
	deleted []string
}

func (s *stubBlobStore) Save(filename string, data []byte) (string, error) {
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[filename] = data
	return "/blobs/" + filename, nil
}

func (s *stubBlobStore) Delete(filename string) error {
	s.deleted = append(s.deleted, filename)
	return nil
}

type stubGate struct {
	claims *models.JWTClaims
	err    error
}

func (s *stubGate) Authorize(ctx context.Context, token, noticeType string) (*models.JWTClaims, error) {
	return s.claims, s.err
}

type stubResolver struct {
	roles []models.EntityNoticeRole
	verr  func(*ValidationErrors)
}

func (s *stubResolver) ResolveRoles(ctx context.Context, submissions []dto.EntityRoleSubmission, claims *models.JWTClaims, verrs *ValidationErrors) ([]models.EntityNoticeRole, error) {
	if s.verr != nil {
		s.verr(verrs)
	}
	return s.roles, nil
}

type stubAudit struct {
	logs []*models.AuditLog
}

func (s *stubAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

type stubQueue struct {
	jobs []jobs.Job
}

func (s *stubQueue) Enqueue(job jobs.Job) error {
	s.jobs = append(s.jobs, job)
	return nil
}

type stubQueryMetrics struct {
	labels []string
}

func (s *stubQueryMetrics) ObserveDBQuery(label string, duration time.Duration) {
	s.labels = append(s.labels, label)
}

func submitterRecipientRoles() []models.EntityNoticeRole {
	entity := &models.Entity{ID: "linked", Name: "Caller Org"}
	return []models.EntityNoticeRole{
		{EntityID: "linked", Role: models.EntityRoleSubmitter, Entity: entity},
		{EntityID: "linked", Role: models.EntityRoleRecipient, Entity: entity},
	}
}

func newTestNoticeService(repo *stubNoticeRepository, blobs *stubBlobStore, gate *stubGate, resolver *stubResolver) (*NoticeService, *stubAudit, *stubQueue, *stubCache) {
	audit := &stubAudit{}
	queue := &stubQueue{}
	cache := &stubCache{}
	svc := NewNoticeService(NoticeServiceParams{
		Repo:        repo,
		Cache:       cache,
		Blobs:       blobs,
		Gate:        gate,
		Resolver:    resolver,
		Audit:       audit,
		ExportQueue: queue,
		IntakeCfg:   gateIntakeConfig(),
		MaxFileSize: 1 << 20,
	})
	return svc, audit, queue, cache
}

func TestSubmitGateFailureShortCircuits(t *testing.T) {
	repo := &stubNoticeRepository{}
	gate := &stubGate{err: appErrors.Clone(appErrors.ErrUnauthorized, "authentication token required")}
	svc, _, _, _ := newTestNoticeService(repo, &stubBlobStore{}, gate, &stubResolver{})

	_, err := svc.Submit(context.Background(), "", dto.NoticeSubmission{Title: "t"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	assert.Zero(t, repo.saveCall)
}

func TestSubmitMissingTitleRejected(t *testing.T) {
	repo := &stubNoticeRepository{}
	gate := &stubGate{claims: &models.JWTClaims{UserID: "u1"}}
	svc, _, _, _ := newTestNoticeService(repo, &stubBlobStore{}, gate, &stubResolver{roles: submitterRecipientRoles()})

	_, err := svc.Submit(context.Background(), "token", dto.NoticeSubmission{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnprocessable.Code, appErr.Code)
	assert.Contains(t, appErr.Details["title"][0], "required")
	assert.Zero(t, repo.saveCall)
}

func TestSubmitMissingRequiredRolesRejected(t *testing.T) {
	repo := &stubNoticeRepository{}
	gate := &stubGate{claims: &models.JWTClaims{UserID: "u1"}}
	svc, _, _, _ := newTestNoticeService(repo, &stubBlobStore{}, gate, &stubResolver{})

	_, err := svc.Submit(context.Background(), "token", dto.NoticeSubmission{Title: "Takedown"})
	require.Error(t, err)
	details := appErrors.FromError(err).Details
	require.Len(t, details["entity_notice_roles"], 2)
	assert.Zero(t, repo.saveCall)
}

func TestSubmitHappyPath(t *testing.T) {
	repo := &stubNoticeRepository{}
	blobs := &stubBlobStore{}
	gate := &stubGate{claims: &models.JWTClaims{UserID: "u1", EntityID: "linked"}}
	svc, audit, queue, _ := newTestNoticeService(repo, blobs, gate, &stubResolver{roles: submitterRecipientRoles()})

	pdfBytes := []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff}
	req := dto.NoticeSubmission{
		Title: "Unauthorized distribution of recordings",
		Type:  "DMCA",
		Works: []dto.WorkSubmission{{
			Description:     "Album master recordings",
			InfringingURLs:  []dto.URLSubmission{{URL: "http://pirate.example/a"}},
			CopyrightedURLs: []dto.URLSubmission{{URL: "https://label.example/album"}},
		}},
		FileUploads: []dto.FileUploadSubmission{
			{Kind: "original", FileName: "notice.txt", File: "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("takedown body"))},
			{Kind: "supporting", FileName: "scan.pdf", File: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdfBytes)},
		},
	}

	notice, err := svc.Submit(context.Background(), "token", req)
	require.NoError(t, err)
	require.NotNil(t, repo.saved)

	assert.Equal(t, "n1", notice.ID)
	assert.Equal(t, models.NoticeType("dmca"), notice.Type)
	assert.Equal(t, "u1", notice.SubmittedBy)
	assert.Equal(t, "Unauthorized distribution of recordings", notice.Title)

	require.Len(t, notice.Works, 1)
	work := notice.Works[0]
	assert.Equal(t, "Album master recordings", work.Description)
	require.Len(t, work.URLs, 2)
	assert.Equal(t, models.URLKindInfringing, work.URLs[0].Kind)
	assert.Equal(t, "http://pirate.example/a", work.URLs[0].URL)
	assert.Equal(t, models.URLKindCopyrighted, work.URLs[1].Kind)

	require.Len(t, notice.FileUploads, 2)
	assert.Equal(t, "notice.txt", notice.FileUploads[0].FileName)
	assert.Equal(t, "text/plain", notice.FileUploads[0].MediaType)
	assert.Equal(t, int64(len("takedown body")), notice.FileUploads[0].SizeBytes)
	assert.Equal(t, "application/pdf", notice.FileUploads[1].MediaType)

	require.Len(t, blobs.saved, 2)
	var foundPDF bool
	for _, data := range blobs.saved {
		if assert.ObjectsAreEqual(pdfBytes, data) {
			foundPDF = true
		}
	}
	assert.True(t, foundPDF, "binary payload must round-trip byte for byte")

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionNoticeSubmit, audit.logs[0].Action)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "export_warmup", queue.jobs[0].Type)
}

func TestSubmitConcatenatedURLExpands(t *testing.T) {
	repo := &stubNoticeRepository{}
	gate := &stubGate{claims: &models.JWTClaims{UserID: "u1"}}
	svc, _, _, _ := newTestNoticeService(repo, &stubBlobStore{}, gate, &stubResolver{roles: submitterRecipientRoles()})

	req := dto.NoticeSubmission{
		Title: "Takedown",
		Works: []dto.WorkSubmission{{
			Description:    "Song",
			InfringingURLs: []dto.URLSubmission{{URL: "http://a.example/x/http://b.example/y"}},
		}},
	}

	notice, err := svc.Submit(context.Background(), "token", req)
	require.NoError(t, err)
	require.Len(t, notice.Works[0].URLs, 2)
	assert.Equal(t, "http://a.example/x/", notice.Works[0].URLs[0].URL)
	assert.Equal(t, "http://b.example/y", notice.Works[0].URLs[1].URL)
	assert.Equal(t, 0, notice.Works[0].URLs[0].Position)
	assert.Equal(t, 1, notice.Works[0].URLs[1].Position)
}

func TestSubmitMalformedURLRejected(t *testing.T) {
	repo := &stubNoticeRepository{}
	gate := &stubGate{claims: &models.JWTClaims{UserID: "u1"}}
	svc, _, _, _ := newTestNoticeService(repo, &stubBlobStore{}, gate, &stubResolver{roles: submitterRecipientRoles()})

	req := dto.NoticeSubmission{
		Title: "Takedown",
		Works: []dto.WorkSubmission{{
			InfringingURLs: []dto.URLSubmission{{URL: "not a url"}},
		}},
	}

	_, err := svc.Submit(context.Background(), "token", req)
	require.Error(t, err)
	details := appErrors.FromError(err).Details
	require.Len(t, details["works[0].urls[0]"], 1)
	assert.Zero(t, repo.saveCall)
}

func TestSubmitMalformedFileRejectedAndBlobsDiscarded(t *testing.T) {
	repo := &stubNoticeRepository{}
	blobs := &stubBlobStore{}
	gate := &stubGate{claims: &models.JWTClaims{UserID: "u1"}}
	svc, _, _, _ := newTestNoticeService(repo, blobs, gate, &stubResolver{roles: submitterRecipientRoles()})

	req := dto.NoticeSubmission{
		Title: "Takedown",
		FileUploads: []dto.FileUploadSubmission{
			{Kind: "original", FileName: "ok.txt", File: "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("fine"))},
			{Kind: "supporting", FileName: "bad.bin", File: "not-a-data-uri"},
		},
	}

	_, err := svc.Submit(context.Background(), "token", req)
	require.Error(t, err)
	details := appErrors.FromError(err).Details
	assert.Contains(t, details["file_uploads[1]"][0], "malformed")
	assert.Zero(t, repo.saveCall)
	// the blob written for the valid upload must not outlive the rejection
	assert.Len(t, blobs.deleted, 1)
}

func TestSubmitStorageFailureDiscardsBlobs(t *testing.T) {
	repo := &stubNoticeRepository{saveErr: errors.New("connection reset")}
	blobs := &stubBlobStore{}
	gate := &stubGate{claims: &models.JWTClaims{UserID: "u1"}}
	svc, _, _, _ := newTestNoticeService(repo, blobs, gate, &stubResolver{roles: submitterRecipientRoles()})

	req := dto.NoticeSubmission{
		Title: "Takedown",
		FileUploads: []dto.FileUploadSubmission{
			{Kind: "original", FileName: "ok.txt", File: "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("fine"))},
		},
	}

	_, err := svc.Submit(context.Background(), "token", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStorageFailure.Code, appErrors.FromError(err).Code)
	assert.Len(t, blobs.deleted, 1)
}

func TestGetNoticeNotFound(t *testing.T) {
	repo := &stubNoticeRepository{notices: map[string]*models.Notice{}}
	gate := &stubGate{claims: &models.JWTClaims{UserID: "u1"}}
	svc, _, _, _ := newTestNoticeService(repo, &stubBlobStore{}, gate, &stubResolver{})

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGetNoticePopulatesCache(t *testing.T) {
	repo := &stubNoticeRepository{notices: map[string]*models.Notice{
		"n1": {ID: "n1", Title: "Takedown"},
	}}
	gate := &stubGate{claims: &models.JWTClaims{UserID: "u1"}}
	svc, _, _, cache := newTestNoticeService(repo, &stubBlobStore{}, gate, &stubResolver{})

	notice, err := svc.Get(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "Takedown", notice.Title)
	assert.Equal(t, 1, cache.sets)
}

func TestQueryTimingRecordedOnSaveAndGet(t *testing.T) {
	repo := &stubNoticeRepository{notices: map[string]*models.Notice{
		"n1": {ID: "n1", Title: "Takedown"},
	}}
	gate := &stubGate{claims: &models.JWTClaims{UserID: "u1"}}
	metrics := &stubQueryMetrics{}
	svc := NewNoticeService(NoticeServiceParams{
		Repo:      repo,
		Cache:     &stubCache{},
		Blobs:     &stubBlobStore{},
		Gate:      gate,
		Resolver:  &stubResolver{roles: submitterRecipientRoles()},
		Metrics:   metrics,
		IntakeCfg: gateIntakeConfig(),
	})

	_, err := svc.Submit(context.Background(), "token", dto.NoticeSubmission{Title: "Takedown", Type: "dmca"})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "n1")
	require.NoError(t, err)

	assert.Equal(t, []string{"notice_save", "notice_get"}, metrics.labels)
}
