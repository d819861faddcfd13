package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noticedesk/notice-intake-api/internal/models"
)

// NoticeRepository persists the notice graph. Save is the only write
// path: the notice, its works, URL rows, roles, file uploads and any
// entities created inline all land in one transaction.
type NoticeRepository struct {
	db *sqlx.DB
}

// NewNoticeRepository constructs the repository.
func NewNoticeRepository(db *sqlx.DB) *NoticeRepository {
	return &NoticeRepository{db: db}
}

// Save writes the full notice graph atomically and returns the notice
// identifier. Entities carried on roles with an empty ID are inserted;
// roles referencing existing entities only get a join row. On any error
// the transaction rolls back and nothing is persisted.
func (r *NoticeRepository) Save(ctx context.Context, notice *models.Notice) (string, error) {
	if notice.ID == "" {
		notice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if notice.CreatedAt.IsZero() {
		notice.CreatedAt = now
	}
	notice.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin notice tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const noticeQuery = `INSERT INTO notices (id, title, type, submitted_by, created_at, updated_at) VALUES (:id, :title, :type, :submitted_by, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, noticeQuery, notice); err != nil {
		return "", fmt.Errorf("insert notice: %w", err)
	}

	if err = r.saveRoles(ctx, tx, notice, now); err != nil {
		return "", err
	}
	if err = r.saveWorks(ctx, tx, notice, now); err != nil {
		return "", err
	}
	if err = r.saveFileUploads(ctx, tx, notice, now); err != nil {
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit notice tx: %w", err)
	}
	return notice.ID, nil
}

func (r *NoticeRepository) saveRoles(ctx context.Context, tx *sqlx.Tx, notice *models.Notice, now time.Time) error {
	const entityQuery = `INSERT INTO entities (id, name, kind, address_line, city, state, zip, country_code, phone, email, url, created_at, updated_at) VALUES (:id, :name, :kind, :address_line, :city, :state, :zip, :country_code, :phone, :email, :url, :created_at, :updated_at)`
	const roleQuery = `INSERT INTO entity_notice_roles (id, notice_id, entity_id, role_name) VALUES (:id, :notice_id, :entity_id, :role_name)`

	for i := range notice.Roles {
		role := &notice.Roles[i]
		if role.Entity != nil && role.Entity.ID == "" {
			role.Entity.ID = uuid.NewString()
			role.Entity.CreatedAt = now
			role.Entity.UpdatedAt = now
			if _, err := tx.NamedExecContext(ctx, entityQuery, role.Entity); err != nil {
				return fmt.Errorf("insert entity: %w", err)
			}
			role.EntityID = role.Entity.ID
		}
		if role.ID == "" {
			role.ID = uuid.NewString()
		}
		role.NoticeID = notice.ID
		if _, err := tx.NamedExecContext(ctx, roleQuery, role); err != nil {
			return fmt.Errorf("insert entity notice role: %w", err)
		}
	}
	return nil
}

func (r *NoticeRepository) saveWorks(ctx context.Context, tx *sqlx.Tx, notice *models.Notice, now time.Time) error {
	const workQuery = `INSERT INTO works (id, notice_id, description, position, created_at) VALUES (:id, :notice_id, :description, :position, :created_at)`
	const urlQuery = `INSERT INTO work_urls (id, work_id, kind, url, position) VALUES (:id, :work_id, :kind, :url, :position)`

	for i := range notice.Works {
		work := &notice.Works[i]
		if work.ID == "" {
			work.ID = uuid.NewString()
		}
		work.NoticeID = notice.ID
		work.Position = i
		work.CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, workQuery, work); err != nil {
			return fmt.Errorf("insert work: %w", err)
		}
		for j := range work.URLs {
			u := &work.URLs[j]
			if u.ID == "" {
				u.ID = uuid.NewString()
			}
			u.WorkID = work.ID
			u.Position = j
			if _, err := tx.NamedExecContext(ctx, urlQuery, u); err != nil {
				return fmt.Errorf("insert work url: %w", err)
			}
		}
	}
	return nil
}

func (r *NoticeRepository) saveFileUploads(ctx context.Context, tx *sqlx.Tx, notice *models.Notice, now time.Time) error {
	const uploadQuery = `INSERT INTO file_uploads (id, notice_id, kind, file_name, media_type, size_bytes, storage_path, created_at) VALUES (:id, :notice_id, :kind, :file_name, :media_type, :size_bytes, :storage_path, :created_at)`

	for i := range notice.FileUploads {
		upload := &notice.FileUploads[i]
		if upload.ID == "" {
			upload.ID = uuid.NewString()
		}
		upload.NoticeID = notice.ID
		upload.CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, uploadQuery, upload); err != nil {
			return fmt.Errorf("insert file upload: %w", err)
		}
	}
	return nil
}

// GetByID loads a notice with its full graph.
func (r *NoticeRepository) GetByID(ctx context.Context, id string) (*models.Notice, error) {
	const noticeQuery = `SELECT id, title, type, submitted_by, created_at, updated_at FROM notices WHERE id = $1 LIMIT 1`
	var notice models.Notice
	if err := r.db.GetContext(ctx, &notice, noticeQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find notice by id: %w", err)
	}

	const workQuery = `SELECT id, notice_id, description, position, created_at FROM works WHERE notice_id = $1 ORDER BY position`
	if err := r.db.SelectContext(ctx, &notice.Works, workQuery, id); err != nil {
		return nil, fmt.Errorf("load notice works: %w", err)
	}

	const urlQuery = `SELECT u.id, u.work_id, u.kind, u.url, u.position FROM work_urls u JOIN works w ON w.id = u.work_id WHERE w.notice_id = $1 ORDER BY u.work_id, u.position`
	var urls []models.WorkURL
	if err := r.db.SelectContext(ctx, &urls, urlQuery, id); err != nil {
		return nil, fmt.Errorf("load work urls: %w", err)
	}
	byWork := make(map[string][]models.WorkURL, len(notice.Works))
	for _, u := range urls {
		byWork[u.WorkID] = append(byWork[u.WorkID], u)
	}
	for i := range notice.Works {
		notice.Works[i].URLs = byWork[notice.Works[i].ID]
	}

	const roleQuery = `SELECT r.id, r.notice_id, r.entity_id, r.role_name FROM entity_notice_roles r WHERE r.notice_id = $1`
	if err := r.db.SelectContext(ctx, &notice.Roles, roleQuery, id); err != nil {
		return nil, fmt.Errorf("load notice roles: %w", err)
	}
	for i := range notice.Roles {
		entity, err := r.loadEntity(ctx, notice.Roles[i].EntityID)
		if err != nil {
			return nil, err
		}
		notice.Roles[i].Entity = entity
	}

	const uploadQuery = `SELECT id, notice_id, kind, file_name, media_type, size_bytes, storage_path, created_at FROM file_uploads WHERE notice_id = $1 ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &notice.FileUploads, uploadQuery, id); err != nil {
		return nil, fmt.Errorf("load file uploads: %w", err)
	}

	return &notice, nil
}

func (r *NoticeRepository) loadEntity(ctx context.Context, id string) (*models.Entity, error) {
	query := fmt.Sprintf(`SELECT %s FROM entities WHERE id = $1 LIMIT 1`, entityColumns)
	var entity models.Entity
	if err := r.db.GetContext(ctx, &entity, query, id); err != nil {
		return nil, fmt.Errorf("load role entity: %w", err)
	}
	return &entity, nil
}
