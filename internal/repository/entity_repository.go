package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noticedesk/notice-intake-api/internal/models"
)

const entityColumns = `id, name, kind, address_line, city, state, zip, country_code, phone, email, url, created_at, updated_at`

// EntityRepository reads persisted notice parties. Writes happen inside
// the notice transaction (see NoticeRepository.Save); entities are never
// created outside a notice submission.
type EntityRepository struct {
	db *sqlx.DB
}

// NewEntityRepository constructs the repository.
func NewEntityRepository(db *sqlx.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// FindByID returns an entity by identifier.
func (r *EntityRepository) FindByID(ctx context.Context, id string) (*models.Entity, error) {
	query := fmt.Sprintf(`SELECT %s FROM entities WHERE id = $1 LIMIT 1`, entityColumns)
	var entity models.Entity
	if err := r.db.GetContext(ctx, &entity, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find entity by id: %w", err)
	}
	return &entity, nil
}
