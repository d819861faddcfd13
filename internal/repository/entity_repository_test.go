package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newEntityRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func entityRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "name", "kind", "address_line", "city", "state", "zip", "country_code", "phone", "email", "url", "created_at", "updated_at"}).
		AddRow("ent-1", "Rights Holder", "individual", "1 Main St", "Springfield", "", "", "US", "", "holder@example.com", "", now, now)
}

func TestEntityRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newEntityRepoMock(t)
	defer cleanup()

	repo := NewEntityRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM entities WHERE id = $1")).
		WithArgs("ent-1").
		WillReturnRows(entityRows())

	entity, err := repo.FindByID(context.Background(), "ent-1")
	require.NoError(t, err)
	require.Equal(t, "Rights Holder", entity.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newEntityRepoMock(t)
	defer cleanup()

	repo := NewEntityRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM entities WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
