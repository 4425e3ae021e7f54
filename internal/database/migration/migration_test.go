package migration

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetapi/internal/logging"
)

func TestEnsureMigrated(t *testing.T) {
	log := logging.Discard()
	check := regexp.QuoteMeta("SELECT to_regclass($1) IS NOT NULL")

	t.Run("schema present", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(check).WithArgs(sentinelTable).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		assert.NoError(t, EnsureMigrated(context.Background(), db, log, "localhost"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("applies every step", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(check).WithArgs(sentinelTable).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS assets").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_assets_kind").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_assets_created_at").WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, EnsureMigrated(context.Background(), db, log, "localhost"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("step failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(check).WithArgs(sentinelTable).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS assets").WillReturnError(errors.New("permission denied"))

		err = EnsureMigrated(context.Background(), db, log, "localhost")
		assert.ErrorContains(t, err, "create_table_assets")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("check failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(check).WithArgs(sentinelTable).WillReturnError(errors.New("connection refused"))

		err = EnsureMigrated(context.Background(), db, log, "localhost")
		assert.ErrorContains(t, err, "sentinel table")
	})
}
