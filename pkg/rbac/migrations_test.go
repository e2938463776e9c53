package rbac

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMigrations_Ordered(t *testing.T) {
	migrations := GetMigrations()
	require.NotEmpty(t, migrations)
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.Description)
		assert.NotEmpty(t, m.SQL)
	}
}

func TestRunMigrations_AppliesPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger, hook := test.NewNullLogger()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS rbac_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM rbac_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1).AddRow(2))

	for _, m := range GetMigrations()[2:] {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rbac_migrations")).
			WithArgs(m.Version, m.Description).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
	}

	require.NoError(t, RunMigrations(context.Background(), db, logger))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Len(t, hook.AllEntries(), 2*len(GetMigrations()[2:]))
}

func TestRunMigrations_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger, _ := test.NewNullLogger()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS rbac_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM rbac_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE SCHEMA")).WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), db, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
