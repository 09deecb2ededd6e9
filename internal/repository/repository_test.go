package repository

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

var userRowColumns = []string{
	"id", "email", "username", "password_hash", "first_name", "last_name", "is_active", "is_staff",
	"is_superuser", "email_verified", "plan", "last_login_at", "created_at", "updated_at",
}
