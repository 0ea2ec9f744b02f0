package database

import (
	"database/sql"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupOAuthStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *OAuthStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := NewOAuthStore(db, zap.NewNop())
	return db, mock, store
}

func TestGetOrCreateCode_ReturnsExisting(t *testing.T) {
	db, mock, store := setupOAuthStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT code FROM oauth_data`).
		WithArgs("abc1234").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("existing-code"))

	code, err := store.GetOrCreateCode("abc1234")

	require.NoError(t, err)
	assert.Equal(t, "existing-code", code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateCode_MintsOnFirstSight(t *testing.T) {
	db, mock, store := setupOAuthStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT code FROM oauth_data`).
		WithArgs("abc1234").
		WillReturnRows(sqlmock.NewRows([]string{"code"}))
	mock.ExpectExec(`INSERT INTO oauth_data`).
		WithArgs("abc1234", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	code, err := store.GetOrCreateCode("abc1234")

	require.NoError(t, err)
	require.NotEmpty(t, code)

	// 32 CSPRNG bytes plus a 16-byte UUID, URL-safe encoded.
	raw, err := base64.URLEncoding.DecodeString(code)
	require.NoError(t, err)
	assert.Len(t, raw, 48)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateCode_StableAcrossSequentialCalls(t *testing.T) {
	db, mock, store := setupOAuthStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT code FROM oauth_data`).
		WithArgs("abc1234").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("stable-code"))
	mock.ExpectQuery(`SELECT code FROM oauth_data`).
		WithArgs("abc1234").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("stable-code"))

	first, err := store.GetOrCreateCode("abc1234")
	require.NoError(t, err)
	second, err := store.GetOrCreateCode("abc1234")
	require.NoError(t, err)

	assert.Equal(t, first, second)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveCode_Found(t *testing.T) {
	db, mock, store := setupOAuthStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT uni FROM oauth_data`).
		WithArgs("some-code").
		WillReturnRows(sqlmock.NewRows([]string{"uni"}).AddRow("abc1234"))

	uni, err := store.ResolveCode("some-code")

	require.NoError(t, err)
	assert.Equal(t, "abc1234", uni)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveCode_NotFound(t *testing.T) {
	db, mock, store := setupOAuthStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT uni FROM oauth_data`).
		WithArgs("no-such-code").
		WillReturnRows(sqlmock.NewRows([]string{"uni"}))

	uni, err := store.ResolveCode("no-such-code")

	assert.ErrorIs(t, err, ErrCodeNotFound)
	assert.Empty(t, uni)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveCode_QueryErrorIsNotNotFound(t *testing.T) {
	db, mock, store := setupOAuthStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT uni FROM oauth_data`).
		WithArgs("some-code").
		WillReturnError(errors.New("connection refused"))

	_, err := store.ResolveCode("some-code")

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCodeNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewCode_UniqueAndURLSafe(t *testing.T) {
	first, err := newCode()
	require.NoError(t, err)
	second, err := newCode()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	raw, err := base64.URLEncoding.DecodeString(first)
	require.NoError(t, err)
	assert.Len(t, raw, 48)
}
