package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"bouncer/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var profileRowColumns = []string{"id", "google_subject", "email", "display_name", "gmail_address", "gmail_access_token", "gmail_refresh_token", "gmail_token_expiry", "qr_code", "created_at"}

func TestProfileRepository_UpsertByGoogleSubject(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO profiles \(google_subject, email, display_name, created_at\)[\s\S]+ON CONFLICT \(google_subject\) DO UPDATE`).
		WithArgs("sub-1", "ada@example.com", "Ada", created).
		WillReturnRows(sqlmock.NewRows(profileRowColumns).
			AddRow("p-1", "sub-1", "ada@example.com", "Ada L.", nil, nil, nil, nil, nil, created))

	p := &domain.Profile{GoogleSubject: "sub-1", Email: "ada@example.com", DisplayName: "Ada", CreatedAt: created}
	err = NewProfileRepository(db).UpsertByGoogleSubject(ctx, p)
	require.NoError(t, err)
	require.Equal(t, "p-1", p.ID)
	require.Equal(t, "Ada L.", p.DisplayName)
	require.False(t, p.GmailConnected())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	expiry := time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC)

	t.Run("with mail grant", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`FROM profiles WHERE id = \$1`).
			WithArgs("p-1").
			WillReturnRows(sqlmock.NewRows(profileRowColumns).
				AddRow("p-1", "sub-1", "ada@example.com", "Ada", "ada@gmail.com", "sealed-a", "sealed-r", expiry, "qr-1", created))

		got, err := NewProfileRepository(db).GetByID(ctx, "p-1")
		require.NoError(t, err)
		require.True(t, got.GmailConnected())
		require.Equal(t, "ada@gmail.com", *got.GmailAddress)
		require.Equal(t, "sealed-r", *got.GmailRefreshToken)
		require.Equal(t, expiry, *got.GmailTokenExpiry)
		require.Equal(t, "qr-1", *got.QRCode)
	})

	t.Run("missing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`FROM profiles WHERE id = \$1`).
			WithArgs("p-x").
			WillReturnError(sql.ErrNoRows)

		_, err = NewProfileRepository(db).GetByID(ctx, "p-x")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestProfileRepository_SetMailGrant(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expiry := time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE profiles\s+SET gmail_address = \$2`).
		WithArgs("p-1", "ada@gmail.com", "a", "r", expiry).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewProfileRepository(db).SetMailGrant(context.Background(), "p-1", domain.SealedMailGrant{
		Address:      "ada@gmail.com",
		AccessToken:  "a",
		RefreshToken: "r",
		Expiry:       expiry,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_ClearMailGrant_Missing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`SET gmail_address = NULL`).
		WithArgs("p-x").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewProfileRepository(db).ClearMailGrant(context.Background(), "p-x")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProfileRepository_SetQRCode_OnlyWhenUnset(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE profiles SET qr_code = \$2 WHERE id = \$1 AND qr_code IS NULL`).
		WithArgs("p-1", "qr-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewProfileRepository(db).SetQRCode(context.Background(), "p-1", "qr-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
