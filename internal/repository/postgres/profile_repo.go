package postgres

import (
	"context"
	"database/sql"
	"errors"

	"bouncer/internal/domain"
)

const profileColumns = `id, google_subject, email, display_name, gmail_address, gmail_access_token, gmail_refresh_token, gmail_token_expiry, qr_code, created_at`

type profileRepository struct {
	DB *sql.DB
}

func NewProfileRepository(db *sql.DB) domain.ProfileRepository {
	return &profileRepository{DB: db}
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	p := &domain.Profile{}
	var addrNull, accessNull, refreshNull, qrNull sql.NullString
	var expiryNull sql.NullTime
	if err := row.Scan(
		&p.ID, &p.GoogleSubject, &p.Email, &p.DisplayName,
		&addrNull, &accessNull, &refreshNull, &expiryNull, &qrNull, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	if addrNull.Valid {
		p.GmailAddress = &addrNull.String
	}
	if accessNull.Valid {
		p.GmailAccessToken = &accessNull.String
	}
	if refreshNull.Valid {
		p.GmailRefreshToken = &refreshNull.String
	}
	if expiryNull.Valid {
		p.GmailTokenExpiry = &expiryNull.Time
	}
	if qrNull.Valid {
		p.QRCode = &qrNull.String
	}
	return p, nil
}

// UpsertByGoogleSubject inserts the profile or refreshes the email of an existing one.
// The display name is only taken on first insert so user edits survive later sign-ins.
func (r *profileRepository) UpsertByGoogleSubject(ctx context.Context, p *domain.Profile) error {
	query := `
		INSERT INTO profiles (google_subject, email, display_name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (google_subject) DO UPDATE
		SET email = EXCLUDED.email
		RETURNING ` + profileColumns
	got, err := scanProfile(r.DB.QueryRowContext(ctx, query, p.GoogleSubject, p.Email, p.DisplayName, p.CreatedAt))
	if err != nil {
		return err
	}
	*p = *got
	return nil
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	p, err := scanProfile(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *profileRepository) UpdateDisplayName(ctx context.Context, id, displayName string) (*domain.Profile, error) {
	query := `UPDATE profiles SET display_name = $2 WHERE id = $1 RETURNING ` + profileColumns
	p, err := scanProfile(r.DB.QueryRowContext(ctx, query, id, displayName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *profileRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *profileRepository) SetMailGrant(ctx context.Context, id string, grant domain.SealedMailGrant) error {
	query := `
		UPDATE profiles
		SET gmail_address = $2, gmail_access_token = $3, gmail_refresh_token = $4, gmail_token_expiry = $5
		WHERE id = $1
	`
	return r.exec(ctx, query, id, grant.Address, grant.AccessToken, grant.RefreshToken, grant.Expiry)
}

func (r *profileRepository) ClearMailGrant(ctx context.Context, id string) error {
	query := `
		UPDATE profiles
		SET gmail_address = NULL, gmail_access_token = NULL, gmail_refresh_token = NULL, gmail_token_expiry = NULL
		WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

// SetQRCode stores the QR payload only if none is set yet.
func (r *profileRepository) SetQRCode(ctx context.Context, id, qrCode string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE profiles SET qr_code = $2 WHERE id = $1 AND qr_code IS NULL`, id, qrCode)
	return err
}

func (r *profileRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
}
