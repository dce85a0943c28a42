package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dtroode/gcal-connect/internal/model"
)

// DB is the subset of the pgx pool used by repositories.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ model.TokenStore = (*OAuthTokenRepository)(nil)

// OAuthTokenRepository stores Google credentials in google_oauth_tokens.
// Refresh tokens are encrypted before they reach the database.
type OAuthTokenRepository struct {
	db     DB
	cipher model.Cipher
}

func NewOAuthTokenRepository(db DB, cipher model.Cipher) *OAuthTokenRepository {
	return &OAuthTokenRepository{db: db, cipher: cipher}
}

func (r *OAuthTokenRepository) Upsert(ctx context.Context, record model.OAuthTokenRecord) error {
	const query = `
        INSERT INTO google_oauth_tokens (
            user_id, encrypted_refresh_token, access_token, token_expiry, account_email, created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
        ON CONFLICT (user_id) DO UPDATE SET
            encrypted_refresh_token = EXCLUDED.encrypted_refresh_token,
            access_token = EXCLUDED.access_token,
            token_expiry = EXCLUDED.token_expiry,
            account_email = EXCLUDED.account_email,
            updated_at = NOW()
    `

	encrypted, err := r.encrypt(record.RefreshToken)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query,
		record.UserID, encrypted, record.AccessToken, record.TokenExpiry, record.AccountEmail,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert oauth token: %w", err)
	}
	return nil
}

func (r *OAuthTokenRepository) Get(ctx context.Context, userID string) (model.OAuthTokenRecord, bool, error) {
	const query = `
        SELECT user_id, encrypted_refresh_token, access_token, token_expiry, account_email, updated_at
        FROM google_oauth_tokens WHERE user_id = $1
    `
	var (
		rec       model.OAuthTokenRecord
		encrypted string
	)
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&rec.UserID, &encrypted, &rec.AccessToken, &rec.TokenExpiry, &rec.AccountEmail, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.OAuthTokenRecord{}, false, nil
		}
		return model.OAuthTokenRecord{}, false, fmt.Errorf("failed to get oauth token: %w", err)
	}

	if encrypted != "" {
		plain, err := r.cipher.Decrypt(encrypted)
		if err != nil {
			return rec, true, fmt.Errorf("%w: %v", model.ErrUndecryptable, err)
		}
		rec.RefreshToken = plain
	}

	return rec, true, nil
}

func (r *OAuthTokenRepository) UpdateAccessToken(ctx context.Context, userID, accessToken string, expiry time.Time) error {
	const query = `
        UPDATE google_oauth_tokens SET access_token = $2, token_expiry = $3, updated_at = NOW()
        WHERE user_id = $1
    `
	tag, err := r.db.Exec(ctx, query, userID, accessToken, expiry)
	if err != nil {
		return fmt.Errorf("failed to update access token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *OAuthTokenRepository) Delete(ctx context.Context, userID string) error {
	const query = `DELETE FROM google_oauth_tokens WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete oauth token: %w", err)
	}
	return nil
}

// encrypt keeps an absent refresh token as an empty column value.
func (r *OAuthTokenRepository) encrypt(refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", nil
	}
	encrypted, err := r.cipher.Encrypt(refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	return encrypted, nil
}
