package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/logistio/fleetauth/internal/apperrors"
	"github.com/logistio/fleetauth/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const saveToken = `-- name: SaveRefreshToken
INSERT INTO refresh_tokens (id, user_id, token_hash, created_at, expires_at, revoked, replaced_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, user_id, token_hash, created_at, expires_at, revoked, replaced_by
`

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, saveToken,
		token.ID, token.UserID, token.Token, token.CreatedAt, token.ExpiresAt, token.Revoked, token.ReplacedBy,
	)
	saved, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getToken = `-- name: GetRefreshToken
SELECT id, user_id, token_hash, created_at, expires_at, revoked, replaced_by
FROM refresh_tokens
WHERE token_hash = $1
`

// Get the row whatever its state, expired or revoked included
func (r *RefreshTokenRepo) Get(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getToken, tokenString)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const consumeToken = `-- name: ConsumeRefreshToken
UPDATE refresh_tokens
SET revoked = TRUE, replaced_by = $2
WHERE token_hash = $1 AND revoked = FALSE
RETURNING id, user_id, token_hash, created_at, expires_at, revoked, replaced_by
`

// Consume revokes the row and links its successor.
// The 'revoked = FALSE' predicate makes concurrent consumers serialize on
// the row lock: the loser re-evaluates the predicate after the winner
// commits, matches nothing and falls through to the classifying Get.
func (r *RefreshTokenRepo) Consume(ctx context.Context, tokenString string, replacedBy uuid.UUID) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, consumeToken, tokenString, replacedBy)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Nothing matched: either the token never existed or it is
		// already revoked. Tell the two apart for the caller.
		existing, getErr := r.Get(ctx, tokenString)
		if getErr != nil {
			return existing, getErr
		}
		return existing, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenRevoked)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const revokeToken = `-- name: RevokeRefreshToken
UPDATE refresh_tokens
SET revoked = TRUE
WHERE token_hash = $1
`

// Revoke the row unconditionally, ignoring whether it exists
func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenString string) error {
	_, err := r.DB.Exec(ctx, revokeToken, tokenString)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.Revoked, &t.ReplacedBy)
	return t, err
}
