package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/logistio/fleetauth/internal/models"
)

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	RoleID       int64
	VehicleType  *string
	ZoneID       *int64
}

// User repository interface
type UserRepo interface {
	// Create user
	// Has to return apperrors.ErrUserAlreadyExists or apperrors.ErrEmailAlreadyExists
	// on the matching unique constraint violation
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by id or username, with role and permission slugs loaded
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// Role repository interface
type RoleRepo interface {
	// Get role by name with its permission slugs
	// If role not found must return apperrors.ErrRoleNotFound
	GetRoleByName(ctx context.Context, name string) (models.Role, error)
}

// RefreshToken ledger interface
// Rows are append-and-flag only, never deleted
type RefreshTokenRepo interface {
	// Persist a new token row
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return the row whatever its state, expired or revoked included
	// If no row matches must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Revoke the row and link its successor, but only if it is not revoked yet.
	// Exactly one concurrent caller may win; the others must get
	// apperrors.ErrRefreshTokenRevoked. Missing rows return
	// apperrors.ErrRefreshTokenNotFound.
	Consume(ctx context.Context, tokenString string, replacedBy uuid.UUID) (models.RefreshToken, error)

	// Revoke the row unconditionally. Idempotent: revoking an already
	// revoked or nonexistent token is not an error, so logout never leaks
	// whether a token existed.
	Revoke(ctx context.Context, tokenString string) error
}

// Storage combines the repositories over a single database handle
type Storage interface {
	Users() UserRepo
	Roles() RoleRepo
	RefreshTokens() RefreshTokenRepo

	// Run fn within a database transaction.
	// The storage passed to fn operates on the transaction; any error
	// rolls the whole transaction back.
	InTx(ctx context.Context, fn func(Storage) error) error
}
