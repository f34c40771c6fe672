package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/logistio/fleetauth/internal/apperrors"
	"github.com/logistio/fleetauth/internal/models"
	"github.com/logistio/fleetauth/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const createUser = `-- name: CreateUser
INSERT INTO users (id, username, email, password_hash, role_id, vehicle_type, zone_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, username, email, password_hash, is_active, vehicle_type, zone_id
`

func (r *UserRepo) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser,
		uuid.New(), arg.Username, arg.Email, arg.PasswordHash, arg.RoleID, arg.VehicleType, arg.ZoneID,
	)
	user, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.User, error) {
		var u models.User
		err := row.Scan(&u.ID, &u.CreatedAt, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.VehicleType, &u.ZoneID)
		u.Role = models.Role{ID: arg.RoleID}
		return u, err
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return user, fmt.Errorf("repo error: %w", apperrors.ErrEmailAlreadyExists)
			}
			return user, fmt.Errorf("repo error: %w", apperrors.ErrUserAlreadyExists)
		}
		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// Select user with its role and the role's permission slugs in one query.
// Permissions aggregate to '{}' for roles that carry none.
const selectUser = `-- name: GetUser
SELECT u.id, u.created_at, u.username, u.email, u.password_hash, u.is_active, u.vehicle_type, u.zone_id,
       r.id, r.name,
       COALESCE(array_agg(p.slug ORDER BY p.slug) FILTER (WHERE p.slug IS NOT NULL), '{}')
FROM users u
JOIN roles r ON r.id = u.role_id
LEFT JOIN role_permissions rp ON rp.role_id = r.id
LEFT JOIN permissions p ON p.id = rp.permission_id
WHERE %s = $1
GROUP BY u.id, r.id
`

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return r.getUser(ctx, fmt.Sprintf(selectUser, "u.id"), userID)
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return r.getUser(ctx, fmt.Sprintf(selectUser, "u.username"), username)
}

func (r *UserRepo) getUser(ctx context.Context, query string, lookup any) (models.User, error) {
	rows, _ := r.DB.Query(ctx, query, lookup)
	user, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.User, error) {
		var u models.User
		err := row.Scan(
			&u.ID, &u.CreatedAt, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.VehicleType, &u.ZoneID,
			&u.Role.ID, &u.Role.Name, &u.Role.Permissions,
		)
		return u, err
	})

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}
