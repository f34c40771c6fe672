package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/logistio/fleetauth/internal/apperrors"
	"github.com/logistio/fleetauth/internal/models"
)

type RoleRepo struct {
	DB DBTX
}

const getRoleByName = `-- name: GetRoleByName
SELECT r.id, r.name,
       COALESCE(array_agg(p.slug ORDER BY p.slug) FILTER (WHERE p.slug IS NOT NULL), '{}')
FROM roles r
LEFT JOIN role_permissions rp ON rp.role_id = r.id
LEFT JOIN permissions p ON p.id = rp.permission_id
WHERE r.name = $1
GROUP BY r.id
`

func (r *RoleRepo) GetRoleByName(ctx context.Context, name string) (models.Role, error) {
	rows, _ := r.DB.Query(ctx, getRoleByName, name)
	role, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Role, error) {
		var ro models.Role
		err := row.Scan(&ro.ID, &ro.Name, &ro.Permissions)
		return ro, err
	})

	switch {
	case err == nil:
		return role, nil
	case errors.Is(err, pgx.ErrNoRows):
		return role, fmt.Errorf("repo error: %w", apperrors.ErrRoleNotFound)
	default:
		return role, fmt.Errorf("db error: %w", err)
	}
}
