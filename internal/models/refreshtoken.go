package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a row of the refresh token ledger.
// Rows are never deleted: rotation and logout only flip Revoked and
// link ReplacedBy, keeping the chain as an audit trail.
type RefreshToken struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Token      string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Revoked    bool
	ReplacedBy *uuid.UUID // id of the successor token, nil until rotated
}
