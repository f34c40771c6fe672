package models

import (
	"time"

	"github.com/google/uuid"
)

// Fixed role names seeded at deployment
const (
	RoleAdmin      = "ADMIN"
	RoleDriver     = "DRIVER"
	RoleClient     = "CLIENT"
	RoleSupervisor = "SUPERVISOR"
)

type Role struct {
	ID   int64
	Name string

	// Permission slugs assigned to the role, e.g. "fleet:view"
	Permissions []string
}

type User struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool

	Role Role

	// Fleet attributes, carried for claim embedding only
	VehicleType *string
	ZoneID      *int64
}
