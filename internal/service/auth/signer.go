package auth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/logistio/fleetauth/internal/apperrors"
	"github.com/logistio/fleetauth/internal/models"
)

const (
	defaultAccessTokenTTL = time.Hour
	signingMethod         = "ES256"

	// Scope embedded when the role carries no permissions
	defaultScope = "read"
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	Scope     string    `json:"scope"`
	ZoneID    *int64    `json:"zone_id"`
	FleetType *string   `json:"fleet_type"`
}

type SignerConfig struct {
	// ECDSA P-256 keys in PEM format.
	// The private key is required to issue tokens, the public key to
	// verify them. A verifier-only deployment configures just the public
	// key; issuing then fails with apperrors.ErrSignerNotConfigured.
	PrivateKeyPEM []byte
	PublicKeyPEM  []byte

	// Access token lifetime
	// If not set the default is used
	AccessTTL time.Duration
}

// Signer issues and verifies access tokens.
// The private key is the only writing capability in the system: every
// downstream service verifies with the public key alone.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	accessTTL  time.Duration
}

func NewSigner(cfg SignerConfig) (*Signer, error) {
	s := &Signer{accessTTL: cfg.AccessTTL}
	if s.accessTTL == 0 {
		s.accessTTL = defaultAccessTokenTTL
	}

	if cfg.PrivateKeyPEM != nil {
		key, err := jwt.ParseECPrivateKeyFromPEM(cfg.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		s.privateKey = key
		s.publicKey = &key.PublicKey
	}

	if cfg.PublicKeyPEM != nil {
		key, err := jwt.ParseECPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		s.publicKey = key
	}

	if s.publicKey == nil {
		return nil, fmt.Errorf("%w: no key material", apperrors.ErrSignerNotConfigured)
	}

	return s, nil
}

// Issue signs an access token carrying the user's identity claims.
// Scope is the role's permission slugs joined by single spaces.
func (s *Signer) Issue(user models.User) (models.IssuedToken, error) {
	var issued models.IssuedToken

	if s.privateKey == nil {
		return issued, fmt.Errorf("%w: private key required to issue", apperrors.ErrSignerNotConfigured)
	}

	scope := defaultScope
	if len(user.Role.Permissions) > 0 {
		scope = strings.Join(user.Role.Permissions, " ")
	}

	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(s.accessTTL)

	token := jwt.NewWithClaims(
		jwt.SigningMethodES256,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   user.Username,
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			UserID:    user.ID,
			Role:      user.Role.Name,
			Scope:     scope,
			ZoneID:    user.ZoneID,
			FleetType: user.VehicleType,
		},
	)

	value, err := token.SignedString(s.privateKey)
	if err != nil {
		return issued, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

// Verify parses and validates an access token.
// Tokens signed with any method other than ES256 are rejected, whatever
// their signature says.
func (s *Signer) Verify(tokenString string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return s.publicKey, nil },
		jwt.WithValidMethods([]string{signingMethod}),
	)

	switch {
	case err == nil && token.Valid:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	default:
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	}
}
