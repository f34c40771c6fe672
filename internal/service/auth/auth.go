package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/logistio/fleetauth/internal/apperrors"
	"github.com/logistio/fleetauth/internal/models"
	"github.com/logistio/fleetauth/internal/repository"
)

const defaultRefreshTokenTTL = 7 * 24 * time.Hour

// 40 random bytes, hex encoded: 320 bits of entropy per opaque token
const refreshTokenBytesLen = 40

type Config struct {
	// Hasher used during registration and login
	// If not set the default bcrypt hasher is used
	Hasher PasswordHasher

	// Refresh token lifetime
	// If not set the default is used
	RefreshTokenTTL time.Duration
}

type RegisterParams struct {
	Username    string
	Email       string
	Password    string
	Role        string
	VehicleType *string
	ZoneID      *int64
}

// Minimal user summary returned on login
type UserSummary struct {
	Username string
	Role     string
	Email    string
}

// Service orchestrates credential verification, access token issuance
// and the refresh token ledger
type Service struct {
	signer     *Signer
	hasher     PasswordHasher
	storage    repository.Storage
	refreshTTL time.Duration
}

func NewService(cfg Config, signer *Signer, storage repository.Storage) (*Service, error) {
	if signer == nil || storage == nil {
		return nil, errors.New("signer and storage must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL == 0 {
		refreshTTL = defaultRefreshTokenTTL
	}

	return &Service{
		signer:     signer,
		hasher:     hasher,
		storage:    storage,
		refreshTTL: refreshTTL,
	}, nil
}

// Register creates a user with a hashed password within one transaction.
// The role is resolved by name; unknown roles fail with
// apperrors.ErrRoleNotFound, uniqueness violations with
// apperrors.ErrUserAlreadyExists or apperrors.ErrEmailAlreadyExists.
func (s *Service) Register(ctx context.Context, params RegisterParams) (models.User, error) {
	var user models.User

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		role, err := st.Roles().GetRoleByName(ctx, params.Role)
		if err != nil {
			return err
		}

		user, err = st.Users().CreateUser(ctx, repository.CreateUserParams{
			Username:     params.Username,
			Email:        params.Email,
			PasswordHash: hash,
			RoleID:       role.ID,
			VehicleType:  params.VehicleType,
			ZoneID:       params.ZoneID,
		})
		if err != nil {
			return err
		}

		user.Role = role
		return nil
	})
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

// Login verifies credentials and issues a token pair.
// Unknown user and wrong password both fail with
// apperrors.ErrInvalidCredentials; the unknown-user path still runs a
// bcrypt compare so the two cases keep the same latency profile.
func (s *Service) Login(ctx context.Context, username string, password string) (models.TokenPair, UserSummary, error) {
	var pair models.TokenPair
	var summary UserSummary

	user, err := s.storage.Users().GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(dummyHash, password)
		return pair, summary, apperrors.ErrInvalidCredentials
	case err != nil:
		return pair, summary, err
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return pair, summary, apperrors.ErrInvalidCredentials
	}

	pair, err = s.issuePair(ctx, s.storage, user)
	if err != nil {
		return pair, summary, err
	}

	summary = UserSummary{Username: user.Username, Role: user.Role.Name, Email: user.Email}
	return pair, summary, nil
}

// Refresh rotates the presented refresh token and issues a new pair.
// Revoke-old, insert-new and access issuance commit as one transaction;
// a replayed token fails with apperrors.ErrRefreshTokenRevoked, an
// unknown one with apperrors.ErrRefreshTokenNotFound, an elapsed one
// with apperrors.ErrRefreshTokenExpired.
func (s *Service) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	newID := uuid.New()

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		old, err := st.RefreshTokens().Consume(ctx, refresh, newID)
		if err != nil {
			return err
		}

		if old.ExpiresAt.Before(time.Now()) {
			return fmt.Errorf("refresh rejected: %w", apperrors.ErrRefreshTokenExpired)
		}

		user, err := st.Users().GetUserByID(ctx, old.UserID)
		if err != nil {
			return err
		}

		pair, err = s.issuePairWithID(ctx, st, user, newID)
		return err
	})
	if err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// Logout revokes the presented refresh token.
// Always succeeds from the caller's perspective: revoking an unknown or
// already revoked token is indistinguishable from revoking a live one.
func (s *Service) Logout(ctx context.Context, refresh string) error {
	return s.storage.RefreshTokens().Revoke(ctx, refresh)
}

// Authenticate verifies a bearer access token and returns its claims
func (s *Service) Authenticate(tokenString string) (*AccessTokenClaims, error) {
	return s.signer.Verify(tokenString)
}

func (s *Service) issuePair(ctx context.Context, st repository.Storage, user models.User) (models.TokenPair, error) {
	return s.issuePairWithID(ctx, st, user, uuid.New())
}

func (s *Service) issuePairWithID(ctx context.Context, st repository.Storage, user models.User, tokenID uuid.UUID) (models.TokenPair, error) {
	var pair models.TokenPair

	access, err := s.signer.Issue(user)
	if err != nil {
		return pair, err
	}

	refresh, err := newRefreshTokenString()
	if err != nil {
		return pair, err
	}

	now := time.Now().Truncate(time.Second)
	saved, err := st.RefreshTokens().Save(ctx, models.RefreshToken{
		ID:        tokenID,
		UserID:    user.ID,
		Token:     refresh,
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	})
	if err != nil {
		return pair, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return models.TokenPair{
		Access:  access,
		Refresh: models.IssuedToken{Value: refresh, ExpiresAt: saved.ExpiresAt},
	}, nil
}

func newRefreshTokenString() (string, error) {
	b := make([]byte, refreshTokenBytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error while generating refresh token. Err: %w", err)
	}
	return hex.EncodeToString(b), nil
}
