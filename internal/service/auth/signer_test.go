package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logistio/fleetauth/internal/apperrors"
	"github.com/logistio/fleetauth/internal/models"
	"github.com/logistio/fleetauth/internal/testutil"
)

func ptr[T any](v T) *T {
	return &v
}

func Test_Signer(t *testing.T) {
	t.Parallel()

	privatePEM, publicPEM := testutil.GenerateKeypair(t)

	newSigner := func(t *testing.T, accessTTL time.Duration) *Signer {
		s, err := NewSigner(SignerConfig{
			PrivateKeyPEM: privatePEM,
			PublicKeyPEM:  publicPEM,
			AccessTTL:     accessTTL,
		})
		require.NoError(t, err, "signer should be created without errors")
		return s
	}

	testUser := models.User{
		ID:       uuid.New(),
		Username: "testuser",
		Email:    "testuser@example.com",
		Role: models.Role{
			ID:          1,
			Name:        models.RoleDriver,
			Permissions: []string{"order:view_nopicked"},
		},
		VehicleType: ptr("TRUCK"),
		ZoneID:      ptr(int64(2)),
	}

	t.Run("new signer", func(t *testing.T) {
		t.Run("defaults", func(t *testing.T) {
			s, err := NewSigner(SignerConfig{PrivateKeyPEM: privatePEM})
			require.NoError(t, err)
			require.Equal(t, defaultAccessTokenTTL, s.accessTTL, "default access token TTL should be set")
			require.NotNil(t, s.publicKey, "public key should be derived from the private key")
		})

		t.Run("fail without any key", func(t *testing.T) {
			_, err := NewSigner(SignerConfig{})
			require.Error(t, err)
			require.ErrorIs(t, err, apperrors.ErrSignerNotConfigured)
		})

		t.Run("fail on garbage pem", func(t *testing.T) {
			_, err := NewSigner(SignerConfig{PrivateKeyPEM: []byte("not a key")})
			require.Error(t, err)
		})
	})

	t.Run("issue and verify round trip", func(t *testing.T) {
		// One representative user per role, including CLIENT variants
		// and a role that carries no permissions at all
		users := map[string]models.User{
			"admin": {
				ID:       uuid.New(),
				Username: "admin",
				Role:     models.Role{Name: models.RoleAdmin, Permissions: []string{"fleet:create", "fleet:update", "fleet:view", "order:view"}},
			},
			"driver": testUser,
			"client": {
				ID:       uuid.New(),
				Username: "client",
				Role:     models.Role{Name: models.RoleClient, Permissions: []string{"order:create", "order:view_own"}},
			},
			"supervisor without permissions": {
				ID:       uuid.New(),
				Username: "supervisor",
				Role:     models.Role{Name: models.RoleSupervisor},
			},
		}

		for name, user := range users {
			t.Run(name, func(t *testing.T) {
				s := newSigner(t, 15*time.Minute)

				issued, err := s.Issue(user)
				require.NoError(t, err)
				require.NotEmpty(t, issued.Value)
				require.WithinDuration(t, time.Now().Add(15*time.Minute), issued.ExpiresAt, time.Second)

				claims, err := s.Verify(issued.Value)
				require.NoError(t, err, "just issued token should verify")

				assert.Equal(t, user.Username, claims.Subject, "subject should be the username")
				assert.Equal(t, user.ID, claims.UserID)
				assert.Equal(t, user.Role.Name, claims.Role)
				assert.Equal(t, user.ZoneID, claims.ZoneID)
				assert.Equal(t, user.VehicleType, claims.FleetType)

				wantScope := strings.Join(user.Role.Permissions, " ")
				if len(user.Role.Permissions) == 0 {
					wantScope = "read"
				}
				assert.Equal(t, wantScope, claims.Scope, "scope should be permissions joined by spaces")

				assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second)
				assert.WithinDuration(t, issued.ExpiresAt, claims.ExpiresAt.Time, 0)
			})
		}
	})

	t.Run("verify failures", func(t *testing.T) {
		t.Run("expired token", func(t *testing.T) {
			s := newSigner(t, -time.Minute)

			issued, err := s.Issue(testUser)
			require.NoError(t, err)

			_, err = s.Verify(issued.Value)
			require.Error(t, err)
			require.ErrorIs(t, err, apperrors.ErrTokenExpired)
		})

		t.Run("token signed with different key", func(t *testing.T) {
			otherPrivate, _ := testutil.GenerateKeypair(t)
			other, err := NewSigner(SignerConfig{PrivateKeyPEM: otherPrivate})
			require.NoError(t, err)

			issued, err := other.Issue(testUser)
			require.NoError(t, err)

			_, err = newSigner(t, time.Minute).Verify(issued.Value)
			require.Error(t, err)
			require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
		})

		t.Run("tampered payload", func(t *testing.T) {
			s := newSigner(t, time.Minute)

			issued, err := s.Issue(testUser)
			require.NoError(t, err)

			// Flip a byte in the middle of the payload segment
			parts := strings.Split(issued.Value, ".")
			require.Len(t, parts, 3)
			payload := []byte(parts[1])
			mid := len(payload) / 2
			if payload[mid] == 'A' {
				payload[mid] = 'B'
			} else {
				payload[mid] = 'A'
			}
			tampered := parts[0] + "." + string(payload) + "." + parts[2]

			_, err = s.Verify(tampered)
			require.Error(t, err)
			require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
		})

		t.Run("wrong signing algorithm", func(t *testing.T) {
			// HS256 token keyed with bytes of the public key PEM: must be
			// rejected on method, not signature
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   testUser.Username,
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
				UserID: testUser.ID,
			})
			value, err := token.SignedString(publicPEM)
			require.NoError(t, err)

			_, err = newSigner(t, time.Minute).Verify(value)
			require.Error(t, err)
			require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
		})

		t.Run("malformed token", func(t *testing.T) {
			_, err := newSigner(t, time.Minute).Verify("definitely.not.a.token")
			require.Error(t, err)
			require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
		})
	})

	t.Run("verifier only signer", func(t *testing.T) {
		issuer := newSigner(t, time.Minute)
		verifier, err := NewSigner(SignerConfig{PublicKeyPEM: publicPEM})
		require.NoError(t, err, "public key alone should be enough to verify")

		issued, err := issuer.Issue(testUser)
		require.NoError(t, err)

		claims, err := verifier.Verify(issued.Value)
		require.NoError(t, err, "verifier should accept tokens issued elsewhere")
		require.Equal(t, testUser.Username, claims.Subject)

		_, err = verifier.Issue(testUser)
		require.Error(t, err, "issuing without a private key should fail")
		require.ErrorIs(t, err, apperrors.ErrSignerNotConfigured)
	})
}
