package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/logistio/fleetauth/internal/apperrors"
	"github.com/logistio/fleetauth/internal/handlers/authctx"
	"github.com/logistio/fleetauth/internal/handlers/middleware"
	"github.com/logistio/fleetauth/internal/handlers/render"
	"github.com/logistio/fleetauth/internal/models"
	"github.com/logistio/fleetauth/internal/obs"
	"github.com/logistio/fleetauth/internal/service/auth"
)

// Credential endpoints budget per client address
const (
	credentialRatePerSecond = 1
	credentialRateBurst     = 5
)

type authService interface {
	// Register user
	// Has to return apperrors.ErrRoleNotFound for unknown roles and
	// apperrors.ErrUserAlreadyExists / apperrors.ErrEmailAlreadyExists
	// on uniqueness violations
	Register(ctx context.Context, params auth.RegisterParams) (models.User, error)

	// Login user with username and password
	// Has to return apperrors.ErrInvalidCredentials for unknown user or
	// wrong password, indistinguishably
	Login(ctx context.Context, username string, password string) (models.TokenPair, auth.UserSummary, error)

	// Rotate the refresh token and issue a new pair
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Revoke the refresh token, idempotently
	Logout(ctx context.Context, refresh string) error

	// Verify a bearer access token
	Authenticate(tokenString string) (*auth.AccessTokenClaims, error)

	// Refresh cookie plumbing
	SetRefreshCookie(w http.ResponseWriter, refresh models.IssuedToken)
	ClearRefreshCookie(w http.ResponseWriter)
}

type AuthHandler struct {
	authService authService
}

func NewAuth(auth authService) *AuthHandler {
	return &AuthHandler{authService: auth}
}

func (h *AuthHandler) Handler() http.Handler {
	limited := middleware.RateLimitMiddleware(credentialRatePerSecond, credentialRateBurst)
	withAuth := middleware.AuthMiddleware(h.authService)

	mux := http.NewServeMux()
	mux.Handle("POST /register", limited(http.HandlerFunc(h.register)))
	mux.Handle("POST /login", limited(http.HandlerFunc(h.login)))
	mux.HandleFunc("POST /refresh", h.refresh)
	mux.HandleFunc("POST /logout", h.logout)
	mux.Handle("GET /verify", withAuth(http.HandlerFunc(h.verify)))

	return mux
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Username    string  `json:"username" validate:"required,min=2,max=50"`
		Email       string  `json:"email" validate:"required,email"`
		Password    string  `json:"password" validate:"required,min=8"`
		Role        string  `json:"role" validate:"required"`
		VehicleType *string `json:"vehicle_type" validate:"omitempty,oneof=TRUCK VAN MOTORCYCLE CAR"`
		ZoneID      *int64  `json:"zone_id"`
	}
	type RegisterSuccessResponse struct {
		Message  string    `json:"message"`
		ID       uuid.UUID `json:"id"`
		Username string    `json:"username"`
		Email    string    `json:"email"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	user, err := h.authService.Register(r.Context(), auth.RegisterParams{
		Username:    data.Username,
		Email:       data.Email,
		Password:    data.Password,
		Role:        data.Role,
		VehicleType: data.VehicleType,
		ZoneID:      data.ZoneID,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRoleNotFound):
			render.ServiceError(w, "Role not found", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
		case errors.Is(err, apperrors.ErrEmailAlreadyExists):
			render.ServiceError(w, "Email already exists", http.StatusConflict)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSONWithStatus(w, RegisterSuccessResponse{
		Message:  "User registered successfully",
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}, http.StatusCreated)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	type LoginUser struct {
		Username string `json:"username"`
		Role     string `json:"role"`
		Email    string `json:"email"`
	}
	type LoginSuccessResponse struct {
		Message      string    `json:"message"`
		AccessToken  string    `json:"access_token"`
		RefreshToken string    `json:"refresh_token"`
		User         LoginUser `json:"user"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	pair, user, err := h.authService.Login(r.Context(), data.Username, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			obs.LoginObserved("rejected")
			render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
		default:
			obs.LoginObserved("error")
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	obs.LoginObserved("ok")
	h.authService.SetRefreshCookie(w, pair.Refresh)
	render.JSON(w, LoginSuccessResponse{
		Message:      "Authenticated",
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		User:         LoginUser{Username: user.Username, Role: user.Role, Email: user.Email},
	})
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshSuccessResponse struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}

	refresh, ok := h.refreshFromRequest(r)
	if !ok {
		render.ServiceError(w, "Refresh token required", http.StatusBadRequest)
		return
	}

	pair, err := h.authService.Refresh(r.Context(), refresh)
	if err != nil {
		// All token failures map to the same rejection; the replay case
		// is only counted, not exposed
		if errors.Is(err, apperrors.ErrRefreshTokenRevoked) {
			obs.ReplayObserved()
		}
		switch {
		case errors.Is(err, apperrors.ErrRefreshTokenNotFound),
			errors.Is(err, apperrors.ErrRefreshTokenRevoked),
			errors.Is(err, apperrors.ErrRefreshTokenExpired):
			render.ServiceError(w, "Refresh rejected", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	obs.RotationObserved()
	h.authService.SetRefreshCookie(w, pair.Refresh)
	render.JSON(w, RefreshSuccessResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
	})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	type LogoutSuccessResponse struct {
		Message string `json:"message"`
	}

	// Logout never reports whether the token existed
	if refresh, ok := h.refreshFromRequest(r); ok {
		if err := h.authService.Logout(r.Context(), refresh); err != nil {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	h.authService.ClearRefreshCookie(w)
	render.JSON(w, LogoutSuccessResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request) {
	type VerifySuccessResponse struct {
		Subject   string    `json:"sub"`
		UserID    uuid.UUID `json:"user_id"`
		Role      string    `json:"role"`
		Scope     string    `json:"scope"`
		ZoneID    *int64    `json:"zone_id"`
		FleetType *string   `json:"fleet_type"`
	}

	claims, ok := authctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	render.JSON(w, VerifySuccessResponse{
		Subject:   claims.Subject,
		UserID:    claims.UserID,
		Role:      claims.Role,
		Scope:     claims.Scope,
		ZoneID:    claims.ZoneID,
		FleetType: claims.FleetType,
	})
}

// Cookie first, JSON body as fallback for non-browser clients
func (h *AuthHandler) refreshFromRequest(r *http.Request) (string, bool) {
	if token, ok := auth.RefreshFromCookie(r); ok {
		return token, true
	}

	type RefreshRequest struct {
		RefreshToken string `json:"refresh_token"`
	}

	data, err := render.Bind[RefreshRequest](r)
	if err != nil || data.RefreshToken == "" {
		return "", false
	}
	return data.RefreshToken, true
}
