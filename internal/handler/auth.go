package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/neoori/profile-api/internal/auth"
	"github.com/neoori/profile-api/internal/model"
	"github.com/neoori/profile-api/internal/service"
)

const oauthStateCookie = "oauth_state"

// AuthHandler serves the /api/auth routes.
type AuthHandler struct {
	auth     *service.AuthService
	profiles *service.ProfileService
	github   *auth.GitHubProvider // nil when GitHub login is not configured
	logger   *slog.Logger
}

func NewAuthHandler(
	authService *service.AuthService,
	profiles *service.ProfileService,
	github *auth.GitHubProvider,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:     authService,
		profiles: profiles,
		github:   github,
		logger:   logger,
	}
}

type registerRequest struct {
	Email    string `json:"email"    validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"max=72"`
	Name     string `json:"name"     validate:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// authResponse is the data of every response that signs a client in.
type authResponse struct {
	User         *model.Account `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
}

func newAuthResponse(result *service.AuthResult) authResponse {
	return authResponse{
		User:         result.Account,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}
}

// HandleRegister creates an account.
//
// HTTP: POST /api/auth/register
// BODY: {"email": "...", "password": "...", "name": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.ensureProfile(r, result.Account.ID)
	writeData(w, http.StatusCreated, newAuthResponse(result))
}

// HandleLogin exchanges email and password for a token pair.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, newAuthResponse(result))
}

// HandleRefresh rotates a refresh token.
//
// HTTP: POST /api/auth/refresh
// BODY: {"refreshToken": "..."}
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, pair)
}

// HandleLogout revokes the refresh token in the body, if any. It always
// succeeds for the client.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeAndValidate(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "Logged out successfully")
}

// HandleMe returns the authenticated account.
//
// HTTP: GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	account, err := h.auth.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, account)
}

// HandleGitHubLogin starts the OAuth flow. The state travels in a short
// lived cookie and is checked on the callback.
//
// HTTP: GET /api/auth/github/login
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth/github",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow and answers with the same
// body as a password login.
//
// HTTP: GET /api/auth/github/callback?code=...&state=...
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.WarnContext(r.Context(), "auth callback: invalid OAuth state")
		writeFailure(w, http.StatusBadRequest, "Invalid OAuth state")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/api/auth/github",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.InfoContext(r.Context(), "auth callback: user denied authorization", slog.String("error", errParam))
		writeFailure(w, http.StatusUnauthorized, "Authorization denied")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeFailure(w, http.StatusBadRequest, "Missing OAuth code")
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeFailure(w, http.StatusBadGateway, "Authentication with GitHub failed")
		return
	}

	result, err := h.auth.LoginOrRegisterOAuth(r.Context(), service.OAuthIdentity{
		Provider:  model.ProviderGitHub,
		Subject:   ghUser.Subject(),
		Email:     ghUser.Email,
		Name:      ghUser.DisplayName(),
		AvatarURL: ghUser.AvatarURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if result.Created {
		h.ensureProfile(r, result.Account.ID)
	}
	writeData(w, http.StatusOK, newAuthResponse(result))
}

// ensureProfile creates the profile document of a new account. The profile
// is also created lazily on first access, so a failure here is only logged.
func (h *AuthHandler) ensureProfile(r *http.Request, userID string) {
	if _, err := h.profiles.GetOrCreate(r.Context(), userID); err != nil {
		h.logger.WarnContext(r.Context(), "failed to create profile after registration",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}
}
