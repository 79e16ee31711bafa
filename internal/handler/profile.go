package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/neoori/profile-api/internal/auth"
	"github.com/neoori/profile-api/internal/model"
	"github.com/neoori/profile-api/internal/service"
)

// ProfileHandler serves the /api/users routes. Every route requires an
// authenticated caller and acts on the caller's own profile.
type ProfileHandler struct {
	profiles *service.ProfileService
	accounts *service.AuthService
	files    FileStore
	limits   UploadLimits
	logger   *slog.Logger
}

func NewProfileHandler(
	profiles *service.ProfileService,
	accounts *service.AuthService,
	files FileStore,
	limits UploadLimits,
	logger *slog.Logger,
) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		accounts: accounts,
		files:    files,
		limits:   limits,
		logger:   logger,
	}
}

type preferencesRequest struct {
	Notifications model.NotificationPreferences `json:"notifications"`
	Privacy       model.PrivacyPreferences      `json:"privacy"`
	Theme         string                        `json:"theme"    validate:"omitempty,oneof=light dark auto"`
	Language      string                        `json:"language" validate:"max=10"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" validate:"max=72"`
}

// callerID returns the authenticated user, answering 401 itself when there
// is none.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return userID, true
}

// HTTP: GET /api/users/profile
func (h *ProfileHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	profile, err := h.profiles.GetOrCreate(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, profile)
}

// HTTP: PATCH /api/users/profile
func (h *ProfileHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req service.ProfileUpdate
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := h.profiles.Update(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, profile)
}

// HTTP: PATCH /api/users/profile/preferences
func (h *ProfileHandler) HandleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req preferencesRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := h.profiles.UpdatePreferences(r.Context(), userID, model.Preferences{
		Notifications: req.Notifications,
		Privacy:       req.Privacy,
		Theme:         req.Theme,
		Language:      req.Language,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, profile)
}

// HTTP: POST /api/users/change-password
func (h *ProfileHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.accounts.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password changed successfully")
}

// =========================================================================
// EDUCATION / EXPERIENCES / SKILLS
// =========================================================================

// profileWrite is the shape shared by every sub-resource mutation.
type profileWrite func(r *http.Request, userID string) (*model.Profile, error)

// serveProfileWrite runs write for the caller and answers with the updated
// profile.
func (h *ProfileHandler) serveProfileWrite(w http.ResponseWriter, r *http.Request, status int, write profileWrite) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	profile, err := write(r, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, status, profile)
}

// withBody decodes the request body into a fresh T before calling fn.
func withBody[T any](w http.ResponseWriter, fn func(r *http.Request, userID string, body T) (*model.Profile, error)) profileWrite {
	return func(r *http.Request, userID string) (*model.Profile, error) {
		var body T
		if err := decodeAndValidate(w, r, &body); err != nil {
			return nil, err
		}
		return fn(r, userID, body)
	}
}

// HTTP: POST /api/users/profile/education
func (h *ProfileHandler) HandleAddEducation(w http.ResponseWriter, r *http.Request) {
	h.serveProfileWrite(w, r, http.StatusCreated, withBody(w, func(r *http.Request, userID string, in service.EducationInput) (*model.Profile, error) {
		return h.profiles.AddEducation(r.Context(), userID, in)
	}))
}

// HTTP: PATCH /api/users/profile/education/{id}
func (h *ProfileHandler) HandleUpdateEducation(w http.ResponseWriter, r *http.Request) {
	h.serveProfileWrite(w, r, http.StatusOK, withBody(w, func(r *http.Request, userID string, in service.EducationInput) (*model.Profile, error) {
		return h.profiles.UpdateEducation(r.Context(), userID, chi.URLParam(r, "id"), in)
	}))
}

// HTTP: DELETE /api/users/profile/education/{id}
func (h *ProfileHandler) HandleDeleteEducation(w http.ResponseWriter, r *http.Request) {
	h.serveProfileWrite(w, r, http.StatusOK, func(r *http.Request, userID string) (*model.Profile, error) {
		return h.profiles.DeleteEducation(r.Context(), userID, chi.URLParam(r, "id"))
	})
}

// HTTP: POST /api/users/profile/experiences
func (h *ProfileHandler) HandleAddExperience(w http.ResponseWriter, r *http.Request) {
	h.serveProfileWrite(w, r, http.StatusCreated, withBody(w, func(r *http.Request, userID string, in service.ExperienceInput) (*model.Profile, error) {
		return h.profiles.AddExperience(r.Context(), userID, in)
	}))
}

// HTTP: PATCH /api/users/profile/experiences/{id}
func (h *ProfileHandler) HandleUpdateExperience(w http.ResponseWriter, r *http.Request) {
	h.serveProfileWrite(w, r, http.StatusOK, withBody(w, func(r *http.Request, userID string, in service.ExperienceInput) (*model.Profile, error) {
		return h.profiles.UpdateExperience(r.Context(), userID, chi.URLParam(r, "id"), in)
	}))
}

// HTTP: DELETE /api/users/profile/experiences/{id}
func (h *ProfileHandler) HandleDeleteExperience(w http.ResponseWriter, r *http.Request) {
	h.serveProfileWrite(w, r, http.StatusOK, func(r *http.Request, userID string) (*model.Profile, error) {
		return h.profiles.DeleteExperience(r.Context(), userID, chi.URLParam(r, "id"))
	})
}

// HTTP: POST /api/users/profile/skills
func (h *ProfileHandler) HandleAddSkill(w http.ResponseWriter, r *http.Request) {
	h.serveProfileWrite(w, r, http.StatusCreated, withBody(w, func(r *http.Request, userID string, in service.SkillInput) (*model.Profile, error) {
		return h.profiles.AddSkill(r.Context(), userID, in)
	}))
}

// HTTP: PATCH /api/users/profile/skills/{id}
func (h *ProfileHandler) HandleUpdateSkill(w http.ResponseWriter, r *http.Request) {
	h.serveProfileWrite(w, r, http.StatusOK, withBody(w, func(r *http.Request, userID string, in service.SkillInput) (*model.Profile, error) {
		return h.profiles.UpdateSkill(r.Context(), userID, chi.URLParam(r, "id"), in)
	}))
}

// HTTP: DELETE /api/users/profile/skills/{id}
func (h *ProfileHandler) HandleDeleteSkill(w http.ResponseWriter, r *http.Request) {
	h.serveProfileWrite(w, r, http.StatusOK, func(r *http.Request, userID string) (*model.Profile, error) {
		return h.profiles.DeleteSkill(r.Context(), userID, chi.URLParam(r, "id"))
	})
}

// =========================================================================
// GAMES
// =========================================================================

// HTTP: PUT /api/users/profile/games/{gameId}
func (h *ProfileHandler) HandleSaveGameProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req service.GameProgressInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	progress, err := h.profiles.SaveGameProgress(r.Context(), userID, chi.URLParam(r, "gameId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"gameProgress": progress})
}
