package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/neoori/profile-api/internal/apperror"
	"github.com/neoori/profile-api/internal/model"
	"github.com/neoori/profile-api/internal/repository"
)

const MaxSkillLevel = 100

// ProfileUpdate carries the scalar profile fields. Nil fields are left
// untouched.
type ProfileUpdate struct {
	Bio        *string         `json:"bio"        validate:"omitempty,max=2000"`
	Location   *model.Location `json:"location"`
	CareerPath *string         `json:"careerPath" validate:"omitempty,max=500"`
	Phone      *string         `json:"phone"      validate:"omitempty,max=50"`
}

type EducationInput struct {
	Degree      *string `json:"degree"      validate:"omitempty,max=500"`
	School      *string `json:"school"      validate:"omitempty,max=500"`
	Year        *string `json:"year"        validate:"omitempty,max=50"`
	Field       *string `json:"field"       validate:"omitempty,max=500"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type ExperienceInput struct {
	Title       *string `json:"title"       validate:"omitempty,max=500"`
	Company     *string `json:"company"     validate:"omitempty,max=500"`
	Period      *string `json:"period"      validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Location    *string `json:"location"    validate:"omitempty,max=500"`
	Type        *string `json:"type"        validate:"omitempty,max=100"`
}

type SkillInput struct {
	Name     *string `json:"name"     validate:"omitempty,max=200"`
	Level    *int    `json:"level"    validate:"omitempty,min=0,max=100"`
	Category *string `json:"category" validate:"omitempty,max=200"`
}

// DocumentInput describes a file already written to storage.
type DocumentInput struct {
	Name     string
	Size     int64
	Path     string
	URL      string
	Category string
	MimeType string
}

type GameProgressInput struct {
	GameType        *string        `json:"gameType"        validate:"omitempty,max=100"`
	CurrentQuestion *int           `json:"currentQuestion" validate:"omitempty,min=0"`
	TotalQuestions  *int           `json:"totalQuestions"  validate:"omitempty,min=0"`
	Answers         map[string]any `json:"answers"`
	GameData        any            `json:"gameData"`
	Completed       *bool          `json:"completed"`
	Score           *float64       `json:"score"`
}

// AccountLookup resolves the profile key of an account.
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*model.Account, error)
}

// ProfileService owns the profile document of every account. Every write is
// a read-modify-replace of the whole document.
type ProfileService struct {
	profiles repository.ProfileRepository
	accounts AccountLookup
	policy   *bluemonday.Policy
	logger   *slog.Logger
	now      func() time.Time
}

func NewProfileService(profiles repository.ProfileRepository, accounts AccountLookup, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		accounts: accounts,
		policy:   bluemonday.StrictPolicy(),
		logger:   logger,
		now:      time.Now,
	}
}

// GetOrCreate returns the profile of userID, creating it with default
// preferences on first access.
func (s *ProfileService) GetOrCreate(ctx context.Context, userID string) (*model.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required")
	}

	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err == nil {
		profile.Normalize()
		return profile, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/profile: loading profile for %s: %w", userID, err)
	}

	profile = s.newProfile(ctx, userID)
	if err := s.profiles.Create(ctx, profile); err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, fmt.Errorf("service/profile: creating profile for %s: %w", userID, err)
		}
		// Created concurrently by another request.
		profile, err = s.profiles.GetByUserID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("service/profile: reloading profile for %s: %w", userID, err)
		}
	} else {
		s.logger.InfoContext(ctx, "profile created", slog.String("userID", userID))
	}

	profile.Normalize()
	return profile, nil
}

func (s *ProfileService) newProfile(ctx context.Context, userID string) *model.Profile {
	id := userID
	if account, err := s.accounts.GetByID(ctx, userID); err == nil {
		id = account.ProfileKey()
	} else {
		s.logger.WarnContext(ctx, "creating profile without account link",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}

	now := s.now().UTC()
	prefs := model.DefaultPreferences()
	profile := &model.Profile{
		ID:          id,
		UserID:      userID,
		Preferences: &prefs,
		Awards:      &model.CreditAwards{Games: []string{}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	profile.Normalize()
	return profile
}

func (s *ProfileService) save(ctx context.Context, profile *model.Profile) error {
	profile.UpdatedAt = s.now().UTC()
	if err := s.profiles.Replace(ctx, profile); err != nil {
		return fmt.Errorf("service/profile: saving profile for %s: %w", profile.UserID, err)
	}
	return nil
}

// Update merges the provided scalar fields into the profile.
func (s *ProfileService) Update(ctx context.Context, userID string, in ProfileUpdate) (*model.Profile, error) {
	return s.mutate(ctx, userID, func(p *model.Profile) error {
		if in.Bio != nil {
			p.Bio = s.optional(*in.Bio)
		}
		if in.CareerPath != nil {
			p.CareerPath = s.optional(*in.CareerPath)
		}
		if in.Phone != nil {
			p.Phone = s.optional(*in.Phone)
		}
		if in.Location != nil {
			loc := model.Location{
				City:    s.clean(in.Location.City),
				Country: s.clean(in.Location.Country),
				Address: s.clean(in.Location.Address),
			}
			if loc == (model.Location{}) {
				p.Location = nil
			} else {
				p.Location = &loc
			}
		}
		return nil
	})
}

// UpdatePreferences replaces the preferences as a whole.
func (s *ProfileService) UpdatePreferences(ctx context.Context, userID string, prefs model.Preferences) (*model.Profile, error) {
	switch prefs.Theme {
	case model.ThemeLight, model.ThemeDark, model.ThemeAuto:
	case "":
		prefs.Theme = model.ThemeAuto
	default:
		return nil, apperror.ValidationFailed("theme", "Theme must be one of light, dark, auto")
	}
	prefs.Language = strings.TrimSpace(prefs.Language)
	if prefs.Language == "" {
		prefs.Language = model.DefaultPreferences().Language
	}

	profile, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile.Preferences = &prefs
	if err := s.save(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// =========================================================================
// EDUCATION
// =========================================================================

func (s *ProfileService) AddEducation(ctx context.Context, userID string, in EducationInput) (*model.Profile, error) {
	entry := model.Education{
		ID:          uuid.NewString(),
		Degree:      s.value(in.Degree),
		School:      s.value(in.School),
		Year:        s.value(in.Year),
		Field:       s.value(in.Field),
		Description: s.value(in.Description),
		CreatedAt:   s.now().UTC(),
	}
	if entry.Degree == "" || entry.School == "" || entry.Year == "" {
		return nil, apperror.ValidationFailed("", "Degree, school and year are required")
	}

	return s.mutate(ctx, userID, func(p *model.Profile) error {
		p.Education = append(p.Education, entry)
		return nil
	})
}

func (s *ProfileService) UpdateEducation(ctx context.Context, userID, id string, in EducationInput) (*model.Profile, error) {
	return s.mutate(ctx, userID, func(p *model.Profile) error {
		i := slices.IndexFunc(p.Education, func(e model.Education) bool { return e.ID == id })
		if i < 0 {
			return apperror.NotFoundMessage("Education not found")
		}
		e := &p.Education[i]
		s.merge(&e.Degree, in.Degree, true)
		s.merge(&e.School, in.School, true)
		s.merge(&e.Year, in.Year, true)
		s.merge(&e.Field, in.Field, false)
		s.merge(&e.Description, in.Description, false)
		return nil
	})
}

func (s *ProfileService) DeleteEducation(ctx context.Context, userID, id string) (*model.Profile, error) {
	return s.mutate(ctx, userID, func(p *model.Profile) error {
		n := len(p.Education)
		p.Education = slices.DeleteFunc(p.Education, func(e model.Education) bool { return e.ID == id })
		if len(p.Education) == n {
			return apperror.NotFoundMessage("Education not found")
		}
		return nil
	})
}

// =========================================================================
// EXPERIENCES
// =========================================================================

func (s *ProfileService) AddExperience(ctx context.Context, userID string, in ExperienceInput) (*model.Profile, error) {
	entry := model.Experience{
		ID:          uuid.NewString(),
		Title:       s.value(in.Title),
		Company:     s.value(in.Company),
		Period:      s.value(in.Period),
		Description: s.value(in.Description),
		Location:    s.value(in.Location),
		Type:        s.value(in.Type),
		CreatedAt:   s.now().UTC(),
	}
	if entry.Title == "" || entry.Company == "" || entry.Period == "" {
		return nil, apperror.ValidationFailed("", "Title, company and period are required")
	}

	return s.mutate(ctx, userID, func(p *model.Profile) error {
		p.Experiences = append(p.Experiences, entry)
		return nil
	})
}

func (s *ProfileService) UpdateExperience(ctx context.Context, userID, id string, in ExperienceInput) (*model.Profile, error) {
	return s.mutate(ctx, userID, func(p *model.Profile) error {
		i := slices.IndexFunc(p.Experiences, func(e model.Experience) bool { return e.ID == id })
		if i < 0 {
			return apperror.NotFoundMessage("Experience not found")
		}
		e := &p.Experiences[i]
		s.merge(&e.Title, in.Title, true)
		s.merge(&e.Company, in.Company, true)
		s.merge(&e.Period, in.Period, true)
		s.merge(&e.Description, in.Description, false)
		s.merge(&e.Location, in.Location, false)
		s.merge(&e.Type, in.Type, false)
		return nil
	})
}

func (s *ProfileService) DeleteExperience(ctx context.Context, userID, id string) (*model.Profile, error) {
	return s.mutate(ctx, userID, func(p *model.Profile) error {
		n := len(p.Experiences)
		p.Experiences = slices.DeleteFunc(p.Experiences, func(e model.Experience) bool { return e.ID == id })
		if len(p.Experiences) == n {
			return apperror.NotFoundMessage("Experience not found")
		}
		return nil
	})
}

// =========================================================================
// SKILLS
// =========================================================================

func (s *ProfileService) AddSkill(ctx context.Context, userID string, in SkillInput) (*model.Profile, error) {
	entry := model.Skill{
		ID:        uuid.NewString(),
		Name:      s.value(in.Name),
		Category:  s.value(in.Category),
		CreatedAt: s.now().UTC(),
	}
	if entry.Name == "" || in.Level == nil {
		return nil, apperror.ValidationFailed("", "Name and level are required")
	}
	if err := validLevel(*in.Level); err != nil {
		return nil, err
	}
	entry.Level = *in.Level

	return s.mutate(ctx, userID, func(p *model.Profile) error {
		p.Skills = append(p.Skills, entry)
		return nil
	})
}

func (s *ProfileService) UpdateSkill(ctx context.Context, userID, id string, in SkillInput) (*model.Profile, error) {
	if in.Level != nil {
		if err := validLevel(*in.Level); err != nil {
			return nil, err
		}
	}
	return s.mutate(ctx, userID, func(p *model.Profile) error {
		i := slices.IndexFunc(p.Skills, func(e model.Skill) bool { return e.ID == id })
		if i < 0 {
			return apperror.NotFoundMessage("Skill not found")
		}
		e := &p.Skills[i]
		s.merge(&e.Name, in.Name, true)
		s.merge(&e.Category, in.Category, false)
		if in.Level != nil {
			e.Level = *in.Level
		}
		return nil
	})
}

func (s *ProfileService) DeleteSkill(ctx context.Context, userID, id string) (*model.Profile, error) {
	return s.mutate(ctx, userID, func(p *model.Profile) error {
		n := len(p.Skills)
		p.Skills = slices.DeleteFunc(p.Skills, func(e model.Skill) bool { return e.ID == id })
		if len(p.Skills) == n {
			return apperror.NotFoundMessage("Skill not found")
		}
		return nil
	})
}

func validLevel(level int) error {
	if level < 0 || level > MaxSkillLevel {
		return apperror.ValidationFailed("level", "Level must be between 0 and 100")
	}
	return nil
}

// =========================================================================
// DOCUMENTS
// =========================================================================

// AddDocument records an uploaded file and returns its entry.
func (s *ProfileService) AddDocument(ctx context.Context, userID string, in DocumentInput) (*model.Document, error) {
	if in.Name == "" || in.Path == "" || in.URL == "" {
		return nil, apperror.ValidationFailed("", "Document name, path and url are required")
	}

	entry := model.Document{
		ID:         uuid.NewString(),
		Name:       in.Name,
		Type:       strings.TrimPrefix(strings.ToLower(path.Ext(in.Name)), "."),
		Size:       in.Size,
		Path:       in.Path,
		URL:        in.URL,
		Category:   in.Category,
		MimeType:   in.MimeType,
		UploadedAt: s.now().UTC(),
	}

	if _, err := s.mutateAndAward(ctx, userID, func(p *model.Profile) error {
		p.Documents = append(p.Documents, entry)
		return nil
	}); err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteDocument removes the entry and returns it so the caller can remove
// the stored file, together with the updated profile.
func (s *ProfileService) DeleteDocument(ctx context.Context, userID, id string) (*model.Document, *model.Profile, error) {
	var removed model.Document
	profile, err := s.mutate(ctx, userID, func(p *model.Profile) error {
		i := slices.IndexFunc(p.Documents, func(d model.Document) bool { return d.ID == id })
		if i < 0 {
			return apperror.NotFoundMessage("Document not found")
		}
		removed = p.Documents[i]
		p.Documents = slices.Delete(p.Documents, i, i+1)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &removed, profile, nil
}

// =========================================================================
// GAMES
// =========================================================================

// SaveGameProgress creates or updates the progress entry of gameID.
func (s *ProfileService) SaveGameProgress(ctx context.Context, userID, gameID string, in GameProgressInput) (*model.GameProgress, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return nil, apperror.ValidationFailed("gameId", "Game ID is required")
	}

	var saved model.GameProgress
	_, err := s.mutateAndAward(ctx, userID, func(p *model.Profile) error {
		now := s.now().UTC()
		i := slices.IndexFunc(p.GameProgress, func(g model.GameProgress) bool { return g.GameID == gameID })
		if i < 0 {
			p.GameProgress = append(p.GameProgress, model.GameProgress{GameID: gameID, StartedAt: now})
			i = len(p.GameProgress) - 1
		}
		g := &p.GameProgress[i]
		if in.GameType != nil {
			g.GameType = s.clean(*in.GameType)
		}
		if in.CurrentQuestion != nil {
			g.CurrentQuestion = in.CurrentQuestion
		}
		if in.TotalQuestions != nil {
			g.TotalQuestions = in.TotalQuestions
		}
		if in.Answers != nil {
			g.Answers = in.Answers
		}
		if in.GameData != nil {
			g.GameData = in.GameData
		}
		if in.Completed != nil {
			g.Completed = *in.Completed
		}
		if in.Score != nil {
			g.Score = in.Score
		}
		g.LastUpdatedAt = now
		saved = *g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// =========================================================================
// CREDITS
// =========================================================================

// CheckAndAwardCredits grants every credit award the profile qualifies for
// and has not received yet.
//
// WHEN ARE CREDITS EVALUATED?
// Only at the moments a user can earn something: a document upload, a game
// progress save, or an explicit call to this method. Plain profile edits
// never grant credits, even when they complete the profile; the award then
// arrives with the next upload.
//
// The award flags on the profile make repeated evaluation harmless.
func (s *ProfileService) CheckAndAwardCredits(ctx context.Context, userID string) (*model.Profile, error) {
	return s.mutateAndAward(ctx, userID, func(*model.Profile) error { return nil })
}

// mutate loads the profile, applies fn and saves the result.
func (s *ProfileService) mutate(ctx context.Context, userID string, fn func(*model.Profile) error) (*model.Profile, error) {
	profile, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(profile); err != nil {
		return nil, err
	}
	if err := s.save(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// mutateAndAward is mutate with credit awards evaluated after fn, in the
// same write.
func (s *ProfileService) mutateAndAward(ctx context.Context, userID string, fn func(*model.Profile) error) (*model.Profile, error) {
	var before int
	profile, err := s.mutate(ctx, userID, func(p *model.Profile) error {
		if err := fn(p); err != nil {
			return err
		}
		before = p.Credits
		awardCredits(p, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if awarded := profile.Credits - before; awarded > 0 {
		s.logger.InfoContext(ctx, "credits awarded",
			slog.String("userID", userID),
			slog.Int("awarded", awarded),
			slog.Int("credits", profile.Credits),
		)
	}
	return profile, nil
}

// clean strips markup and surrounding whitespace from user text. The
// policy escapes what it keeps, so entities are decoded again before
// storing; the API serves JSON, not HTML.
func (s *ProfileService) clean(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

func (s *ProfileService) value(text *string) string {
	if text == nil {
		return ""
	}
	return s.clean(*text)
}

func (s *ProfileService) optional(text string) *string {
	text = s.clean(text)
	if text == "" {
		return nil
	}
	return &text
}

// merge applies a provided field. Required fields keep their value when the
// update would blank them.
func (s *ProfileService) merge(dst *string, src *string, required bool) {
	if src == nil {
		return
	}
	v := s.clean(*src)
	if v == "" && required {
		return
	}
	*dst = v
}
