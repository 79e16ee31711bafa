package model

import (
	"slices"
	"time"
)

// Activity types recorded in the recent-activity feed.
const (
	ActivityTask    = "task"
	ActivityGame    = "game"
	ActivityCredits = "credits"
)

// MaxRecentActivities is the length cap of Profile.RecentActivities.
const MaxRecentActivities = 10

// Profile is the document-store record holding everything about a user that
// is not needed to authenticate them. It is keyed by UserID; ID is the
// account's profile link.
type Profile struct {
	ID               string         `json:"_id"              bson:"_id"`
	UserID           string         `json:"userId"           bson:"userId"`
	Bio              *string        `json:"bio,omitempty"        bson:"bio,omitempty"`
	Location         *Location      `json:"location,omitempty"   bson:"location,omitempty"`
	CareerPath       *string        `json:"careerPath,omitempty" bson:"careerPath,omitempty"`
	Phone            *string        `json:"phone,omitempty"      bson:"phone,omitempty"`
	Credits          int            `json:"credits"          bson:"credits"`
	Education        []Education    `json:"education"        bson:"education"`
	Experiences      []Experience   `json:"experiences"      bson:"experiences"`
	Skills           []Skill        `json:"skills"           bson:"skills"`
	Documents        []Document     `json:"documents"        bson:"documents"`
	Preferences      *Preferences   `json:"preferences"      bson:"preferences,omitempty"`
	GameProgress     []GameProgress `json:"gameProgress"     bson:"gameProgress"`
	Achievements     []Achievement  `json:"achievements"     bson:"achievements"`
	RecentActivities []Activity     `json:"recentActivities" bson:"recentActivities"`
	Awards           *CreditAwards  `json:"-"                bson:"awards,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"        bson:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"        bson:"updatedAt"`
}

type Location struct {
	City    string `json:"city,omitempty"    bson:"city,omitempty"`
	Country string `json:"country,omitempty" bson:"country,omitempty"`
	Address string `json:"address,omitempty" bson:"address,omitempty"`
}

type Education struct {
	ID          string    `json:"id"                    bson:"id"`
	Degree      string    `json:"degree"                bson:"degree"`
	School      string    `json:"school"                bson:"school"`
	Year        string    `json:"year"                  bson:"year"`
	Field       string    `json:"field,omitempty"       bson:"field,omitempty"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"             bson:"createdAt"`
}

type Experience struct {
	ID          string    `json:"id"                    bson:"id"`
	Title       string    `json:"title"                 bson:"title"`
	Company     string    `json:"company"               bson:"company"`
	Period      string    `json:"period"                bson:"period"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Location    string    `json:"location,omitempty"    bson:"location,omitempty"`
	Type        string    `json:"type,omitempty"        bson:"type,omitempty"`
	CreatedAt   time.Time `json:"createdAt"             bson:"createdAt"`
}

type Skill struct {
	ID        string    `json:"id"                 bson:"id"`
	Name      string    `json:"name"               bson:"name"`
	Level     int       `json:"level"              bson:"level"`
	Category  string    `json:"category,omitempty" bson:"category,omitempty"`
	CreatedAt time.Time `json:"createdAt"          bson:"createdAt"`
}

// Document describes an uploaded file. Path is relative to the storage root;
// URL is the absolute download URL.
type Document struct {
	ID         string    `json:"id"                 bson:"id"`
	Name       string    `json:"name"               bson:"name"`
	Type       string    `json:"type"               bson:"type"`
	Size       int64     `json:"size"               bson:"size"`
	Path       string    `json:"path"               bson:"path"`
	URL        string    `json:"url"                bson:"url"`
	Category   string    `json:"category,omitempty" bson:"category,omitempty"`
	MimeType   string    `json:"mimeType,omitempty" bson:"mimeType,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"         bson:"uploadedAt"`
}

type NotificationPreferences struct {
	Email bool `json:"email" bson:"email"`
	Push  bool `json:"push"  bson:"push"`
}

type PrivacyPreferences struct {
	PublicProfile bool `json:"publicProfile" bson:"publicProfile"`
	ShowEmail     bool `json:"showEmail"     bson:"showEmail"`
}

type Preferences struct {
	Notifications NotificationPreferences `json:"notifications" bson:"notifications"`
	Privacy       PrivacyPreferences      `json:"privacy"       bson:"privacy"`
	Theme         string                  `json:"theme"         bson:"theme"`
	Language      string                  `json:"language"      bson:"language"`
}

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeAuto  = "auto"
)

func DefaultPreferences() Preferences {
	return Preferences{
		Notifications: NotificationPreferences{Email: true, Push: true},
		Privacy:       PrivacyPreferences{PublicProfile: true, ShowEmail: false},
		Theme:         ThemeAuto,
		Language:      "fr",
	}
}

type GameProgress struct {
	GameID          string         `json:"gameId"                    bson:"gameId"`
	GameType        string         `json:"gameType,omitempty"        bson:"gameType,omitempty"`
	CurrentQuestion *int           `json:"currentQuestion,omitempty" bson:"currentQuestion,omitempty"`
	TotalQuestions  *int           `json:"totalQuestions,omitempty"  bson:"totalQuestions,omitempty"`
	Answers         map[string]any `json:"answers,omitempty"         bson:"answers,omitempty"`
	GameData        any            `json:"gameData,omitempty"        bson:"gameData,omitempty"`
	StartedAt       time.Time      `json:"startedAt"                 bson:"startedAt"`
	LastUpdatedAt   time.Time      `json:"lastUpdatedAt"             bson:"lastUpdatedAt"`
	Completed       bool           `json:"completed"                 bson:"completed"`
	Score           *float64       `json:"score,omitempty"           bson:"score,omitempty"`
}

// Label is the name shown for the game in activity texts.
func (g GameProgress) Label() string {
	if g.GameType != "" {
		return g.GameType
	}
	return g.GameID
}

type Achievement struct {
	ID          string    `json:"id"          bson:"id"`
	Title       string    `json:"title"       bson:"title"`
	Description string    `json:"description" bson:"description"`
	Icon        string    `json:"icon"        bson:"icon"`
	UnlockedAt  time.Time `json:"unlockedAt"  bson:"unlockedAt"`
}

type Activity struct {
	ID        string    `json:"id"        bson:"id"`
	Text      string    `json:"text"      bson:"text"`
	Time      string    `json:"time"      bson:"time"`
	Type      string    `json:"type"      bson:"type"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// CreditAwards records which one-time credit grants a profile has received.
// A nil Profile.Awards marks a document written before the flags existed.
type CreditAwards struct {
	FirstDocument   bool     `bson:"firstDocument"`
	ProfileComplete bool     `bson:"profileComplete"`
	Games           []string `bson:"games"`
}

// HasGame reports whether the completion of gameID was already rewarded.
func (a *CreditAwards) HasGame(gameID string) bool {
	return slices.Contains(a.Games, gameID)
}

// Normalize fills every collection and the preferences with their default
// shape so a profile read from the store always serializes completely.
func (p *Profile) Normalize() {
	if p.Education == nil {
		p.Education = []Education{}
	}
	if p.Experiences == nil {
		p.Experiences = []Experience{}
	}
	if p.Skills == nil {
		p.Skills = []Skill{}
	}
	if p.Documents == nil {
		p.Documents = []Document{}
	}
	if p.GameProgress == nil {
		p.GameProgress = []GameProgress{}
	}
	if p.Achievements == nil {
		p.Achievements = []Achievement{}
	}
	if p.RecentActivities == nil {
		p.RecentActivities = []Activity{}
	}
	if p.Preferences == nil {
		prefs := DefaultPreferences()
		p.Preferences = &prefs
	}
	if p.Preferences.Theme == "" {
		p.Preferences.Theme = ThemeAuto
	}
	if p.Preferences.Language == "" {
		p.Preferences.Language = "fr"
	}
	if p.Credits < 0 {
		p.Credits = 0
	}
}

// IsComplete reports whether the profile qualifies for the completeness
// award: a bio, a city or address, and at least one education, experience,
// skill and document.
func (p *Profile) IsComplete() bool {
	hasBio := p.Bio != nil && *p.Bio != ""
	hasLocation := p.Location != nil && (p.Location.City != "" || p.Location.Address != "")
	return hasBio && hasLocation &&
		len(p.Education) > 0 &&
		len(p.Experiences) > 0 &&
		len(p.Skills) > 0 &&
		len(p.Documents) > 0
}

// PushActivity prepends entries to the feed, keeping the newest
// MaxRecentActivities.
func (p *Profile) PushActivity(entries ...Activity) {
	feed := make([]Activity, 0, len(entries)+len(p.RecentActivities))
	feed = append(feed, entries...)
	feed = append(feed, p.RecentActivities...)
	if len(feed) > MaxRecentActivities {
		feed = feed[:MaxRecentActivities]
	}
	p.RecentActivities = feed
}
