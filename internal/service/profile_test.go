package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/neoori/profile-api/internal/apperror"
	"github.com/neoori/profile-api/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeProfileRepo is an in-memory repository.ProfileRepository. Like the
// document store it returns independent copies of what it holds.
type fakeProfileRepo struct {
	profiles map[string]model.Profile
	// set to a non-nil error to simulate a database failure
	replaceErr error
	creates    int
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[string]model.Profile)}
}

func (f *fakeProfileRepo) GetByUserID(_ context.Context, userID string) (*model.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, apperror.NotFound("profile", userID)
	}
	return cloneProfile(p), nil
}

func (f *fakeProfileRepo) Create(_ context.Context, profile *model.Profile) error {
	if _, ok := f.profiles[profile.UserID]; ok {
		return apperror.Conflict("profile", profile.UserID)
	}
	f.creates++
	f.profiles[profile.UserID] = *cloneProfile(*profile)
	return nil
}

func (f *fakeProfileRepo) Replace(_ context.Context, profile *model.Profile) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	if _, ok := f.profiles[profile.UserID]; !ok {
		return apperror.NotFound("profile", profile.UserID)
	}
	f.profiles[profile.UserID] = *cloneProfile(*profile)
	return nil
}

// cloneProfile copies the collections a service mutates in place.
func cloneProfile(p model.Profile) *model.Profile {
	p.Education = append([]model.Education(nil), p.Education...)
	p.Experiences = append([]model.Experience(nil), p.Experiences...)
	p.Skills = append([]model.Skill(nil), p.Skills...)
	p.Documents = append([]model.Document(nil), p.Documents...)
	p.GameProgress = append([]model.GameProgress(nil), p.GameProgress...)
	p.RecentActivities = append([]model.Activity(nil), p.RecentActivities...)
	if p.Awards != nil {
		awards := *p.Awards
		awards.Games = append([]string(nil), awards.Games...)
		p.Awards = &awards
	}
	if p.Preferences != nil {
		prefs := *p.Preferences
		p.Preferences = &prefs
	}
	return &p
}

func newTestProfileService(t *testing.T) (*ProfileService, *fakeProfileRepo, *fakeAccountRepo) {
	t.Helper()
	profiles := newFakeProfileRepo()
	accounts := newFakeAccountRepo()
	return NewProfileService(profiles, accounts, newTestLogger()), profiles, accounts
}

func ptr[T any](v T) *T { return &v }

func testDocument(name string) DocumentInput {
	return DocumentInput{
		Name:     name,
		Size:     1024,
		Path:     "documents/u1/cv/" + name,
		URL:      "http://localhost:3000/api/files/documents/u1/cv/" + name,
		Category: "cv",
		MimeType: "application/pdf",
	}
}

// =========================================================================
// GET OR CREATE / UPDATE
// =========================================================================

func TestGetOrCreate_FreshProfile(t *testing.T) {
	svc, profiles, accounts := newTestProfileService(t)
	profileID := "5f0c7c8e-profile"
	accounts.accounts["u1"] = &model.Account{ID: "u1", Email: "a@x.com", ProfileID: &profileID}

	p, err := svc.GetOrCreate(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if p.ID != profileID {
		t.Errorf("ID = %q, want the account's profile id", p.ID)
	}
	if p.Credits != 0 || p.Education == nil || len(p.Education) != 0 {
		t.Errorf("fresh profile = %+v", p)
	}
	if *p.Preferences != model.DefaultPreferences() {
		t.Errorf("Preferences = %+v", *p.Preferences)
	}

	if _, err := svc.GetOrCreate(context.Background(), "u1"); err != nil {
		t.Fatalf("second GetOrCreate() error = %v", err)
	}
	if profiles.creates != 1 {
		t.Errorf("profile created %d times, want 1", profiles.creates)
	}
}

func TestGetOrCreate_NoAccountFallsBackToUserID(t *testing.T) {
	svc, _, _ := newTestProfileService(t)

	p, err := svc.GetOrCreate(context.Background(), "orphan")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if p.ID != "orphan" {
		t.Errorf("ID = %q, want orphan", p.ID)
	}
}

func TestGetOrCreate_NormalizesStoredDocument(t *testing.T) {
	svc, profiles, _ := newTestProfileService(t)
	profiles.profiles["old"] = model.Profile{ID: "old", UserID: "old", Credits: 30}

	p, err := svc.GetOrCreate(context.Background(), "old")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if p.Skills == nil || p.RecentActivities == nil || p.Preferences == nil {
		t.Errorf("profile not normalized: %+v", p)
	}
	if p.Credits != 30 {
		t.Errorf("Credits = %d, want 30", p.Credits)
	}
}

func TestUpdate_PartialMerge(t *testing.T) {
	svc, _, _ := newTestProfileService(t)
	ctx := context.Background()

	if _, err := svc.Update(ctx, "u1", ProfileUpdate{Bio: ptr("Hello <b>world</b>"), Phone: ptr("0600")}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	p, err := svc.Update(ctx, "u1", ProfileUpdate{Location: &model.Location{City: "Paris"}})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if p.Bio == nil || *p.Bio != "Hello world" {
		t.Errorf("Bio = %v, want markup stripped", p.Bio)
	}
	if p.Phone == nil || *p.Phone != "0600" {
		t.Errorf("Phone lost on a later update: %v", p.Phone)
	}
	if p.Location == nil || p.Location.City != "Paris" {
		t.Errorf("Location = %+v", p.Location)
	}

	p, _ = svc.Update(ctx, "u1", ProfileUpdate{Bio: ptr("   ")})
	if p.Bio != nil {
		t.Errorf("blank bio should clear the field, got %q", *p.Bio)
	}
}

func TestUpdate_KeepsApostrophes(t *testing.T) {
	svc, _, _ := newTestProfileService(t)

	p, err := svc.Update(context.Background(), "u1", ProfileUpdate{CareerPath: ptr("Ingénieur d'études & R&D")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if *p.CareerPath != "Ingénieur d'études & R&D" {
		t.Errorf("CareerPath = %q", *p.CareerPath)
	}
}

func TestUpdatePreferences(t *testing.T) {
	svc, _, _ := newTestProfileService(t)
	ctx := context.Background()

	prefs := model.Preferences{Theme: model.ThemeDark, Language: "en"}
	p, err := svc.UpdatePreferences(ctx, "u1", prefs)
	if err != nil {
		t.Fatalf("UpdatePreferences() error = %v", err)
	}
	if *p.Preferences != prefs {
		t.Errorf("Preferences = %+v, want full replace", *p.Preferences)
	}

	_, err = svc.UpdatePreferences(ctx, "u1", model.Preferences{Theme: "neon"})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("UpdatePreferences(bad theme) error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// SUB-RESOURCES
// =========================================================================

func TestEducationLifecycle(t *testing.T) {
	svc, profiles, _ := newTestProfileService(t)
	ctx := context.Background()

	p, err := svc.AddEducation(ctx, "u1", EducationInput{Degree: ptr("Master"), School: ptr("EPITA"), Year: ptr("2020")})
	if err != nil {
		t.Fatalf("AddEducation() error = %v", err)
	}
	if profiles.creates != 1 {
		t.Error("AddEducation() did not create the missing profile")
	}
	if len(p.Education) != 1 || p.Education[0].ID == "" || p.Education[0].CreatedAt.IsZero() {
		t.Fatalf("Education = %+v", p.Education)
	}
	id := p.Education[0].ID

	p, err = svc.UpdateEducation(ctx, "u1", id, EducationInput{Field: ptr("Computer science"), Degree: ptr("")})
	if err != nil {
		t.Fatalf("UpdateEducation() error = %v", err)
	}
	if e := p.Education[0]; e.Field != "Computer science" || e.Degree != "Master" || e.School != "EPITA" {
		t.Errorf("after update = %+v", e)
	}

	if _, err := svc.UpdateEducation(ctx, "u1", "missing", EducationInput{}); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateEducation(missing) error = %v, want ErrNotFound", err)
	}

	p, err = svc.DeleteEducation(ctx, "u1", id)
	if err != nil {
		t.Fatalf("DeleteEducation() error = %v", err)
	}
	if len(p.Education) != 0 {
		t.Errorf("Education = %+v after delete", p.Education)
	}
	if _, err := svc.DeleteEducation(ctx, "u1", id); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteEducation(again) error = %v, want ErrNotFound", err)
	}
}

func TestAddEducation_RequiresFields(t *testing.T) {
	svc, profiles, _ := newTestProfileService(t)

	_, err := svc.AddEducation(context.Background(), "u1", EducationInput{Degree: ptr("Master")})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("AddEducation() error = %v, want ErrValidation", err)
	}
	if profiles.creates != 0 {
		t.Error("invalid input still created a profile")
	}
}

func TestExperienceLifecycle(t *testing.T) {
	svc, _, _ := newTestProfileService(t)
	ctx := context.Background()

	p, err := svc.AddExperience(ctx, "u1", ExperienceInput{Title: ptr("Dev"), Company: ptr("Acme"), Period: ptr("2021-2023"), Type: ptr("CDI")})
	if err != nil {
		t.Fatalf("AddExperience() error = %v", err)
	}
	id := p.Experiences[0].ID

	p, err = svc.UpdateExperience(ctx, "u1", id, ExperienceInput{Company: ptr("Acme Corp"), Location: ptr("Lyon")})
	if err != nil {
		t.Fatalf("UpdateExperience() error = %v", err)
	}
	if e := p.Experiences[0]; e.Company != "Acme Corp" || e.Location != "Lyon" || e.Title != "Dev" || e.Type != "CDI" {
		t.Errorf("after update = %+v", e)
	}

	if _, err := svc.DeleteExperience(ctx, "u1", "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteExperience(missing) error = %v, want ErrNotFound", err)
	}
	p, err = svc.DeleteExperience(ctx, "u1", id)
	if err != nil || len(p.Experiences) != 0 {
		t.Errorf("DeleteExperience() = %+v, %v", p.Experiences, err)
	}
}

func TestSkillLifecycle(t *testing.T) {
	svc, _, _ := newTestProfileService(t)
	ctx := context.Background()

	if _, err := svc.AddSkill(ctx, "u1", SkillInput{Name: ptr("Go")}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("AddSkill(no level) error = %v, want ErrValidation", err)
	}
	if _, err := svc.AddSkill(ctx, "u1", SkillInput{Name: ptr("Go"), Level: ptr(101)}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("AddSkill(level 101) error = %v, want ErrValidation", err)
	}

	p, err := svc.AddSkill(ctx, "u1", SkillInput{Name: ptr("Go"), Level: ptr(0)})
	if err != nil {
		t.Fatalf("AddSkill() error = %v", err)
	}
	id := p.Skills[0].ID

	p, err = svc.UpdateSkill(ctx, "u1", id, SkillInput{Level: ptr(80)})
	if err != nil {
		t.Fatalf("UpdateSkill() error = %v", err)
	}
	if s := p.Skills[0]; s.Level != 80 || s.Name != "Go" {
		t.Errorf("after update = %+v", s)
	}

	if _, err := svc.UpdateSkill(ctx, "u1", id, SkillInput{Level: ptr(-1)}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("UpdateSkill(level -1) error = %v, want ErrValidation", err)
	}
	if _, err := svc.DeleteSkill(ctx, "u1", id); err != nil {
		t.Errorf("DeleteSkill() error = %v", err)
	}
}

func TestDocuments(t *testing.T) {
	svc, profiles, _ := newTestProfileService(t)
	ctx := context.Background()

	doc, err := svc.AddDocument(ctx, "u1", testDocument("CV.PDF"))
	if err != nil {
		t.Fatalf("AddDocument() error = %v", err)
	}
	if doc.ID == "" || doc.Type != "pdf" || doc.UploadedAt.IsZero() {
		t.Errorf("document = %+v", doc)
	}

	removed, p, err := svc.DeleteDocument(ctx, "u1", doc.ID)
	if err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	if removed.Path != "documents/u1/cv/CV.PDF" {
		t.Errorf("removed = %+v", removed)
	}
	if len(p.Documents) != 0 || len(profiles.profiles["u1"].Documents) != 0 {
		t.Error("document still listed after delete")
	}

	if _, _, err := svc.DeleteDocument(ctx, "u1", doc.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteDocument(again) error = %v, want ErrNotFound", err)
	}
}

func TestSaveGameProgress(t *testing.T) {
	svc, _, _ := newTestProfileService(t)
	ctx := context.Background()

	first, err := svc.SaveGameProgress(ctx, "u1", "quiz-1", GameProgressInput{
		GameType:        ptr("personality"),
		CurrentQuestion: ptr(1),
		TotalQuestions:  ptr(10),
		Answers:         map[string]any{"q1": "a"},
	})
	if err != nil {
		t.Fatalf("SaveGameProgress() error = %v", err)
	}
	if first.StartedAt.IsZero() || first.Completed {
		t.Errorf("first save = %+v", first)
	}

	svc.now = func() time.Time { return first.LastUpdatedAt.Add(time.Minute) }
	second, err := svc.SaveGameProgress(ctx, "u1", "quiz-1", GameProgressInput{Completed: ptr(true), Score: ptr(75.0)})
	if err != nil {
		t.Fatalf("SaveGameProgress() error = %v", err)
	}
	if !second.StartedAt.Equal(first.StartedAt) {
		t.Errorf("StartedAt moved from %v to %v", first.StartedAt, second.StartedAt)
	}
	if !second.LastUpdatedAt.After(first.LastUpdatedAt) {
		t.Error("LastUpdatedAt not advanced")
	}
	if second.GameType != "personality" || second.Answers["q1"] != "a" || *second.Score != 75 {
		t.Errorf("merged progress = %+v", second)
	}

	if _, err := svc.SaveGameProgress(ctx, "u1", " ", GameProgressInput{}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("SaveGameProgress(blank id) error = %v, want ErrValidation", err)
	}
}

func TestMutate_SaveFailure(t *testing.T) {
	svc, profiles, _ := newTestProfileService(t)
	if _, err := svc.GetOrCreate(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	profiles.replaceErr = errors.New("connection reset")

	_, err := svc.AddSkill(context.Background(), "u1", SkillInput{Name: ptr("Go"), Level: ptr(50)})
	if err == nil || errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("AddSkill() error = %v, want internal error", err)
	}
}

// =========================================================================
// CREDITS
// =========================================================================

func TestCredits_FirstDocumentOnce(t *testing.T) {
	svc, profiles, _ := newTestProfileService(t)
	ctx := context.Background()

	if _, err := svc.AddDocument(ctx, "u1", testDocument("a.pdf")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddDocument(ctx, "u1", testDocument("b.pdf")); err != nil {
		t.Fatal(err)
	}

	p := profiles.profiles["u1"]
	if p.Credits != 15 {
		t.Errorf("Credits = %d, want 15", p.Credits)
	}
	if len(p.RecentActivities) != 1 || p.RecentActivities[0].Text != textFirstDocument || p.RecentActivities[0].Type != model.ActivityTask {
		t.Errorf("RecentActivities = %+v", p.RecentActivities)
	}

	// Deleting and re-uploading does not earn the award again.
	for _, d := range p.Documents {
		if _, _, err := svc.DeleteDocument(ctx, "u1", d.ID); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.AddDocument(ctx, "u1", testDocument("c.pdf")); err != nil {
		t.Fatal(err)
	}
	if got := profiles.profiles["u1"].Credits; got != 15 {
		t.Errorf("Credits after re-upload = %d, want 15", got)
	}
}

func TestCredits_ProfileComplete(t *testing.T) {
	svc, profiles, _ := newTestProfileService(t)
	ctx := context.Background()

	steps := []func() error{
		func() error {
			_, err := svc.Update(ctx, "u1", ProfileUpdate{Bio: ptr("bio"), Location: &model.Location{Address: "1 rue de Rivoli"}})
			return err
		},
		func() error {
			_, err := svc.AddEducation(ctx, "u1", EducationInput{Degree: ptr("BTS"), School: ptr("Lycée"), Year: ptr("2019")})
			return err
		},
		func() error {
			_, err := svc.AddExperience(ctx, "u1", ExperienceInput{Title: ptr("Dev"), Company: ptr("Acme"), Period: ptr("2020")})
			return err
		},
		func() error {
			_, err := svc.AddSkill(ctx, "u1", SkillInput{Name: ptr("Go"), Level: ptr(60)})
			return err
		},
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if got := profiles.profiles["u1"].Credits; got != 0 {
		t.Fatalf("Credits before any document = %d, want 0", got)
	}

	if _, err := svc.AddDocument(ctx, "u1", testDocument("cv.pdf")); err != nil {
		t.Fatal(err)
	}
	p := profiles.profiles["u1"]
	if p.Credits != 35 {
		t.Errorf("Credits = %d, want 35 (document + complete profile)", p.Credits)
	}
	if len(p.RecentActivities) != 2 || p.RecentActivities[0].Text != textFirstDocument || p.RecentActivities[1].Text != textProfileComplete {
		t.Errorf("RecentActivities = %+v", p.RecentActivities)
	}

	if _, err := svc.CheckAndAwardCredits(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if got := profiles.profiles["u1"].Credits; got != 35 {
		t.Errorf("Credits after re-check = %d, want 35", got)
	}
}

func TestCredits_NotGrantedByPlainEdits(t *testing.T) {
	svc, profiles, _ := newTestProfileService(t)
	ctx := context.Background()

	if _, err := svc.AddDocument(ctx, "u1", testDocument("cv.pdf")); err != nil {
		t.Fatal(err)
	}

	// Completing the profile after the upload earns nothing by itself.
	if _, err := svc.Update(ctx, "u1", ProfileUpdate{Bio: ptr("bio"), Location: &model.Location{City: "Lyon"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddEducation(ctx, "u1", EducationInput{Degree: ptr("BTS"), School: ptr("Lycée"), Year: ptr("2019")}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddExperience(ctx, "u1", ExperienceInput{Title: ptr("Dev"), Company: ptr("Acme"), Period: ptr("2020")}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddSkill(ctx, "u1", SkillInput{Name: ptr("Go"), Level: ptr(60)}); err != nil {
		t.Fatal(err)
	}

	p := profiles.profiles["u1"]
	if p.Credits != CreditsFirstDocument {
		t.Errorf("Credits after edits = %d, want %d", p.Credits, CreditsFirstDocument)
	}
	if p.Awards.ProfileComplete {
		t.Error("ProfileComplete awarded by a plain edit")
	}
	if len(p.RecentActivities) != 1 || p.RecentActivities[0].Text != textFirstDocument {
		t.Errorf("RecentActivities = %+v", p.RecentActivities)
	}

	// An explicit check grants the pending award.
	if _, err := svc.CheckAndAwardCredits(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	p = profiles.profiles["u1"]
	if p.Credits != CreditsFirstDocument+CreditsProfileComplete {
		t.Errorf("Credits after check = %d, want %d", p.Credits, CreditsFirstDocument+CreditsProfileComplete)
	}
	if p.RecentActivities[0].Text != textProfileComplete {
		t.Errorf("latest activity = %+v", p.RecentActivities[0])
	}
}

func TestCredits_CompletedGames(t *testing.T) {
	svc, profiles, _ := newTestProfileService(t)
	ctx := context.Background()

	done := GameProgressInput{Completed: ptr(true)}
	for _, id := range []string{"quiz-1", "quiz-2", "quiz-1"} {
		if _, err := svc.SaveGameProgress(ctx, "u1", id, done); err != nil {
			t.Fatalf("SaveGameProgress(%s) error = %v", id, err)
		}
	}
	if _, err := svc.SaveGameProgress(ctx, "u1", "quiz-3", GameProgressInput{Completed: ptr(false)}); err != nil {
		t.Fatal(err)
	}

	p := profiles.profiles["u1"]
	if p.Credits != 30 {
		t.Errorf("Credits = %d, want 30", p.Credits)
	}
	if len(p.Awards.Games) != 2 {
		t.Errorf("Awards.Games = %v", p.Awards.Games)
	}
	if !strings.Contains(p.RecentActivities[0].Text, `"quiz-2"`) || p.RecentActivities[0].Type != model.ActivityGame {
		t.Errorf("latest activity = %+v", p.RecentActivities[0])
	}
}

func TestCredits_FeedCapped(t *testing.T) {
	p := &model.Profile{Awards: &model.CreditAwards{}}
	for i := 0; i < 12; i++ {
		p.GameProgress = append(p.GameProgress, model.GameProgress{GameID: "g" + string(rune('a'+i)), Completed: true})
	}
	awardCredits(p, time.Now())

	if p.Credits != 12*CreditsCompletedGame {
		t.Errorf("Credits = %d", p.Credits)
	}
	if len(p.RecentActivities) != model.MaxRecentActivities {
		t.Errorf("feed length = %d, want %d", len(p.RecentActivities), model.MaxRecentActivities)
	}
}

func TestCredits_LegacyProfile(t *testing.T) {
	// A profile written before award flags existed: its feed already shows
	// the document and game awards, and the completeness award under the
	// text the old code never recognised.
	p := &model.Profile{
		Credits:     50,
		Bio:         ptr("bio"),
		Location:    &model.Location{City: "Nantes"},
		Education:   []model.Education{{ID: "e"}},
		Experiences: []model.Experience{{ID: "x"}},
		Skills:      []model.Skill{{ID: "s"}},
		Documents:   []model.Document{{ID: "d"}},
		GameProgress: []model.GameProgress{
			{GameID: "g1", GameType: "riasec", Completed: true},
			{GameID: "g2", Completed: true},
		},
		RecentActivities: []model.Activity{
			{Type: model.ActivityGame, Text: `Vous avez gagné 15 crédits pour avoir complété le test "riasec"`},
			{Type: model.ActivityTask, Text: textProfileComplete},
			{Type: model.ActivityTask, Text: textFirstDocument},
		},
	}

	if !awardCredits(p, time.Now()) {
		t.Fatal("awardCredits() reported no change for a legacy profile")
	}
	if p.Awards == nil || !p.Awards.FirstDocument || !p.Awards.ProfileComplete {
		t.Fatalf("Awards = %+v", p.Awards)
	}
	// Only g2 was never rewarded.
	if p.Credits != 65 {
		t.Errorf("Credits = %d, want 65", p.Credits)
	}
	if !p.Awards.HasGame("g1") || !p.Awards.HasGame("g2") {
		t.Errorf("Awards.Games = %v", p.Awards.Games)
	}

	if awardCredits(p, time.Now()) {
		t.Error("second evaluation changed the profile")
	}
}
