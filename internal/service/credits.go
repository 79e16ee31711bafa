package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/neoori/profile-api/internal/model"
)

// Credit amounts granted once per qualifying condition.
const (
	CreditsFirstDocument   = 15
	CreditsProfileComplete = 20
	CreditsCompletedGame   = 15
)

const (
	textFirstDocument   = "Vous avez gagné 15 crédits pour avoir téléchargé un document"
	textProfileComplete = "Vous avez gagné 20 crédits pour avoir complété votre profil"
	textCompletedGame   = `Vous avez gagné 15 crédits pour avoir complété le test "%s"`
)

// awardCredits grants every credit award p qualifies for and has not
// received yet. It records the grants in p.Awards, bumps p.Credits and
// prepends one activity per grant. It reports whether p changed.
func awardCredits(p *model.Profile, now time.Time) bool {
	changed := false
	if p.Awards == nil {
		p.Awards = legacyAwards(p)
		changed = true
	}

	var activities []model.Activity
	grant := func(amount int, kind, text string) {
		p.Credits += amount
		activities = append(activities, model.Activity{
			ID:        uuid.NewString(),
			Text:      text,
			Time:      now.UTC().Format(time.RFC3339),
			Type:      kind,
			CreatedAt: now,
		})
	}

	if len(p.Documents) > 0 && !p.Awards.FirstDocument {
		p.Awards.FirstDocument = true
		grant(CreditsFirstDocument, model.ActivityTask, textFirstDocument)
	}

	if p.IsComplete() && !p.Awards.ProfileComplete {
		p.Awards.ProfileComplete = true
		grant(CreditsProfileComplete, model.ActivityTask, textProfileComplete)
	}

	for _, game := range p.GameProgress {
		if !game.Completed || game.GameID == "" || p.Awards.HasGame(game.GameID) {
			continue
		}
		p.Awards.Games = append(p.Awards.Games, game.GameID)
		grant(CreditsCompletedGame, model.ActivityGame, fmt.Sprintf(textCompletedGame, game.Label()))
	}

	if len(activities) == 0 {
		return changed
	}
	p.PushActivity(activities...)
	return true
}

// legacyAwards reconstructs award flags for a profile stored before the
// flags existed, from the award texts left in its activity feed.
func legacyAwards(p *model.Profile) *model.CreditAwards {
	awards := &model.CreditAwards{Games: []string{}}
	for _, a := range p.RecentActivities {
		switch a.Type {
		case model.ActivityTask:
			if strings.Contains(a.Text, "document") {
				awards.FirstDocument = true
			}
			if strings.Contains(a.Text, "profil complet") || strings.Contains(a.Text, "complété votre profil") {
				awards.ProfileComplete = true
			}
		case model.ActivityGame:
			if !strings.Contains(a.Text, "test") {
				continue
			}
			for _, game := range p.GameProgress {
				if game.GameID == "" || awards.HasGame(game.GameID) {
					continue
				}
				if strings.Contains(a.Text, game.GameID) || (game.GameType != "" && strings.Contains(a.Text, game.GameType)) {
					awards.Games = append(awards.Games, game.GameID)
				}
			}
		}
	}
	return awards
}
