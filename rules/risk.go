package rules

import (
	"fmt"
	"math"
	"time"

	"github.com/feedsieve/feedsieve/timeline"
)

// Tier labels for the composite risk score.
const (
	TierChill        = "Chill"
	TierMeh          = "Meh"
	TierSketch       = "Sketch"
	TierDumpsterFire = "Dumpster fire"
)

// Assessment is the advisory risk verdict for one account.
type Assessment struct {
	Score float64
	Tier  string
}

func (a Assessment) String() string {
	return fmt.Sprintf("risk %.2f (%s)", a.Score, a.Tier)
}

// RiskScore computes the weighted composite risk heuristic for an account.
// Accounts the viewer follows pass automatically. The score is advisory and
// display-oriented; RiskSuppresses derives the secondary suppression verdict
// from it.
func RiskScore(u *timeline.UserRecord, cfg *Config) Assessment {
	if u.WeFollow {
		return Assessment{Score: 0, Tier: TierChill}
	}

	score := sharedConnectionsScore(u) +
		ageExpectationScore(u, time.Now()) +
		followRatioScore(u) +
		postRateScore(u) +
		unverifiedScore(u) +
		bioToxicityScore(u, cfg)
	score = math.Min(1, score)

	return Assessment{Score: score, Tier: tierFor(score)}
}

func tierFor(score float64) string {
	switch {
	case score <= 0.15:
		return TierChill
	case score <= 0.30:
		return TierMeh
	case score <= 0.50:
		return TierSketch
	default:
		return TierDumpsterFire
	}
}

// RiskSuppresses is the secondary, more lenient suppression trigger: a very
// high score always suppresses; a merely elevated score suppresses only when
// corroborated by a keyword match or a low-audience condition.
func RiskSuppresses(a Assessment, corroborated bool) bool {
	if a.Score > 0.85 {
		return true
	}
	return a.Score > 0.60 && corroborated
}

// Shared-connections deficit, weight 0.30. Unknown (never fetched) counts as
// no evidence, not as zero connections.
func sharedConnectionsScore(u *timeline.UserRecord) float64 {
	if u.SharedConnections == nil {
		return 0
	}
	switch n := *u.SharedConnections; {
	case n == 0:
		return 0.30
	case n < 3:
		return 0.20
	case n < 10:
		return 0.10
	default:
		return 0
	}
}

// Age-vs-audience deficit, weight 0.25: an account is expected to have
// max(50, months*5) followers; falling far short of that is suspicious.
func ageExpectationScore(u *timeline.UserRecord, now time.Time) float64 {
	if u.CreatedAt == nil {
		return 0
	}
	months := now.Sub(*u.CreatedAt).Hours() / (24 * 30)
	if months < 0 {
		months = 0
	}
	expected := math.Max(50, months*5)
	switch f := float64(u.Followers); {
	case f < 0.2*expected:
		return 0.25
	case f < 0.5*expected:
		return 0.15
	case f < expected:
		return 0.08
	default:
		return 0
	}
}

// Follow-ratio excess, weight 0.20.
func followRatioScore(u *timeline.UserRecord) float64 {
	followers := u.Followers
	if followers < 1 {
		followers = 1
	}
	switch ratio := float64(u.Following) / float64(followers); {
	case ratio > 20:
		return 0.20
	case ratio > 10:
		return 0.15
	case ratio > 5:
		return 0.10
	case ratio > 2:
		return 0.05
	default:
		return 0
	}
}

// Posting-rate-vs-audience excess, weight 0.15.
func postRateScore(u *timeline.UserRecord) float64 {
	switch rate := float64(u.PostCount) / float64(u.Followers+1); {
	case rate > 100:
		return 0.15
	case rate > 50:
		return 0.10
	case rate > 20:
		return 0.05
	default:
		return 0
	}
}

func unverifiedScore(u *timeline.UserRecord) float64 {
	if u.Verified {
		return 0
	}
	return 0.05
}

// Bio keyword toxicity, weight up to 0.05, saturating at three matches.
func bioToxicityScore(u *timeline.UserRecord, cfg *Config) float64 {
	matches := MatchedBannedKeywords(u, cfg)
	return 0.05 * math.Min(1, float64(matches)/3)
}
