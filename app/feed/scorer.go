package feed

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

const MaxScore = 100

var (
	HighTierKeywords   = []string{"transfer", "injury", "match", "prediction", "odds", "betting", "analysis"}
	MediumTierKeywords = []string{"team", "player", "league", "season", "championship", "cup"}
	LowTierKeywords    = []string{"news", "update", "report", "announcement"}

	DefaultTrustedSources = []string{"bbc", "espn", "sky sports", "reuters", "the athletic", "goal.com", "marca", "guardian"}
)

type scoreTier struct {
	keywords []string
	points   int
}

// Scorer computes a 0-100 relevance score. It holds no mutable state, so
// identical input always yields the identical score.
type Scorer struct {
	tiers   []scoreTier
	trusted []string
}

func NewScorer(trustedSources ...string) *Scorer {
	if len(trustedSources) == 0 {
		trustedSources = DefaultTrustedSources
	}

	fold := cases.Fold()
	trusted := make([]string, 0, len(trustedSources))
	for _, s := range trustedSources {
		if s = strings.TrimSpace(s); s != "" {
			trusted = append(trusted, fold.String(s))
		}
	}

	return &Scorer{
		tiers: []scoreTier{
			{keywords: slices.Clone(HighTierKeywords), points: 20},
			{keywords: slices.Clone(MediumTierKeywords), points: 10},
			{keywords: slices.Clone(LowTierKeywords), points: 5},
		},
		trusted: trusted,
	}
}

// Score rates item as of now. Each keyword counts once no matter how often
// it occurs.
func (s *Scorer) Score(item Item, now time.Time) int {
	fold := cases.Fold()
	text := fold.String(item.Title + " " + item.Description)

	score := 0
	for _, tier := range s.tiers {
		for _, keyword := range tier.keywords {
			if strings.Contains(text, keyword) {
				score += tier.points
			}
		}
	}

	score += recencyBonus(item.PublishedAt, now)

	source := fold.String(item.Source)
	for _, trusted := range s.trusted {
		if source != "" && strings.Contains(source, trusted) {
			score += 10
			break
		}
	}

	return min(max(score, 0), MaxScore)
}

func recencyBonus(publishedAt, now time.Time) int {
	age := now.Sub(publishedAt)
	switch {
	case age < time.Hour:
		return 15
	case age < 6*time.Hour:
		return 10
	case age < 24*time.Hour:
		return 5
	default:
		return 0
	}
}
