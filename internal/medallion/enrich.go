package medallion

import (
	"math"
	"sort"
	"strings"

	"ShortsIntel/internal/config"
	"ShortsIntel/internal/domain"
)

var positiveWords = []string{
	"love", "best", "amazing", "great", "perfect", "favorite", "gentle",
	"glow", "smooth", "works", "recommend", "holy grail", "obsessed",
	"hydrating", "soothing",
}

var negativeWords = []string{
	"worst", "hate", "breakout", "irritating", "irritation", "burn",
	"waste", "scam", "disappointed", "allergic", "drying", "overpriced",
	"broke me out", "avoid",
}

// Tags that carry no topical signal on short-form video.
var genericTags = map[string]bool{
	"shorts": true, "short": true, "fyp": true, "viral": true,
	"trending": true, "foryou": true, "video": true, "youtube": true,
}

// SentimentScore estimates sentiment of free text on a [-1, 1] scale using
// a fixed lexicon. Zero means neutral or no signal. The same text always
// yields the same score.
func SentimentScore(text string) float64 {
	lower := strings.ToLower(text)
	var pos, neg int
	for _, w := range positiveWords {
		pos += strings.Count(lower, w)
	}
	for _, w := range negativeWords {
		neg += strings.Count(lower, w)
	}
	if pos+neg == 0 {
		return 0
	}
	return round2(float64(pos-neg) / float64(pos+neg))
}

// extractThemes derives topical themes from tags and from core brand themes
// mentioned in the text. Result is deduplicated and sorted.
func extractThemes(obs domain.RawObservation, coreThemes []string) []string {
	seen := make(map[string]bool)
	text := strings.ToLower(obs.Title + " " + obs.Description)

	for _, tag := range obs.Tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" || genericTags[t] {
			continue
		}
		seen[t] = true
	}
	for _, theme := range coreThemes {
		if strings.Contains(text, strings.ToLower(theme)) {
			seen[strings.ToLower(theme)] = true
		}
	}

	themes := make([]string, 0, len(seen))
	for t := range seen {
		themes = append(themes, t)
	}
	sort.Strings(themes)
	return themes
}

// brandSignals extracts which brand terms appear in the observation and
// whether it belongs to the competitive landscape.
func brandSignals(obs domain.RawObservation, brand config.BrandConfig) (mentions []string, competitor bool) {
	text := strings.ToLower(obs.Title + " " + obs.Description + " " + strings.Join(obs.Tags, " "))

	for _, term := range brand.Mentions() {
		if strings.Contains(text, strings.ToLower(term)) {
			mentions = append(mentions, term)
		}
	}
	for _, rival := range brand.Competitors {
		if strings.Contains(text, strings.ToLower(rival)) {
			competitor = true
			break
		}
	}
	if !competitor {
		for _, ch := range brand.CompetitorChannels {
			if ch != "" && ch == obs.ChannelID {
				competitor = true
				break
			}
		}
	}
	return mentions, competitor
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
