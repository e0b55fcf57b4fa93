package scoring

import (
	"sort"

	"offer-recommendation-api/internal/models"
	"offer-recommendation-api/internal/persona"
)

// ReasonTrending is the fixed match reason attached by the fallback regime.
const ReasonTrending = "Trending Offer"

const (
	personalizedBase          = 0.3
	personalizedCategoryBonus = 0.4
	personalizedFrequencyStep = 0.1
	personalizedFrequencyCap  = 0.3

	fallbackDefaultScore = 50.0
)

// ScorePersonalized ranks offers for a shopper with purchase history using
// the [0, 1] personalized regime: a flat base, a bonus when the offer's
// category appears in the union of purchased and inferred-interest
// categories, and a capped frequency bonus per prior purchase in that
// category. Ties keep catalog order.
func ScorePersonalized(history []models.PurchaseHistoryItem, offers []models.ActiveOffer, topK int) []models.ScoredOffer {
	if len(offers) == 0 {
		return []models.ScoredOffer{}
	}

	// Purchase counts are unit-weighted: buying two of something counts
	// twice toward that category's frequency bonus.
	categoryCounts := make(map[string]int)
	for _, item := range history {
		categoryCounts[persona.Normalize(item.Category)] += item.Quantity
	}

	interesting := make(map[string]bool)
	for cat := range categoryCounts {
		interesting[cat] = true
	}
	for _, cat := range persona.InferInterests(history) {
		interesting[cat] = true
	}

	scored := make([]models.ScoredOffer, 0, len(offers))
	for _, offer := range offers {
		cat := persona.Normalize(offer.Category)
		score := personalizedBase
		if interesting[cat] {
			score += personalizedCategoryBonus
		}
		freq := float64(categoryCounts[cat]) * personalizedFrequencyStep
		if freq > personalizedFrequencyCap {
			freq = personalizedFrequencyCap
		}
		score += freq
		score = clamp(score, 0, 1)

		scored = append(scored, models.ScoredOffer{
			ActiveOffer:    offer,
			RelevanceScore: score,
			IsPersonalized: true,
		})
	}

	return rank(scored, topK)
}

// ScoreFallback ranks offers without usable personalization, on a 0-100
// scale: default offers start at 50 and every offer adds its discount
// percentage. Used for cold starts and failed AI invocations.
func ScoreFallback(offers []models.ActiveOffer, topK int) []models.ScoredOffer {
	if len(offers) == 0 {
		return []models.ScoredOffer{}
	}

	scored := make([]models.ScoredOffer, 0, len(offers))
	for _, offer := range offers {
		score := offer.DiscountPercentage
		if offer.IsDefault {
			score += fallbackDefaultScore
		}
		scored = append(scored, models.ScoredOffer{
			ActiveOffer:    offer,
			RelevanceScore: score,
			MatchReason:    ReasonTrending,
			IsPersonalized: false,
		})
	}

	return rank(scored, topK)
}

// rank sorts descending by score (stable, preserving catalog order on ties),
// drops duplicate offer ids, and truncates to topK.
func rank(scored []models.ScoredOffer, topK int) []models.ScoredOffer {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RelevanceScore > scored[j].RelevanceScore
	})

	seen := make(map[int64]bool)
	out := scored[:0]
	for _, s := range scored {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
		if topK > 0 && len(out) == topK {
			break
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
