package persona

import (
	"strings"

	"offer-recommendation-api/internal/models"
)

const (
	// UncategorizedBucket absorbs history items with no category; analysis
	// never rejects an item.
	UncategorizedBucket = "Uncategorized"

	// LabelNewShopper is the fixed label for an empty purchase history.
	LabelNewShopper = "New Shopper"
	// LabelSmartShopper is the rule-based default when history exists.
	LabelSmartShopper = "Smart Shopper"
	// LabelRegularShopper marks a shopper whose AI personalization failed.
	LabelRegularShopper = "Regular Shopper"
)

// InterestRule maps a keyword found in purchase history to the categories a
// shopper is inferred to be interested in.
type InterestRule struct {
	Keyword    string
	Categories []string
}

// InterestRules is the keyword-to-interest mapping applied during scoring.
// Matching is case-insensitive over both category and product name. The
// table is exported so deployments can extend it without code changes.
var InterestRules = []InterestRule{
	{Keyword: "fitness", Categories: []string{"Health & Fitness", "Wearables"}},
	{Keyword: "health", Categories: []string{"Health & Fitness", "Wearables"}},
	{Keyword: "tech", Categories: []string{"Electronics", "Mobiles", "Laptops", "Audio"}},
	{Keyword: "electronics", Categories: []string{"Electronics", "Mobiles", "Laptops", "Audio"}},
}

// Analyze derives a persona from an ordered (most-recent-first) purchase
// history. It never fails: an empty history produces the "New Shopper"
// persona and items without a category land in the Uncategorized bucket.
func Analyze(history []models.PurchaseHistoryItem) models.UserPersona {
	p := models.UserPersona{
		CategoryScores:      make(map[string]int),
		SecondaryCategories: []string{},
		TotalPurchases:      len(history),
	}

	if len(history) == 0 {
		p.PersonaLabel = LabelNewShopper
		return p
	}

	// firstSeen preserves input order so score ties break deterministically.
	var firstSeen []string
	totalSpend := 0.0
	for _, item := range history {
		cat := Normalize(item.Category)
		if _, seen := p.CategoryScores[cat]; !seen {
			firstSeen = append(firstSeen, cat)
		}
		p.CategoryScores[cat] += item.Quantity
		totalSpend += item.PriceAtPurchase * float64(item.Quantity)
	}

	p.AverageSpend = totalSpend / float64(len(history))

	best := -1
	for _, cat := range firstSeen {
		if p.CategoryScores[cat] > best {
			best = p.CategoryScores[cat]
			p.PrimaryCategory = cat
		}
	}

	// Next two categories by score, excluding the primary. Repeatedly
	// scanning firstSeen keeps the tie break stable.
	picked := map[string]bool{p.PrimaryCategory: true}
	for len(p.SecondaryCategories) < 2 {
		bestCat := ""
		bestScore := -1
		for _, cat := range firstSeen {
			if picked[cat] {
				continue
			}
			if p.CategoryScores[cat] > bestScore {
				bestScore = p.CategoryScores[cat]
				bestCat = cat
			}
		}
		if bestCat == "" {
			break
		}
		picked[bestCat] = true
		p.SecondaryCategories = append(p.SecondaryCategories, bestCat)
	}

	p.PersonaLabel = LabelSmartShopper
	return p
}

// Normalize maps a raw category value onto its analysis bucket.
func Normalize(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return UncategorizedBucket
	}
	return category
}

// InferInterests returns the interest categories implied by the history's
// keywords, per InterestRules.
func InferInterests(history []models.PurchaseHistoryItem) []string {
	seen := make(map[string]bool)
	var interests []string
	for _, item := range history {
		haystack := strings.ToLower(item.Category + " " + item.ProductName)
		for _, rule := range InterestRules {
			if !strings.Contains(haystack, rule.Keyword) {
				continue
			}
			for _, cat := range rule.Categories {
				if !seen[cat] {
					seen[cat] = true
					interests = append(interests, cat)
				}
			}
		}
	}
	return interests
}
