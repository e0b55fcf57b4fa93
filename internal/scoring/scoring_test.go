package scoring

import (
	"testing"
	"time"

	"offer-recommendation-api/internal/models"
)

func offer(id int64, title, category string, discount float64, isDefault bool) models.ActiveOffer {
	return models.ActiveOffer{
		ID:                 id,
		Title:              title,
		Category:           category,
		DiscountPercentage: discount,
		IsDefault:          isDefault,
		ValidUntil:         time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func purchase(category string, qty int) models.PurchaseHistoryItem {
	return models.PurchaseHistoryItem{
		ProductName: category + " item",
		Category:    category,
		Quantity:    qty,
	}
}

func TestScorePersonalized_CategoryAndFrequencyBonus(t *testing.T) {
	history := []models.PurchaseHistoryItem{
		purchase("Electronics", 2),
		purchase("Electronics", 1),
	}
	catalog := []models.ActiveOffer{
		offer(1, "10% off phones", "Electronics", 10, false),
		offer(2, "Fresh bread", "Bakery", 5, true),
	}

	scored := ScorePersonalized(history, catalog, 10)

	if len(scored) != 2 {
		t.Fatalf("Expected 2 scored offers, got %d", len(scored))
	}
	if scored[0].ID != 1 {
		t.Fatalf("Expected Electronics offer ranked first, got offer %d", scored[0].ID)
	}
	// 0.3 base + 0.4 category match + min(0.3, 3 units * 0.1)
	if scored[0].RelevanceScore != 1.0 {
		t.Errorf("Expected Electronics score 1.0, got %f", scored[0].RelevanceScore)
	}
	if scored[1].RelevanceScore != 0.3 {
		t.Errorf("Expected Bakery score 0.3, got %f", scored[1].RelevanceScore)
	}
	if !scored[0].IsPersonalized {
		t.Error("Expected personalized flag set")
	}
	if scored[0].MatchReason != "" {
		t.Errorf("Expected no match reason in personalized regime, got %q", scored[0].MatchReason)
	}
}

func TestScorePersonalized_FrequencyBonusCapped(t *testing.T) {
	history := []models.PurchaseHistoryItem{
		purchase("Bakery", 50),
	}
	catalog := []models.ActiveOffer{
		offer(1, "Fresh bread", "Bakery", 0, false),
	}

	scored := ScorePersonalized(history, catalog, 10)

	if scored[0].RelevanceScore != 1.0 {
		t.Errorf("Expected capped score 1.0, got %f", scored[0].RelevanceScore)
	}
}

func TestScorePersonalized_InferredInterestMatches(t *testing.T) {
	// No Wearables purchases, but "fitness" in history implies interest.
	history := []models.PurchaseHistoryItem{
		purchase("Fitness", 1),
	}
	catalog := []models.ActiveOffer{
		offer(1, "Smart watch", "Wearables", 0, false),
		offer(2, "Fresh bread", "Bakery", 0, false),
	}

	scored := ScorePersonalized(history, catalog, 10)

	if scored[0].ID != 1 {
		t.Fatalf("Expected Wearables offer first, got offer %d", scored[0].ID)
	}
	// Category bonus without any frequency bonus: 0.3 + 0.4
	if scored[0].RelevanceScore != 0.7 {
		t.Errorf("Expected score 0.7, got %f", scored[0].RelevanceScore)
	}
}

func TestScorePersonalized_ScoresWithinBounds(t *testing.T) {
	history := []models.PurchaseHistoryItem{
		purchase("Electronics", 100),
		purchase("Bakery", 1),
	}
	catalog := []models.ActiveOffer{
		offer(1, "A", "Electronics", 90, false),
		offer(2, "B", "Bakery", 0, true),
		offer(3, "C", "Garden", 50, false),
	}

	scored := ScorePersonalized(history, catalog, 10)

	for _, s := range scored {
		if s.RelevanceScore < 0 || s.RelevanceScore > 1.0 {
			t.Errorf("Score %f for offer %d out of [0, 1]", s.RelevanceScore, s.ID)
		}
	}
	for i := 1; i < len(scored); i++ {
		if scored[i].RelevanceScore > scored[i-1].RelevanceScore {
			t.Errorf("Scores not sorted descending at index %d", i)
		}
	}
}

func TestScorePersonalized_TieKeepsCatalogOrder(t *testing.T) {
	history := []models.PurchaseHistoryItem{
		purchase("Bakery", 1),
	}
	catalog := []models.ActiveOffer{
		offer(7, "First", "Garden", 0, false),
		offer(3, "Second", "Garden", 0, false),
	}

	scored := ScorePersonalized(history, catalog, 10)

	if scored[0].ID != 7 || scored[1].ID != 3 {
		t.Errorf("Expected catalog order on tie, got [%d %d]", scored[0].ID, scored[1].ID)
	}
}

func TestScoreFallback_DefaultOutranksEqualDiscount(t *testing.T) {
	catalog := []models.ActiveOffer{
		offer(1, "Plain", "Garden", 5, false),
		offer(2, "Default", "Bakery", 5, true),
	}

	scored := ScoreFallback(catalog, 10)

	if scored[0].ID != 2 {
		t.Fatalf("Expected default offer first, got offer %d", scored[0].ID)
	}
	if scored[0].RelevanceScore != 55 {
		t.Errorf("Expected default score 55, got %f", scored[0].RelevanceScore)
	}
	if scored[1].RelevanceScore != 5 {
		t.Errorf("Expected plain score 5, got %f", scored[1].RelevanceScore)
	}
	for _, s := range scored {
		if s.MatchReason != ReasonTrending {
			t.Errorf("Expected match reason %q, got %q", ReasonTrending, s.MatchReason)
		}
		if s.IsPersonalized {
			t.Error("Fallback offers must not be marked personalized")
		}
	}
}

func TestScoreFallback_EmptyCatalog(t *testing.T) {
	scored := ScoreFallback(nil, 10)
	if len(scored) != 0 {
		t.Errorf("Expected empty result, got %d offers", len(scored))
	}
}

func TestRank_TruncatesToTopK(t *testing.T) {
	var catalog []models.ActiveOffer
	for i := int64(1); i <= 15; i++ {
		catalog = append(catalog, offer(i, "Offer", "Garden", float64(i), false))
	}

	scored := ScoreFallback(catalog, 10)

	if len(scored) != 10 {
		t.Fatalf("Expected 10 offers, got %d", len(scored))
	}
	if scored[0].ID != 15 {
		t.Errorf("Expected highest-discount offer first, got offer %d", scored[0].ID)
	}
}

func TestRank_DropsDuplicateOfferIDs(t *testing.T) {
	catalog := []models.ActiveOffer{
		offer(1, "A", "Garden", 10, false),
		offer(1, "A again", "Garden", 5, false),
		offer(2, "B", "Garden", 1, false),
	}

	scored := ScoreFallback(catalog, 10)

	seen := make(map[int64]bool)
	for _, s := range scored {
		if seen[s.ID] {
			t.Fatalf("Duplicate offer id %d in result", s.ID)
		}
		seen[s.ID] = true
	}
	if len(scored) != 2 {
		t.Errorf("Expected 2 unique offers, got %d", len(scored))
	}
}
