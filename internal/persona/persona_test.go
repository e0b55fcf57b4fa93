package persona

import (
	"testing"
	"time"

	"offer-recommendation-api/internal/models"
)

func item(product, category string, qty int, price float64) models.PurchaseHistoryItem {
	return models.PurchaseHistoryItem{
		ProductName:     product,
		Category:        category,
		Quantity:        qty,
		PriceAtPurchase: price,
		PurchasedAt:     time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestAnalyze_EmptyHistory(t *testing.T) {
	p := Analyze(nil)

	if p.PersonaLabel != LabelNewShopper {
		t.Errorf("Expected label %q, got %q", LabelNewShopper, p.PersonaLabel)
	}
	if p.TotalPurchases != 0 {
		t.Errorf("Expected 0 total purchases, got %d", p.TotalPurchases)
	}
	if p.AverageSpend != 0 {
		t.Errorf("Expected 0 average spend, got %f", p.AverageSpend)
	}
	if p.PrimaryCategory != "" {
		t.Errorf("Expected no primary category, got %q", p.PrimaryCategory)
	}
}

func TestAnalyze_CategoryScoresSumQuantities(t *testing.T) {
	history := []models.PurchaseHistoryItem{
		item("Phone", "Electronics", 2, 100),
		item("Bread", "Bakery", 1, 3),
		item("Laptop", "Electronics", 1, 800),
	}

	p := Analyze(history)

	if p.TotalPurchases != 3 {
		t.Errorf("Expected 3 total purchases, got %d", p.TotalPurchases)
	}
	if p.CategoryScores["Electronics"] != 3 {
		t.Errorf("Expected Electronics score 3, got %d", p.CategoryScores["Electronics"])
	}
	if p.CategoryScores["Bakery"] != 1 {
		t.Errorf("Expected Bakery score 1, got %d", p.CategoryScores["Bakery"])
	}
	if p.PrimaryCategory != "Electronics" {
		t.Errorf("Expected primary Electronics, got %q", p.PrimaryCategory)
	}
	if p.PersonaLabel != LabelSmartShopper {
		t.Errorf("Expected label %q, got %q", LabelSmartShopper, p.PersonaLabel)
	}

	// (2*100 + 1*3 + 1*800) / 3
	want := (200.0 + 3.0 + 800.0) / 3.0
	if p.AverageSpend != want {
		t.Errorf("Expected average spend %f, got %f", want, p.AverageSpend)
	}
}

func TestAnalyze_TieBreaksByFirstSeen(t *testing.T) {
	history := []models.PurchaseHistoryItem{
		item("Bread", "Bakery", 2, 3),
		item("Phone", "Electronics", 2, 100),
		item("Milk", "Dairy", 2, 2),
	}

	p := Analyze(history)

	if p.PrimaryCategory != "Bakery" {
		t.Errorf("Expected primary Bakery on tie, got %q", p.PrimaryCategory)
	}
	if len(p.SecondaryCategories) != 2 {
		t.Fatalf("Expected 2 secondary categories, got %d", len(p.SecondaryCategories))
	}
	if p.SecondaryCategories[0] != "Electronics" || p.SecondaryCategories[1] != "Dairy" {
		t.Errorf("Expected [Electronics Dairy], got %v", p.SecondaryCategories)
	}
}

func TestAnalyze_MissingCategoryNormalized(t *testing.T) {
	history := []models.PurchaseHistoryItem{
		item("Mystery Box", "", 1, 10),
		item("Mystery Box", "  ", 2, 10),
	}

	p := Analyze(history)

	if p.CategoryScores[UncategorizedBucket] != 3 {
		t.Errorf("Expected Uncategorized score 3, got %d", p.CategoryScores[UncategorizedBucket])
	}
	if p.PrimaryCategory != UncategorizedBucket {
		t.Errorf("Expected primary %q, got %q", UncategorizedBucket, p.PrimaryCategory)
	}
}

func TestAnalyze_FewerThanThreeCategories(t *testing.T) {
	history := []models.PurchaseHistoryItem{
		item("Bread", "Bakery", 1, 3),
	}

	p := Analyze(history)

	if p.PrimaryCategory != "Bakery" {
		t.Errorf("Expected primary Bakery, got %q", p.PrimaryCategory)
	}
	if len(p.SecondaryCategories) != 0 {
		t.Errorf("Expected no secondary categories, got %v", p.SecondaryCategories)
	}
}

func TestInferInterests_KeywordRules(t *testing.T) {
	history := []models.PurchaseHistoryItem{
		item("Fitness Band", "Sports", 1, 40),
		item("Phone", "Electronics", 1, 100),
	}

	interests := InferInterests(history)

	want := map[string]bool{
		"Health & Fitness": true,
		"Wearables":        true,
		"Electronics":      true,
		"Mobiles":          true,
		"Laptops":          true,
		"Audio":            true,
	}
	if len(interests) != len(want) {
		t.Fatalf("Expected %d interests, got %d: %v", len(want), len(interests), interests)
	}
	for _, cat := range interests {
		if !want[cat] {
			t.Errorf("Unexpected interest %q", cat)
		}
	}
}

func TestInferInterests_NoKeywords(t *testing.T) {
	history := []models.PurchaseHistoryItem{
		item("Bread", "Bakery", 1, 3),
	}

	if interests := InferInterests(history); len(interests) != 0 {
		t.Errorf("Expected no interests, got %v", interests)
	}
}
