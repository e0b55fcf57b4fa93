package models

import "time"

// PurchaseHistoryItem is a single line item from a completed transaction.
// History feeds are ordered most-recent-first.
type PurchaseHistoryItem struct {
	ID              string    `json:"id"`      // uuid
	UserID          string    `json:"user_id"` // uuid
	ProductName     string    `json:"product_name"`
	Category        string    `json:"category"`
	Quantity        int       `json:"quantity"`
	PriceAtPurchase float64   `json:"price_at_purchase"`
	PurchasedAt     time.Time `json:"purchased_at"` // RFC3339 timestamp
}

// ActiveOffer is a read-only snapshot of a store offer. Catalog providers
// must pre-filter to valid_until > now before offers enter the pipeline.
type ActiveOffer struct {
	ID                 int64     `json:"id"`
	StoreID            string    `json:"store_id"` // uuid
	Title              string    `json:"title"`
	Category           string    `json:"category"`
	ProductName        string    `json:"product_name"`
	DiscountPercentage float64   `json:"discount_percentage"`
	IsDefault          bool      `json:"is_default"`
	ValidUntil         time.Time `json:"valid_until"` // RFC3339 timestamp
}

// UserPersona summarizes a shopper's inferred interests. It is recomputed on
// every invocation; any storage of it is a cache, never a source of truth.
type UserPersona struct {
	PrimaryCategory     string         `json:"primary_category"`
	SecondaryCategories []string       `json:"secondary_categories"`
	CategoryScores      map[string]int `json:"category_scores"`
	TotalPurchases      int            `json:"total_purchases"`
	AverageSpend        float64        `json:"average_spend"`
	PersonaLabel        string         `json:"persona_label"`
}

// ScoredOffer is an offer annotated with a ranking signal. The score scale
// depends on the path that produced it: [0, 1] for the personalized
// rule-based regime, 0-100 for the fallback and AI regimes. A single
// response never mixes scales.
type ScoredOffer struct {
	ActiveOffer
	RelevanceScore float64 `json:"relevance_score"`
	MatchReason    string  `json:"match_reason,omitempty"`
	IsPersonalized bool    `json:"is_personalized"`
}

// FeedEntry records that an offer was surfaced to a user at a store. It is
// the only durable artifact the recommendation core writes; the composite
// key (user_id, offer_id, store_id) makes repeated scans idempotent.
type FeedEntry struct {
	UserID  string `json:"user_id"`
	OfferID int64  `json:"offer_id"`
	StoreID string `json:"store_id"`
}

// RecommendationResponse is the ranked feed returned to the caller.
type RecommendationResponse struct {
	UserID      string        `json:"user_id"`
	StoreID     string        `json:"store_id"`
	Persona     string        `json:"persona"`
	Title       string        `json:"title"`
	Offers      []ScoredOffer `json:"offers"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// CreateOfferRequest represents the request body for creating an offer.
type CreateOfferRequest struct {
	Offer ActiveOffer `json:"offer"`
}

// CreatePurchasesRequest represents the request body for ingesting purchases.
type CreatePurchasesRequest struct {
	Purchases []PurchaseHistoryItem `json:"purchases"`
}

// CreatePurchasesResponse represents the response for ingesting purchases.
type CreatePurchasesResponse struct {
	Inserted int `json:"inserted"`
}

// StoreOffersResponse lists a store's active offers.
type StoreOffersResponse struct {
	StoreID string        `json:"store_id"`
	Offers  []ActiveOffer `json:"offers"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
