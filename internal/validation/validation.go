package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"offer-recommendation-api/internal/models"
)

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidateOffer checks an offer before it is stored.
func ValidateOffer(offer models.ActiveOffer) error {
	if err := ValidateUUID(offer.StoreID, "store_id"); err != nil {
		return err
	}

	if strings.TrimSpace(offer.Title) == "" {
		return &ValidationError{
			Field:   "title",
			Message: "is required",
		}
	}

	if len(offer.Title) > 200 {
		return &ValidationError{
			Field:   "title",
			Message: "cannot exceed 200 characters",
		}
	}

	if offer.DiscountPercentage < 0 || offer.DiscountPercentage > 100 {
		return &ValidationError{
			Field:   "discount_percentage",
			Message: "must be between 0 and 100",
		}
	}

	if offer.ValidUntil.IsZero() {
		return &ValidationError{
			Field:   "valid_until",
			Message: "is required",
		}
	}

	maxValidity := 2 * 365 * 24 * time.Hour
	if time.Until(offer.ValidUntil) > maxValidity {
		return &ValidationError{
			Field:   "valid_until",
			Message: "cannot be more than 2 years in the future",
		}
	}

	return nil
}

// ValidatePurchase checks a purchase history item before ingestion.
// A missing category is allowed: the analyzer normalizes it to the
// Uncategorized bucket instead of rejecting the item.
func ValidatePurchase(item models.PurchaseHistoryItem) error {
	if err := ValidateUUID(item.ID, "id"); err != nil {
		return err
	}

	if err := ValidateUUID(item.UserID, "user_id"); err != nil {
		return err
	}

	if strings.TrimSpace(item.ProductName) == "" {
		return &ValidationError{
			Field:   "product_name",
			Message: "is required",
		}
	}

	if item.Quantity <= 0 {
		return &ValidationError{
			Field:   "quantity",
			Message: "must be positive",
		}
	}

	if item.PriceAtPurchase < 0 {
		return &ValidationError{
			Field:   "price_at_purchase",
			Message: "must be non-negative",
		}
	}

	if item.PurchasedAt.IsZero() {
		return &ValidationError{
			Field:   "purchased_at",
			Message: "is required",
		}
	}

	maxFutureTime := time.Now().Add(1 * time.Hour)
	if item.PurchasedAt.After(maxFutureTime) {
		return &ValidationError{
			Field:   "purchased_at",
			Message: "cannot be more than 1 hour in the future",
		}
	}

	maxPastTime := time.Now().AddDate(-10, 0, 0)
	if item.PurchasedAt.Before(maxPastTime) {
		return &ValidationError{
			Field:   "purchased_at",
			Message: "cannot be more than 10 years in the past",
		}
	}

	return nil
}

// SanitizeString strips control characters and trims whitespace.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// ValidateUUID checks that id is a well-formed UUID v4.
func ValidateUUID(id, fieldName string) error {
	if id == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	id = SanitizeString(id)

	if !uuidRegex.MatchString(strings.ToLower(id)) {
		return &ValidationError{
			Field:   fieldName,
			Message: "must be a valid UUID v4",
		}
	}

	return nil
}
