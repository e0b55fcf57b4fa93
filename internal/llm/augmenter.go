package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"offer-recommendation-api/internal/models"
)

// AIPickScore is the uniform relevance score assigned to every offer the
// model selects. AI picks are not re-ranked against each other; the model's
// own ordering is preserved.
const AIPickScore = 100.0

// ErrNoPicks means the model answered but nothing usable survived catalog
// mapping. Treated the same as any other augmentation failure.
var ErrNoPicks = fmt.Errorf("llm: no usable offer picks")

// Augmentation is a validated, catalog-mapped answer from the model.
type Augmentation struct {
	Offers  []models.ScoredOffer
	Persona string
}

// Augmenter asks a chat-completion endpoint to pick and justify offers for
// a shopper. It is all-or-nothing per invocation: any transport failure,
// malformed answer, or empty mapped pick list is an error and the caller
// falls back to rule-based scoring. It performs no retries and writes
// nothing to storage.
type Augmenter struct {
	client Client
}

// NewAugmenter wraps a completion client.
func NewAugmenter(client Client) *Augmenter {
	return &Augmenter{client: client}
}

// pickResponse is the strict output contract demanded of the model.
type pickResponse struct {
	OfferIDs []int64 `json:"offerIds"`
	Persona  string  `json:"persona"`
	Reason   string  `json:"reason"`
}

// Augment builds the prompt, invokes the model, and maps its picks back
// onto the catalog. Offer ids absent from the catalog are dropped silently
// (hallucination tolerance); survivors all carry AIPickScore and share the
// model's single reason string.
func (a *Augmenter) Augment(ctx context.Context, history []models.PurchaseHistoryItem, offers []models.ActiveOffer) (*Augmentation, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("llm: purchase history is empty")
	}
	if len(offers) == 0 {
		return nil, ErrNoPicks
	}

	prompt, err := buildPrompt(history, offers)
	if err != nil {
		return nil, err
	}

	raw, err := a.client.Complete(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: completion failed: %w", err)
	}

	parsed, err := parsePickResponse(raw)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]models.ActiveOffer, len(offers))
	for _, offer := range offers {
		byID[offer.ID] = offer
	}

	var picks []models.ScoredOffer
	seen := make(map[int64]bool)
	for _, id := range parsed.OfferIDs {
		offer, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		picks = append(picks, models.ScoredOffer{
			ActiveOffer:    offer,
			RelevanceScore: AIPickScore,
			MatchReason:    parsed.Reason,
			IsPersonalized: true,
		})
	}

	if len(picks) == 0 {
		return nil, ErrNoPicks
	}

	return &Augmentation{Offers: picks, Persona: parsed.Persona}, nil
}

const systemPrompt = "You are a retail offer recommendation engine. " +
	"You answer with raw JSON only: no markdown, no code fences, no prose. " +
	"Your entire response must start with { and end with }."

type promptOffer struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

func buildPrompt(history []models.PurchaseHistoryItem, offers []models.ActiveOffer) (string, error) {
	names := make([]string, 0, len(history))
	for _, item := range history {
		names = append(names, item.ProductName)
	}

	catalog := make([]promptOffer, 0, len(offers))
	for _, offer := range offers {
		catalog = append(catalog, promptOffer{ID: offer.ID, Title: offer.Title, Category: offer.Category})
	}
	catalogJSON, err := json.Marshal(catalog)
	if err != nil {
		return "", fmt.Errorf("llm: failed to encode catalog: %w", err)
	}

	var b strings.Builder
	b.WriteString("A shopper recently bought: ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\n\nActive offers in the store:\n")
	b.Write(catalogJSON)
	b.WriteString("\n\nPick the offers most relevant to this shopper, invent a short creative persona label for them, ")
	b.WriteString("and explain the picks in one sentence. ")
	b.WriteString(`Return JSON of the exact shape {"offerIds": [int], "persona": "string", "reason": "string"}. `)
	b.WriteString("Do not wrap the JSON in markdown fences; respond with the JSON object only.")
	return b.String(), nil
}

// parsePickResponse cleans and decodes a model answer. It strips residual
// code fences, tries a direct parse, then retries on the first balanced
// {...} substring. Anything that still fails the schema is an error.
func parsePickResponse(raw string) (*pickResponse, error) {
	cleaned := stripFences(raw)

	var parsed pickResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		extracted, ok := extractBalancedObject(cleaned)
		if !ok {
			return nil, fmt.Errorf("llm: unparseable answer: %w", err)
		}
		if err := json.Unmarshal([]byte(extracted), &parsed); err != nil {
			return nil, fmt.Errorf("llm: unparseable answer after extraction: %w", err)
		}
	}

	if len(parsed.OfferIDs) == 0 {
		return nil, ErrNoPicks
	}
	return &parsed, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractBalancedObject returns the first balanced top-level {...} substring.
// Quote and escape handling keeps braces inside string values from
// miscounting depth.
func extractBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}
