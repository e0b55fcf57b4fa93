package recommend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"offer-recommendation-api/internal/cache"
	"offer-recommendation-api/internal/events"
	"offer-recommendation-api/internal/features"
	"offer-recommendation-api/internal/llm"
	"offer-recommendation-api/internal/models"
	"offer-recommendation-api/internal/persona"
	"offer-recommendation-api/internal/scoring"
	"offer-recommendation-api/internal/validation"
)

// Feed section titles returned to the caller.
const (
	TitleTrending     = "Trending Now"
	TitlePersonalized = "Recommended For You"
)

// HistoryProvider supplies a user's recent purchases, most recent first.
type HistoryProvider interface {
	GetRecentPurchases(ctx context.Context, userID string, limit int) ([]models.PurchaseHistoryItem, error)
}

// OfferProvider supplies a store's offer catalog, pre-filtered to offers
// still valid at the given time.
type OfferProvider interface {
	GetActiveOffers(ctx context.Context, storeID string, now time.Time) ([]models.ActiveOffer, error)
}

// FeedStore records surfaced offers idempotently.
type FeedStore interface {
	UpsertFeedEntries(ctx context.Context, entries []models.FeedEntry) error
}

// Augmenter asks a language model to pick offers. Implementations must be
// all-or-nothing: a non-nil error means the whole AI path is skipped.
type Augmenter interface {
	Augment(ctx context.Context, history []models.PurchaseHistoryItem, offers []models.ActiveOffer) (*llm.Augmentation, error)
}

// Options tunes the pipeline.
type Options struct {
	CacheTTL      time.Duration
	HistoryWindow int
	TopK          int
}

// DefaultOptions returns the pipeline defaults.
func DefaultOptions() Options {
	return Options{
		CacheTTL:      5 * time.Minute,
		HistoryWindow: 15,
		TopK:          10,
	}
}

// Service is the recommendation orchestrator. It is stateless and
// re-entrant; all per-invocation state lives on the stack. Dependencies are
// injected at construction so tests can substitute fakes.
type Service struct {
	history   HistoryProvider
	offers    OfferProvider
	feed      FeedStore
	feedCache cache.Cache
	augmenter Augmenter
	flags     *features.Manager
	events    *events.Manager
	opts      Options
	tracer    trace.Tracer
}

// NewService wires the orchestrator. augmenter may be nil when no language
// model is configured; the pipeline then always uses rule-based scoring.
func NewService(
	history HistoryProvider,
	offers OfferProvider,
	feed FeedStore,
	feedCache cache.Cache,
	augmenter Augmenter,
	flags *features.Manager,
	eventManager *events.Manager,
	opts Options,
) *Service {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultOptions().CacheTTL
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultOptions().HistoryWindow
	}
	if opts.TopK <= 0 || opts.TopK > 10 {
		opts.TopK = DefaultOptions().TopK
	}

	return &Service{
		history:   history,
		offers:    offers,
		feed:      feed,
		feedCache: feedCache,
		augmenter: augmenter,
		flags:     flags,
		events:    eventManager,
		opts:      opts,
		tracer:    otel.Tracer("offer-recommendation-api/recommend"),
	}
}

// Recommend produces the ranked offer feed for a shopper at a store.
//
// Per invocation: check the TTL cache; on a miss, fetch history and catalog,
// derive the persona, attempt AI augmentation when history exists, fall back
// to deterministic rule-based scoring on any AI failure, then cache the
// result and record feed entries. Only input validation errors and collaborator
// read failures propagate; the AI path and the cache never fail a request.
func (s *Service) Recommend(ctx context.Context, userID, storeID string) (models.RecommendationResponse, error) {
	if err := validation.ValidateUUID(userID, "user_id"); err != nil {
		return models.RecommendationResponse{}, err
	}
	if err := validation.ValidateUUID(storeID, "store_id"); err != nil {
		return models.RecommendationResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "recommend")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("store.id", storeID),
	)

	cacheKey := feedCacheKey(userID, storeID)
	if s.cacheEnabled() {
		var cached models.RecommendationResponse
		err := cache.GetJSON(ctx, s.feedCache, cacheKey, &cached)
		if err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			if s.events != nil {
				s.events.PublishRecommendationServed(ctx, cached, true)
			}
			return cached, nil
		}
		if !errors.Is(err, cache.ErrNotFound) {
			// Advisory cache: a broken backend degrades to a miss.
			log.Printf("recommend: cache read failed for %s: %v", cacheKey, err)
		}
	}

	now := time.Now().UTC()

	history, err := s.history.GetRecentPurchases(ctx, userID, s.opts.HistoryWindow)
	if err != nil {
		return models.RecommendationResponse{}, fmt.Errorf("failed to get purchase history: %w", err)
	}

	catalog, err := s.offers.GetActiveOffers(ctx, storeID, now)
	if err != nil {
		return models.RecommendationResponse{}, fmt.Errorf("failed to get active offers: %w", err)
	}

	response := s.assemble(ctx, userID, storeID, history, catalog, now)

	if s.cacheEnabled() {
		if err := cache.SetJSON(ctx, s.feedCache, cacheKey, response, s.opts.CacheTTL); err != nil {
			log.Printf("recommend: cache write failed for %s: %v", cacheKey, err)
		}
	}

	s.recordFeed(ctx, response)

	if s.events != nil {
		s.events.PublishRecommendationServed(ctx, response, false)
	}

	return response, nil
}

// assemble runs the scoring state machine for one invocation.
func (s *Service) assemble(ctx context.Context, userID, storeID string, history []models.PurchaseHistoryItem, catalog []models.ActiveOffer, now time.Time) models.RecommendationResponse {
	response := models.RecommendationResponse{
		UserID:      userID,
		StoreID:     storeID,
		GeneratedAt: now,
	}

	shopper := persona.Analyze(history)

	if len(history) == 0 {
		response.Persona = persona.LabelNewShopper
		response.Title = TitleTrending
		response.Offers = scoring.ScoreFallback(catalog, s.opts.TopK)
		return response
	}

	if s.llmEnabled() {
		aug, err := s.tryAugment(ctx, history, catalog)
		if err == nil {
			response.Persona = aug.Persona
			if response.Persona == "" {
				response.Persona = shopper.PersonaLabel
			}
			response.Title = TitlePersonalized
			offers := aug.Offers
			if len(offers) > s.opts.TopK {
				offers = offers[:s.opts.TopK]
			}
			response.Offers = offers
			return response
		}

		log.Printf("recommend: ai augmentation failed for user %s: %v", userID, err)
		response.Persona = persona.LabelRegularShopper
		response.Title = TitlePersonalized
		response.Offers = scoring.ScorePersonalized(history, catalog, s.opts.TopK)
		return response
	}

	response.Persona = shopper.PersonaLabel
	response.Title = TitlePersonalized
	response.Offers = scoring.ScorePersonalized(history, catalog, s.opts.TopK)
	return response
}

func (s *Service) tryAugment(ctx context.Context, history []models.PurchaseHistoryItem, catalog []models.ActiveOffer) (*llm.Augmentation, error) {
	ctx, span := s.tracer.Start(ctx, "llm.augment")
	defer span.End()

	aug, err := s.augmenter.Augment(ctx, history, catalog)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("llm.picks", len(aug.Offers)))
	return aug, nil
}

// recordFeed writes one idempotent analytics row per surfaced offer.
// Failures are logged, never surfaced: the feed is best-effort from the
// request's point of view.
func (s *Service) recordFeed(ctx context.Context, response models.RecommendationResponse) {
	if s.feed == nil || len(response.Offers) == 0 {
		return
	}
	if s.flags != nil && !s.flags.IsEnabled(features.FeatureFeedRecording) {
		return
	}

	entries := make([]models.FeedEntry, 0, len(response.Offers))
	for _, offer := range response.Offers {
		entries = append(entries, models.FeedEntry{
			UserID:  response.UserID,
			OfferID: offer.ID,
			StoreID: response.StoreID,
		})
	}

	if err := s.feed.UpsertFeedEntries(ctx, entries); err != nil {
		log.Printf("recommend: feed recording failed for user %s: %v", response.UserID, err)
	}
}

func (s *Service) cacheEnabled() bool {
	if s.feedCache == nil {
		return false
	}
	return s.flags == nil || s.flags.IsEnabled(features.FeatureCacheEnabled)
}

func (s *Service) llmEnabled() bool {
	if s.augmenter == nil {
		return false
	}
	return s.flags == nil || s.flags.IsEnabled(features.FeatureLLMEnabled)
}

func feedCacheKey(userID, storeID string) string {
	return fmt.Sprintf("recommendations:%s:%s", userID, storeID)
}
