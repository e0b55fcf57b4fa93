package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"offer-recommendation-api/internal/database"
	"offer-recommendation-api/internal/events"
	"offer-recommendation-api/internal/models"
	"offer-recommendation-api/internal/recommend"
	"offer-recommendation-api/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	db          *database.DB
	recommender *recommend.Service
	events      *events.Manager
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 10 << 20, // 10MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(db *database.DB, recommender *recommend.Service, eventManager *events.Manager) *Handler {
	return NewHandlerWithOptions(db, recommender, eventManager, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(db *database.DB, recommender *recommend.Service, eventManager *events.Manager, opts NewHandlerOptions) *Handler {
	return &Handler{
		db:          db,
		recommender: recommender,
		events:      eventManager,
		maxBodySize: opts.MaxBodySize,
	}
}

// CreateOffer handles POST /offers
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to prevent abuse
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.ActiveOffer
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	req.StoreID = validation.SanitizeString(req.StoreID)
	req.Title = validation.SanitizeString(req.Title)
	req.Category = validation.SanitizeString(req.Category)
	req.ProductName = validation.SanitizeString(req.ProductName)

	if err := validation.ValidateOffer(req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.db.UpsertOffer(r.Context(), req)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to store offer")
		return
	}
	req.ID = id

	if h.events != nil {
		h.events.PublishOfferCreated(r.Context(), req)
	}

	h.respondJSON(w, http.StatusCreated, req)
}

// CreatePurchases handles POST /purchases
func (h *Handler) CreatePurchases(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.CreatePurchasesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	if len(req.Purchases) == 0 {
		h.respondError(w, http.StatusBadRequest, "no purchases provided")
		return
	}
	if len(req.Purchases) > 1000 {
		h.respondError(w, http.StatusBadRequest, "cannot process more than 1000 purchases per request")
		return
	}

	userIDs := make(map[string]bool)
	for i := range req.Purchases {
		item := &req.Purchases[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.ID = validation.SanitizeString(item.ID)
		item.UserID = validation.SanitizeString(item.UserID)
		item.ProductName = validation.SanitizeString(item.ProductName)
		item.Category = validation.SanitizeString(item.Category)

		if err := validation.ValidatePurchase(*item); err != nil {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		userIDs[item.UserID] = true
	}

	inserted, err := h.db.InsertPurchases(r.Context(), req.Purchases)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to store purchases")
		return
	}

	if h.events != nil {
		ids := make([]string, 0, len(userIDs))
		for id := range userIDs {
			ids = append(ids, id)
		}
		h.events.PublishPurchasesIngested(r.Context(), ids, inserted)
	}

	h.respondJSON(w, http.StatusCreated, models.CreatePurchasesResponse{
		Inserted: inserted,
	})
}

// GetRecommendations handles GET /users/{user_id}/stores/{store_id}/recommendations
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := validation.SanitizeString(chi.URLParam(r, "user_id"))
	storeID := validation.SanitizeString(chi.URLParam(r, "store_id"))

	response, err := h.recommender.Recommend(r.Context(), userID, storeID)
	if err != nil {
		var verr *validation.ValidationError
		if errors.As(err, &verr) {
			h.respondError(w, http.StatusBadRequest, verr.Error())
			return
		}
		h.respondError(w, http.StatusInternalServerError, "failed to compute recommendations")
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

// GetStoreOffers handles GET /stores/{store_id}/offers
func (h *Handler) GetStoreOffers(w http.ResponseWriter, r *http.Request) {
	storeID := validation.SanitizeString(chi.URLParam(r, "store_id"))

	if err := validation.ValidateUUID(storeID, "store_id"); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	offers, err := h.db.GetActiveOffers(r.Context(), storeID, time.Now().UTC())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to list offers")
		return
	}
	if offers == nil {
		offers = []models.ActiveOffer{}
	}

	h.respondJSON(w, http.StatusOK, models.StoreOffersResponse{
		StoreID: storeID,
		Offers:  offers,
	})
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
