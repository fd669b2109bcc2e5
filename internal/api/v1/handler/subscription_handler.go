package handler

import (
	"context"
	"net/http"

	"creatorstudio/internal/api/v1/dto"
	"creatorstudio/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Billing is the payment provider side of subscriptions.
type Billing interface {
	CreateCheckoutSession(ctx context.Context, userID, plan string) (string, error)
	CreatePortalSession(ctx context.Context, userID string) (string, error)
	HandleWebhook(w http.ResponseWriter, r *http.Request)
}

// SubscriptionHandler handles subscription-related endpoints.
type SubscriptionHandler struct {
	billing  Billing
	subSvc   service.SubscriptionService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(billing Billing, subSvc service.SubscriptionService, validate *validator.Validate, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{billing: billing, subSvc: subSvc, validate: validate, logger: logger.With().Str("handler", "subscription").Logger()}
}

// RegisterRoutes registers the subscription endpoints. The webhook is
// authenticated by its Stripe signature, not by a user token.
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("GET /subscriptions/me", authMiddleware(http.HandlerFunc(h.Current)))
	mux.Handle("POST /subscriptions/checkout", authMiddleware(http.HandlerFunc(h.Checkout)))
	mux.Handle("GET /subscriptions/portal", authMiddleware(http.HandlerFunc(h.Portal)))
	mux.HandleFunc("POST /stripe/webhook", h.billing.HandleWebhook)
}

// Current godoc
// @Summary Get the caller's subscription
// @Tags subscriptions
// @Produce json
// @Success 200 {object} service.SubscriptionView
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "no subscription"
// @Router /subscriptions/me [get]
func (h *SubscriptionHandler) Current(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	view, err := h.subSvc.Current(r.Context(), userID)
	if err != nil {
		fail(w, h.logger, err, "failed to get subscription")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, view)
}

// Checkout godoc
// @Summary Initiate a Stripe Checkout session for plan upgrade
// @Description Creates a Stripe Checkout session and returns its URL.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param subscription body dto.SubscriptionCheckoutRequest true "Subscription checkout request"
// @Success 200 {object} dto.URLResponse "URL of the Stripe Checkout session"
// @Failure 400 {string} string "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "failed to create checkout session"
// @Router /subscriptions/checkout [post]
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req dto.SubscriptionCheckoutRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	url, err := h.billing.CreateCheckoutSession(r.Context(), userID, req.Plan)
	if err != nil {
		fail(w, h.logger, err, "failed to create checkout session")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.URLResponse{URL: url})
}

// Portal godoc
// @Summary Create a Stripe Customer Portal session
// @Description Generates a Stripe Customer Portal session URL for the authenticated user.
// @Tags subscriptions
// @Produce json
// @Success 200 {object} dto.URLResponse "URL of the Customer Portal session"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "no stripe customer"
// @Failure 500 {string} string "failed to create portal session"
// @Router /subscriptions/portal [get]
func (h *SubscriptionHandler) Portal(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	url, err := h.billing.CreatePortalSession(r.Context(), userID)
	if err != nil {
		fail(w, h.logger, err, "failed to create portal session")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.URLResponse{URL: url})
}
