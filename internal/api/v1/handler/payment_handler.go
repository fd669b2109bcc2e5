package handler

import (
	"context"
	"net/http"

	"creatorstudio/internal/api/v1/dto"
	"creatorstudio/internal/model"
	"creatorstudio/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// PaymentHandler serves manual payments and their admin review.
type PaymentHandler struct {
	payments service.PaymentService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewPaymentHandler(payments service.PaymentService, validate *validator.Validate, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, validate: validate, logger: logger.With().Str("handler", "payment").Logger()}
}

// RegisterRoutes mounts payment routes. adminMw runs after authMw on the
// admin routes.
func (h *PaymentHandler) RegisterRoutes(mux *http.ServeMux, authMw, adminMw func(http.Handler) http.Handler) {
	mux.Handle("POST /payments", authMw(http.HandlerFunc(h.submit)))
	mux.Handle("GET /payments", authMw(http.HandlerFunc(h.listMine)))
	mux.Handle("GET /admin/payments", authMw(adminMw(http.HandlerFunc(h.listAll))))
	mux.Handle("POST /admin/payments/{id}/approve", authMw(adminMw(http.HandlerFunc(h.approve))))
	mux.Handle("POST /admin/payments/{id}/reject", authMw(adminMw(http.HandlerFunc(h.reject))))
}

// submit godoc
// @Summary Submit a manual payment
// @Description Records a bank transfer for a paid plan. The plan starts once an administrator approves it.
// @Tags payments
// @Accept json
// @Produce json
// @Param payment body dto.PaymentSubmitRequest true "Payment"
// @Success 201 {object} model.Payment
// @Failure 400 {string} string "Validation failed"
// @Failure 404 {string} string "plan not found"
// @Router /payments [post]
func (h *PaymentHandler) submit(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req dto.PaymentSubmitRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	p, err := h.payments.Submit(r.Context(), userID, req.Input())
	if err != nil {
		fail(w, h.logger, err, "Failed to submit payment")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, p)
}

// listMine godoc
// @Summary List the caller's payments
// @Tags payments
// @Produce json
// @Success 200 {array} model.Payment
// @Router /payments [get]
func (h *PaymentHandler) listMine(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	list, err := h.payments.ListMine(r.Context(), userID)
	if err != nil {
		fail(w, h.logger, err, "Failed to list payments")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, list)
}

// listAll godoc
// @Summary List all payments
// @Tags admin
// @Produce json
// @Param status query string false "pending, approved or rejected"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} model.Payment
// @Failure 403 {string} string "Forbidden: admin role required"
// @Router /admin/payments [get]
func (h *PaymentHandler) listAll(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	list, err := h.payments.ListAll(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		fail(w, h.logger, err, "Failed to list payments")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, list)
}

// approve godoc
// @Summary Approve a pending payment
// @Description Approves the payment and activates its plan for the payer.
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param review body dto.PaymentReviewRequest false "Review note"
// @Success 200 {object} model.Payment
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "payment is not pending"
// @Router /admin/payments/{id}/approve [post]
func (h *PaymentHandler) approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.payments.Approve)
}

// reject godoc
// @Summary Reject a pending payment
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param review body dto.PaymentReviewRequest false "Review note"
// @Success 200 {object} model.Payment
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "payment is not pending"
// @Router /admin/payments/{id}/reject [post]
func (h *PaymentHandler) reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.payments.Reject)
}

func (h *PaymentHandler) review(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, adminID, paymentID, note string) (*model.Payment, error)) {
	adminID := requireUser(w, r)
	if adminID == "" {
		return
	}
	var req dto.PaymentReviewRequest
	if r.ContentLength != 0 && !decode(w, r, h.validate, &req) {
		return
	}
	p, err := apply(r.Context(), adminID, r.PathValue("id"), req.Note)
	if err != nil {
		fail(w, h.logger, err, "Failed to review payment")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, p)
}
