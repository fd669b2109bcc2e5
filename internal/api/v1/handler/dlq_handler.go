package handler

import (
	"net/http"

	"creatorstudio/internal/api/v1/dto"
	"creatorstudio/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type DLQHandler struct {
	service  service.DLQService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewDLQHandler(s service.DLQService, v *validator.Validate, l zerolog.Logger) *DLQHandler {
	return &DLQHandler{service: s, validate: v, logger: l.With().Str("handler", "dlq").Logger()}
}

// RegisterRoutes mounts the dead letter push endpoint behind the Pub/Sub
// OIDC middleware.
func (h *DLQHandler) RegisterRoutes(mux *http.ServeMux, pubsubAuth func(http.Handler) http.Handler) {
	mux.Handle("POST /dlq", pubsubAuth(http.HandlerFunc(h.recordDLQ)))
}

// recordDLQ godoc
// @Summary Record a dead letter
// @Description Pub/Sub push endpoint for dead letter subscriptions.
// @Tags internal
// @Accept json
// @Param message body dto.PubSubPushRequest true "Pub/Sub push message"
// @Success 204
// @Failure 400 {string} string "Invalid Pub/Sub message format"
// @Router /dlq [post]
func (h *DLQHandler) recordDLQ(w http.ResponseWriter, r *http.Request) {
	var req dto.PubSubPushRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	h.logger.Info().
		Str("messageId", req.Message.MessageID).
		Str("subscription", req.Subscription).
		Msg("Processing dead-letter queue message")

	if err := h.service.ProcessAndSave(r.Context(), req.DeadLetter()); err != nil {
		// Still 204: a retry would only dead-letter the message again.
		h.logger.Error().Err(err).Msg("Failed to save DLQ message to database")
	}
	w.WriteHeader(http.StatusNoContent)
}
