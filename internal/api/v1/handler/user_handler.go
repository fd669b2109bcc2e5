package handler

import (
	"net/http"

	"creatorstudio/internal/api/v1/dto"
	"creatorstudio/internal/model"
	"creatorstudio/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type UserHandler struct {
	userService service.UserService
	apiKeys     service.APIKeyService
	validate    *validator.Validate
	logger      zerolog.Logger
}

func NewUserHandler(userService service.UserService, apiKeys service.APIKeyService, v *validator.Validate, logger zerolog.Logger) *UserHandler {
	return &UserHandler{userService: userService, apiKeys: apiKeys, validate: v, logger: logger.With().Str("handler", "user").Logger()}
}

// RegisterRoutes mounts v1 user routes
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /users/me", authMw(http.HandlerFunc(h.createUser)))
	mux.Handle("GET /users/me", authMw(http.HandlerFunc(h.getUser)))
	mux.Handle("GET /users/me/usage", authMw(http.HandlerFunc(h.getUsage)))
	mux.Handle("PUT /users/me/api-keys/{provider}", authMw(http.HandlerFunc(h.saveAPIKey)))
	mux.Handle("DELETE /users/me/api-keys/{provider}", authMw(http.HandlerFunc(h.deleteAPIKey)))
}

// createUser godoc
// @Summary Create the caller's profile
// @Description Stores the profile of the authenticated user and starts the free plan.
// @Tags users
// @Accept json
// @Produce json
// @Param user body dto.UserCreateDTO true "Profile"
// @Success 201 {object} dto.UserResponseDTO
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {string} string "Failed to create user"
// @Router /users/me [post]
func (h *UserHandler) createUser(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req dto.UserCreateDTO
	if !decode(w, r, h.validate, &req) {
		return
	}
	created, err := h.userService.Create(r.Context(), &model.User{
		UserID:    userID,
		Name:      req.Name,
		Email:     req.Email,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		fail(w, h.logger, err, "Failed to create user")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, dto.NewUserResponse(created))
}

// getUser godoc
// @Summary Get the caller's profile
// @Tags users
// @Produce json
// @Success 200 {object} dto.UserResponseDTO
// @Failure 401 {string} string "Unauthorized"
// @Failure 404 {string} string "User not found"
// @Router /users/me [get]
func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	u, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		fail(w, h.logger, err, "Failed to get user")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.NewUserResponse(u))
}

// getUsage godoc
// @Summary Get the caller's generation usage
// @Description Returns generations used in the current billing period and the plan limit.
// @Tags users
// @Produce json
// @Success 200 {object} model.UserUsage
// @Failure 404 {string} string "User not found"
// @Router /users/me/usage [get]
func (h *UserHandler) getUsage(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	usage, err := h.userService.Usage(r.Context(), userID)
	if err != nil {
		fail(w, h.logger, err, "Failed to get usage")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, usage)
}

// saveAPIKey godoc
// @Summary Store a provider API key
// @Description Validates the key with the provider and stores it. Stored keys are used instead of the shared ones.
// @Tags users
// @Accept json
// @Param provider path string true "openai or anthropic"
// @Param key body dto.APIKeyRequest true "API key"
// @Success 204
// @Failure 400 {string} string "invalid API key or unknown provider"
// @Router /users/me/api-keys/{provider} [put]
func (h *UserHandler) saveAPIKey(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req dto.APIKeyRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	if err := h.apiKeys.Save(r.Context(), userID, r.PathValue("provider"), req.APIKey); err != nil {
		fail(w, h.logger, err, "Failed to save API key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteAPIKey godoc
// @Summary Remove a provider API key
// @Tags users
// @Param provider path string true "openai or anthropic"
// @Success 204
// @Failure 400 {string} string "unknown provider"
// @Router /users/me/api-keys/{provider} [delete]
func (h *UserHandler) deleteAPIKey(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	if err := h.apiKeys.Delete(r.Context(), userID, r.PathValue("provider")); err != nil {
		fail(w, h.logger, err, "Failed to delete API key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
