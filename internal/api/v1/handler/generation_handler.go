package handler

import (
	"net/http"

	"creatorstudio/internal/api/v1/dto"
	"creatorstudio/internal/service"
	"creatorstudio/internal/stream"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// GenerationHandler serves the AI generation endpoints and the history of
// stored generations.
type GenerationHandler struct {
	content     service.ContentService
	media       service.MediaService
	niches      service.NicheService
	guides      service.EditingGuideService
	generations service.GenerationService
	validate    *validator.Validate
	logger      zerolog.Logger
}

func NewGenerationHandler(
	content service.ContentService,
	media service.MediaService,
	niches service.NicheService,
	guides service.EditingGuideService,
	generations service.GenerationService,
	validate *validator.Validate,
	logger zerolog.Logger,
) *GenerationHandler {
	return &GenerationHandler{
		content:     content,
		media:       media,
		niches:      niches,
		guides:      guides,
		generations: generations,
		validate:    validate,
		logger:      logger.With().Str("handler", "generation").Logger(),
	}
}

// RegisterRoutes mounts generation routes
func (h *GenerationHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /ideas", authMw(http.HandlerFunc(h.createIdeas)))
	mux.Handle("POST /titles", authMw(http.HandlerFunc(h.createTitles)))
	mux.Handle("POST /translations", authMw(http.HandlerFunc(h.createTranslation)))
	mux.Handle("POST /thumbnails", authMw(http.HandlerFunc(h.createThumbnail)))
	mux.Handle("POST /images", authMw(http.HandlerFunc(h.createImage)))
	mux.Handle("POST /niches/search", authMw(http.HandlerFunc(h.searchNiche)))
	mux.Handle("POST /editing-guides", authMw(http.HandlerFunc(h.createEditingGuide)))
	mux.Handle("GET /editing-guides/{id}/export", authMw(http.HandlerFunc(h.exportEditingGuide)))
	mux.Handle("GET /generations/{kind}", authMw(http.HandlerFunc(h.listGenerations)))
	mux.Handle("GET /generations/{kind}/{id}", authMw(http.HandlerFunc(h.getGeneration)))
	mux.Handle("DELETE /generations/{kind}/{id}", authMw(http.HandlerFunc(h.deleteGeneration)))
}

// createIdeas godoc
// @Summary Generate video ideas
// @Description Generates video ideas for a niche and stores them. Counts against the generation quota.
// @Tags generations
// @Accept json
// @Produce json
// @Param request body dto.IdeasRequest true "Ideas request"
// @Success 201 {object} dto.GenerationResponse
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 401 {string} string "Unauthorized"
// @Failure 402 {string} string "generation quota exceeded"
// @Failure 429 {string} string "rate limited"
// @Failure 500 {string} string "Failed to generate ideas"
// @Router /ideas [post]
func (h *GenerationHandler) createIdeas(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req dto.IdeasRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	g, err := h.content.GenerateIdeas(r.Context(), userID, req.Input())
	if err != nil {
		fail(w, h.logger, err, "Failed to generate ideas")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, dto.NewGenerationResponse(g))
}

// createTitles godoc
// @Summary Generate video titles
// @Tags generations
// @Accept json
// @Produce json
// @Param request body dto.TitlesRequest true "Titles request"
// @Success 201 {object} dto.GenerationResponse
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 402 {string} string "generation quota exceeded"
// @Failure 500 {string} string "Failed to generate titles"
// @Router /titles [post]
func (h *GenerationHandler) createTitles(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req dto.TitlesRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	g, err := h.content.GenerateTitles(r.Context(), userID, req.Input())
	if err != nil {
		fail(w, h.logger, err, "Failed to generate titles")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, dto.NewGenerationResponse(g))
}

// createTranslation godoc
// @Summary Translate a script
// @Description Streams the translation as server-sent events (`data: {"text": "..."}`), terminated by `data: [DONE]`. Errors after the stream started arrive as `data: {"error": "..."}`.
// @Tags generations
// @Accept json
// @Produce text/event-stream
// @Param request body dto.TranslationRequest true "Translation request"
// @Success 200 {string} string "event stream"
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 402 {string} string "generation quota exceeded"
// @Router /translations [post]
func (h *GenerationHandler) createTranslation(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req dto.TranslationRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	sse, err := stream.NewWriter(w)
	if err != nil {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	started := false
	_, err = h.content.Translate(r.Context(), userID, req.Input(), func(delta string) error {
		if !started {
			w.WriteHeader(http.StatusOK)
			started = true
		}
		return sse.Text(delta)
	})
	if err != nil {
		if !started {
			// Nothing sent yet, answer with a plain status.
			w.Header().Del("Content-Type")
			fail(w, h.logger, err, "Failed to translate script")
			return
		}
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("Translation stream aborted")
		_ = sse.Error("translation failed")
		_ = sse.Close()
		return
	}
	if err := sse.Close(); err != nil {
		h.logger.Debug().Err(err).Msg("failed to close stream")
	}
}

// createThumbnail godoc
// @Summary Generate a thumbnail
// @Description Writes an image prompt and overlay text for the video, renders the image and stores it.
// @Tags generations
// @Accept json
// @Produce json
// @Param request body dto.ThumbnailRequest true "Thumbnail request"
// @Success 201 {object} dto.GenerationResponse
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 402 {string} string "generation quota exceeded"
// @Failure 500 {string} string "Failed to generate thumbnail"
// @Router /thumbnails [post]
func (h *GenerationHandler) createThumbnail(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req dto.ThumbnailRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	g, err := h.media.GenerateThumbnail(r.Context(), userID, req.Input())
	if err != nil {
		fail(w, h.logger, err, "Failed to generate thumbnail")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, dto.NewGenerationResponse(g))
}

// createImage godoc
// @Summary Generate an image
// @Tags generations
// @Accept json
// @Produce json
// @Param request body dto.ImageRequest true "Image request"
// @Success 201 {object} dto.GenerationResponse
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 402 {string} string "generation quota exceeded"
// @Failure 500 {string} string "Failed to generate image"
// @Router /images [post]
func (h *GenerationHandler) createImage(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req dto.ImageRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	g, err := h.media.GenerateImage(r.Context(), userID, req.Input())
	if err != nil {
		fail(w, h.logger, err, "Failed to generate image")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, dto.NewGenerationResponse(g))
}

// searchNiche godoc
// @Summary Analyse a niche
// @Description Searches YouTube for the keyword, aggregates view statistics and asks the model for an assessment.
// @Tags generations
// @Accept json
// @Produce json
// @Param request body dto.NicheSearchRequest true "Niche search request"
// @Success 201 {object} dto.GenerationResponse
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 402 {string} string "generation quota exceeded"
// @Failure 429 {string} string "YouTube quota exhausted on every key"
// @Failure 500 {string} string "Failed to search niche"
// @Router /niches/search [post]
func (h *GenerationHandler) searchNiche(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req dto.NicheSearchRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	g, err := h.niches.Search(r.Context(), userID, req.Input())
	if err != nil {
		fail(w, h.logger, err, "Failed to search niche")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, dto.NewGenerationResponse(g))
}

// createEditingGuide godoc
// @Summary Build an editing guide
// @Description Maps the SRT narration onto the script's scenes and image windows and adds editor notes per scene.
// @Tags generations
// @Accept json
// @Produce json
// @Param request body dto.EditingGuideRequest true "Editing guide request"
// @Success 201 {object} dto.GenerationResponse
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 402 {string} string "generation quota exceeded"
// @Failure 500 {string} string "Failed to build editing guide"
// @Router /editing-guides [post]
func (h *GenerationHandler) createEditingGuide(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req dto.EditingGuideRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	g, err := h.guides.Generate(r.Context(), userID, req.Input())
	if err != nil {
		fail(w, h.logger, err, "Failed to build editing guide")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, dto.NewGenerationResponse(g))
}

// exportEditingGuide godoc
// @Summary Export an editing guide as HTML
// @Tags generations
// @Produce html
// @Param id path string true "Editing guide ID"
// @Success 200 {string} string "HTML document"
// @Failure 404 {string} string "not found"
// @Router /editing-guides/{id}/export [get]
func (h *GenerationHandler) exportEditingGuide(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	doc, err := h.guides.ExportHTML(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		fail(w, h.logger, err, "Failed to export editing guide")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="editing-guide.html"`)
	}
	_, _ = w.Write(doc)
}

// listGenerations godoc
// @Summary List generations of a kind
// @Tags generations
// @Produce json
// @Param kind path string true "ideas, titles, translations, thumbnails, images, niche-searches or editing-guides"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} dto.GenerationListResponse
// @Failure 400 {string} string "invalid generation kind"
// @Router /generations/{kind} [get]
func (h *GenerationHandler) listGenerations(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	limit, offset := pageParams(r)
	rows, err := h.generations.List(r.Context(), userID, r.PathValue("kind"), limit, offset)
	if err != nil {
		fail(w, h.logger, err, "Failed to list generations")
		return
	}
	resp := dto.GenerationListResponse{Items: make([]dto.GenerationResponse, 0, len(rows)), Limit: limit, Offset: offset}
	for i := range rows {
		resp.Items = append(resp.Items, dto.NewGenerationResponse(&rows[i]))
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// getGeneration godoc
// @Summary Get a generation
// @Tags generations
// @Produce json
// @Param kind path string true "Generation kind"
// @Param id path string true "Generation ID"
// @Success 200 {object} dto.GenerationResponse
// @Failure 404 {string} string "not found"
// @Router /generations/{kind}/{id} [get]
func (h *GenerationHandler) getGeneration(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	g, err := h.generations.Get(r.Context(), userID, r.PathValue("kind"), r.PathValue("id"))
	if err != nil {
		fail(w, h.logger, err, "Failed to get generation")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.NewGenerationResponse(g))
}

// deleteGeneration godoc
// @Summary Delete a generation
// @Tags generations
// @Param kind path string true "Generation kind"
// @Param id path string true "Generation ID"
// @Success 204
// @Failure 404 {string} string "not found"
// @Router /generations/{kind}/{id} [delete]
func (h *GenerationHandler) deleteGeneration(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	if err := h.generations.Delete(r.Context(), userID, r.PathValue("kind"), r.PathValue("id")); err != nil {
		fail(w, h.logger, err, "Failed to delete generation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
