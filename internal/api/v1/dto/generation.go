package dto

import (
	"encoding/json"
	"time"

	"creatorstudio/internal/model"
	"creatorstudio/internal/service"
)

// IdeasRequest is the body of POST /ideas.
type IdeasRequest struct {
	Niche    string `json:"niche" validate:"required,max=200"`
	Audience string `json:"audience,omitempty" validate:"max=200"`
	Count    int    `json:"count,omitempty" validate:"omitempty,min=1,max=30"`
	Model    string `json:"model,omitempty"`
}

func (r IdeasRequest) Input() service.IdeasInput {
	return service.IdeasInput{Niche: r.Niche, Audience: r.Audience, Count: r.Count, Model: r.Model}
}

// TitlesRequest is the body of POST /titles.
type TitlesRequest struct {
	Topic string `json:"topic" validate:"required,max=500"`
	Style string `json:"style,omitempty" validate:"max=100"`
	Count int    `json:"count,omitempty" validate:"omitempty,min=1,max=20"`
	Model string `json:"model,omitempty"`
}

func (r TitlesRequest) Input() service.TitlesInput {
	return service.TitlesInput{Topic: r.Topic, Style: r.Style, Count: r.Count, Model: r.Model}
}

// TranslationRequest is the body of POST /translations.
type TranslationRequest struct {
	Script         string `json:"script" validate:"required,max=100000"`
	SourceLanguage string `json:"source_language,omitempty" validate:"max=50"`
	TargetLanguage string `json:"target_language" validate:"required,max=50"`
	Model          string `json:"model,omitempty"`
}

func (r TranslationRequest) Input() service.TranslationInput {
	return service.TranslationInput{Script: r.Script, SourceLanguage: r.SourceLanguage, TargetLanguage: r.TargetLanguage, Model: r.Model}
}

// ThumbnailRequest is the body of POST /thumbnails.
type ThumbnailRequest struct {
	VideoTitle  string `json:"video_title" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"max=2000"`
	Style       string `json:"style,omitempty" validate:"max=100"`
	Model       string `json:"model,omitempty"`
}

func (r ThumbnailRequest) Input() service.ThumbnailInput {
	return service.ThumbnailInput{VideoTitle: r.VideoTitle, Description: r.Description, Style: r.Style, Model: r.Model}
}

// ImageRequest is the body of POST /images.
type ImageRequest struct {
	Prompt string `json:"prompt" validate:"required,max=4000"`
	Size   string `json:"size,omitempty" validate:"omitempty,oneof=1024x1024 1792x1024 1024x1792"`
}

func (r ImageRequest) Input() service.ImageInput {
	return service.ImageInput{Prompt: r.Prompt, Size: r.Size}
}

// NicheSearchRequest is the body of POST /niches/search.
type NicheSearchRequest struct {
	Keyword    string `json:"keyword" validate:"required,max=100"`
	MaxResults int    `json:"max_results,omitempty" validate:"omitempty,min=5,max=50"`
	Model      string `json:"model,omitempty"`
}

func (r NicheSearchRequest) Input() service.NicheSearchInput {
	return service.NicheSearchInput{Keyword: r.Keyword, MaxResults: r.MaxResults, Model: r.Model}
}

// EditingGuideRequest is the body of POST /editing-guides.
type EditingGuideRequest struct {
	Script         string   `json:"script" validate:"required"`
	ScenePrompts   []string `json:"scenePrompts,omitempty"`
	AIModel        string   `json:"aiModel,omitempty"`
	SRTContent     string   `json:"srtContent,omitempty"`
	ImagesPerScene int      `json:"imagesPerScene,omitempty" validate:"omitempty,min=1,max=20"`
	TotalDuration  float64  `json:"totalDuration,omitempty" validate:"omitempty,gt=0"`
}

func (r EditingGuideRequest) Input() service.EditingGuideInput {
	return service.EditingGuideInput{
		Script:         r.Script,
		ScenePrompts:   r.ScenePrompts,
		AIModel:        r.AIModel,
		SRTContent:     r.SRTContent,
		ImagesPerScene: r.ImagesPerScene,
		TotalDuration:  r.TotalDuration,
	}
}

// GenerationResponse is a stored generation as returned by the API.
type GenerationResponse struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Model     string          `json:"model"`
	Input     json.RawMessage `json:"input"`
	Result    json.RawMessage `json:"result"`
	URL       string          `json:"url,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewGenerationResponse(g *model.Generation) GenerationResponse {
	return GenerationResponse{
		ID:        g.ID,
		Kind:      string(g.Kind),
		Model:     g.Model,
		Input:     g.Input,
		Result:    g.Result,
		URL:       g.URL,
		CreatedAt: g.CreatedAt,
	}
}

// GenerationListResponse is a page of generations.
type GenerationListResponse struct {
	Items  []GenerationResponse `json:"items"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}
