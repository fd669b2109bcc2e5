package service

import (
	"context"
	"fmt"
	"strings"

	"creatorstudio/internal/llm"
	"creatorstudio/internal/model"
	"creatorstudio/internal/repository"
	"creatorstudio/internal/storage"

	"github.com/rs/zerolog"
)

const thumbnailSize = "1792x1024"

var imageSizes = map[string]bool{"1024x1024": true, "1792x1024": true, "1024x1792": true}

type ThumbnailInput struct {
	VideoTitle  string `json:"video_title"`
	Description string `json:"description,omitempty"`
	Style       string `json:"style,omitempty"`
	Model       string `json:"model,omitempty"`
}

type ThumbnailResult struct {
	ImagePrompt string `json:"image_prompt"`
	OverlayText string `json:"overlay_text"`
	Size        string `json:"size"`
}

type ImageInput struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
}

type ImageResult struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
}

// MediaService renders images and keeps them in object storage.
type MediaService interface {
	GenerateThumbnail(ctx context.Context, userID string, in ThumbnailInput) (*model.Generation, error)
	GenerateImage(ctx context.Context, userID string, in ImageInput) (*model.Generation, error)
}

type mediaService struct {
	rec        *recorder
	clients    *ModelClients
	images     llm.ImageGenerator
	imageModel string
	store      storage.ObjectStore
	logger     zerolog.Logger
}

func NewMediaService(usage UsageService, repo repository.GenerationRepository, clients *ModelClients, images llm.ImageGenerator, imageModel string, store storage.ObjectStore, logger zerolog.Logger) MediaService {
	return &mediaService{
		rec:        &recorder{usage: usage, repo: repo},
		clients:    clients,
		images:     images,
		imageModel: imageModel,
		store:      store,
		logger:     logger.With().Str("service", "MediaService").Logger(),
	}
}

// render generates an image and uploads it, returning the object key.
func (s *mediaService) render(ctx context.Context, userID string, kind model.Kind, prompt, size string) (string, error) {
	if s.images == nil {
		return "", fmt.Errorf("%w: image generation", llm.ErrProviderUnavailable)
	}
	png, err := s.images.GenerateImage(ctx, prompt, size)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("Image generation failed")
		return "", err
	}
	key := storage.ObjectKey(string(kind), userID, ".png")
	if err := s.store.Put(ctx, key, png, "image/png"); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to upload generated image")
		return "", err
	}
	return key, nil
}

func (s *mediaService) GenerateThumbnail(ctx context.Context, userID string, in ThumbnailInput) (*model.Generation, error) {
	if strings.TrimSpace(in.VideoTitle) == "" {
		return nil, fmt.Errorf("%w: video title is required", ErrInvalidInput)
	}
	client, modelName := s.clients.For(ctx, userID, in.Model)

	var b strings.Builder
	fmt.Fprintf(&b, "Design a YouTube thumbnail for the video %q.\n", in.VideoTitle)
	if in.Description != "" {
		fmt.Fprintf(&b, "Video summary: %s\n", in.Description)
	}
	if in.Style != "" {
		fmt.Fprintf(&b, "Visual style: %s\n", in.Style)
	}
	b.WriteString(`Return {"image_prompt":"detailed prompt for an image model, no text in the image","overlay_text":"at most 4 words"}.`)

	return s.rec.run(ctx, userID, model.KindThumbnail, modelName, in, func(ctx context.Context) (*output, error) {
		raw, err := client.Generate(ctx, llm.Request{
			Model:  modelName,
			System: "You are a thumbnail art director. " + jsonOnly,
			Prompt: b.String(),
		})
		if err != nil {
			return nil, err
		}
		var res ThumbnailResult
		if err := llm.DecodeJSON(raw, &res); err != nil {
			return nil, err
		}
		if strings.TrimSpace(res.ImagePrompt) == "" {
			return nil, llm.ErrEmptyResponse
		}
		res.Size = thumbnailSize
		key, err := s.render(ctx, userID, model.KindThumbnail, res.ImagePrompt, thumbnailSize)
		if err != nil {
			return nil, err
		}
		return &output{result: res, storagePath: &key}, nil
	})
}

func (s *mediaService) GenerateImage(ctx context.Context, userID string, in ImageInput) (*model.Generation, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	if in.Size == "" {
		in.Size = "1024x1024"
	}
	if !imageSizes[in.Size] {
		return nil, fmt.Errorf("%w: unsupported size %q", ErrInvalidInput, in.Size)
	}
	return s.rec.run(ctx, userID, model.KindImage, s.imageModel, in, func(ctx context.Context) (*output, error) {
		key, err := s.render(ctx, userID, model.KindImage, in.Prompt, in.Size)
		if err != nil {
			return nil, err
		}
		return &output{result: ImageResult{Prompt: in.Prompt, Size: in.Size}, storagePath: &key}, nil
	})
}
