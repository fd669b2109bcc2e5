package service

import (
	"context"
	"encoding/json"
	"fmt"

	"creatorstudio/internal/model"
	"creatorstudio/internal/repository"
	"creatorstudio/internal/storage"

	"github.com/rs/zerolog"
)

const maxListLimit = 100

// GenerationService is the read and delete side shared by every kind.
type GenerationService interface {
	List(ctx context.Context, userID, kind string, limit, offset int) ([]model.Generation, error)
	Get(ctx context.Context, userID, kind, id string) (*model.Generation, error)
	Delete(ctx context.Context, userID, kind, id string) error
}

type generationService struct {
	repo   repository.GenerationRepository
	store  storage.ObjectStore
	logger zerolog.Logger
}

func NewGenerationService(repo repository.GenerationRepository, store storage.ObjectStore, logger zerolog.Logger) GenerationService {
	return &generationService{repo: repo, store: store, logger: logger.With().Str("service", "GenerationService").Logger()}
}

func parseKind(kind string) (model.Kind, error) {
	k, ok := model.ParseKind(kind)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return k, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > maxListLimit {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *generationService) sign(ctx context.Context, g *model.Generation) {
	if g.StoragePath == nil || s.store == nil {
		return
	}
	url, err := s.store.PresignGet(ctx, *g.StoragePath)
	if err != nil {
		s.logger.Warn().Err(err).Str("storage_path", *g.StoragePath).Msg("Failed to presign generation asset")
		return
	}
	g.URL = url
}

func (s *generationService) List(ctx context.Context, userID, kind string, limit, offset int) ([]model.Generation, error) {
	k, err := parseKind(kind)
	if err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	items, err := s.repo.List(ctx, k, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range items {
		s.sign(ctx, &items[i])
	}
	return items, nil
}

func (s *generationService) Get(ctx context.Context, userID, kind, id string) (*model.Generation, error) {
	k, err := parseKind(kind)
	if err != nil {
		return nil, err
	}
	g, err := s.repo.Get(ctx, k, id, userID)
	if err != nil {
		return nil, translate(err)
	}
	s.sign(ctx, g)
	return g, nil
}

func (s *generationService) Delete(ctx context.Context, userID, kind, id string) error {
	k, err := parseKind(kind)
	if err != nil {
		return err
	}
	g, err := s.repo.Get(ctx, k, id, userID)
	if err != nil {
		return translate(err)
	}
	if err := s.repo.Delete(ctx, k, id, userID); err != nil {
		return translate(err)
	}
	if g.StoragePath != nil && s.store != nil {
		if err := s.store.Delete(ctx, *g.StoragePath); err != nil {
			s.logger.Warn().Err(err).Str("storage_path", *g.StoragePath).Msg("Orphaned generation asset")
		}
	}
	return nil
}

// recorder wraps one generation: reserve quota, produce, persist. The
// quota is handed back if anything fails before the row is stored.
type recorder struct {
	usage UsageService
	repo  repository.GenerationRepository
}

type output struct {
	result      any
	storagePath *string
}

func (r *recorder) run(ctx context.Context, userID string, kind model.Kind, modelName string, input any, produce func(ctx context.Context) (*output, error)) (*model.Generation, error) {
	release, err := r.usage.Reserve(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	g, err := r.produceAndStore(ctx, userID, kind, modelName, input, produce)
	if err != nil {
		release()
		return nil, err
	}
	return g, nil
}

func (r *recorder) produceAndStore(ctx context.Context, userID string, kind model.Kind, modelName string, input any, produce func(ctx context.Context) (*output, error)) (*model.Generation, error) {
	out, err := produce(ctx)
	if err != nil {
		return nil, err
	}
	rawIn, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encoding %s input: %w", kind, err)
	}
	rawOut, err := json.Marshal(out.result)
	if err != nil {
		return nil, fmt.Errorf("encoding %s result: %w", kind, err)
	}
	g := &model.Generation{
		UserID:      userID,
		Kind:        kind,
		Input:       rawIn,
		Result:      rawOut,
		Model:       modelName,
		StoragePath: out.storagePath,
	}
	// Stored even if the client went away mid-request.
	if err := r.repo.Create(context.WithoutCancel(ctx), g); err != nil {
		return nil, err
	}
	return g, nil
}
