package service

import (
	"context"
	"fmt"
	"strings"

	"creatorstudio/internal/llm"
	"creatorstudio/internal/model"
	"creatorstudio/internal/repository"

	"github.com/rs/zerolog"
)

type IdeasInput struct {
	Niche    string `json:"niche"`
	Audience string `json:"audience,omitempty"`
	Count    int    `json:"count"`
	Model    string `json:"model,omitempty"`
}

type Idea struct {
	Title string `json:"title"`
	Hook  string `json:"hook"`
	Angle string `json:"angle"`
}

type IdeasResult struct {
	Ideas []Idea `json:"ideas"`
}

type TitlesInput struct {
	Topic string `json:"topic"`
	Style string `json:"style,omitempty"`
	Count int    `json:"count"`
	Model string `json:"model,omitempty"`
}

type TitleSuggestion struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

type TitlesResult struct {
	Titles []TitleSuggestion `json:"titles"`
}

type TranslationInput struct {
	Script         string `json:"script"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language"`
	Model          string `json:"model,omitempty"`
}

type TranslationResult struct {
	TargetLanguage string `json:"target_language"`
	Text           string `json:"text"`
}

// ContentService produces the text-only generations.
type ContentService interface {
	GenerateIdeas(ctx context.Context, userID string, in IdeasInput) (*model.Generation, error)
	GenerateTitles(ctx context.Context, userID string, in TitlesInput) (*model.Generation, error)
	// Translate streams the translation through onDelta and stores the full
	// text once the stream ends.
	Translate(ctx context.Context, userID string, in TranslationInput, onDelta func(string) error) (*model.Generation, error)
}

type contentService struct {
	rec     *recorder
	clients *ModelClients
	logger  zerolog.Logger
}

func NewContentService(usage UsageService, repo repository.GenerationRepository, clients *ModelClients, logger zerolog.Logger) ContentService {
	return &contentService{
		rec:     &recorder{usage: usage, repo: repo},
		clients: clients,
		logger:  logger.With().Str("service", "ContentService").Logger(),
	}
}

const jsonOnly = "Respond with a single JSON object and nothing else."

func countOr(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func (s *contentService) GenerateIdeas(ctx context.Context, userID string, in IdeasInput) (*model.Generation, error) {
	if strings.TrimSpace(in.Niche) == "" {
		return nil, fmt.Errorf("%w: niche is required", ErrInvalidInput)
	}
	in.Count = countOr(in.Count, 10, 30)
	client, modelName := s.clients.For(ctx, userID, in.Model)

	var b strings.Builder
	fmt.Fprintf(&b, "Suggest %d YouTube video ideas for the niche %q.\n", in.Count, in.Niche)
	if in.Audience != "" {
		fmt.Fprintf(&b, "Target audience: %s.\n", in.Audience)
	}
	b.WriteString(`Return {"ideas":[{"title":"...","hook":"first 10 seconds","angle":"what makes it different"}]}.`)

	return s.rec.run(ctx, userID, model.KindIdea, modelName, in, func(ctx context.Context) (*output, error) {
		raw, err := client.Generate(ctx, llm.Request{
			Model:  modelName,
			System: "You are a YouTube strategist. " + jsonOnly,
			Prompt: b.String(),
		})
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Str("model", modelName).Msg("Idea generation failed")
			return nil, err
		}
		var res IdeasResult
		if err := llm.DecodeJSON(raw, &res); err != nil {
			return nil, err
		}
		if len(res.Ideas) == 0 {
			return nil, llm.ErrEmptyResponse
		}
		return &output{result: res}, nil
	})
}

func (s *contentService) GenerateTitles(ctx context.Context, userID string, in TitlesInput) (*model.Generation, error) {
	if strings.TrimSpace(in.Topic) == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidInput)
	}
	in.Count = countOr(in.Count, 5, 20)
	client, modelName := s.clients.For(ctx, userID, in.Model)

	style := in.Style
	if style == "" {
		style = "curiosity-driven"
	}
	prompt := fmt.Sprintf("Write %d %s YouTube titles under 70 characters for a video about: %s\n"+
		`Return {"titles":[{"title":"...","reason":"why it gets clicks"}]}.`, in.Count, style, in.Topic)

	return s.rec.run(ctx, userID, model.KindTitle, modelName, in, func(ctx context.Context) (*output, error) {
		raw, err := client.Generate(ctx, llm.Request{
			Model:  modelName,
			System: "You write high click-through YouTube titles. " + jsonOnly,
			Prompt: prompt,
		})
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Str("model", modelName).Msg("Title generation failed")
			return nil, err
		}
		var res TitlesResult
		if err := llm.DecodeJSON(raw, &res); err != nil {
			return nil, err
		}
		if len(res.Titles) == 0 {
			return nil, llm.ErrEmptyResponse
		}
		return &output{result: res}, nil
	})
}

func (s *contentService) Translate(ctx context.Context, userID string, in TranslationInput, onDelta func(string) error) (*model.Generation, error) {
	if strings.TrimSpace(in.Script) == "" || strings.TrimSpace(in.TargetLanguage) == "" {
		return nil, fmt.Errorf("%w: script and target language are required", ErrInvalidInput)
	}
	client, modelName := s.clients.For(ctx, userID, in.Model)

	system := "You translate YouTube video scripts. Keep scene markers, timestamps and line breaks unchanged. Output only the translation."
	prompt := fmt.Sprintf("Translate the following script into %s", in.TargetLanguage)
	if in.SourceLanguage != "" {
		prompt += " from " + in.SourceLanguage
	}
	prompt += ".\n\n" + in.Script

	return s.rec.run(ctx, userID, model.KindTranslation, modelName, in, func(ctx context.Context) (*output, error) {
		text, err := client.Stream(ctx, llm.Request{Model: modelName, System: system, Prompt: prompt}, onDelta)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Str("model", modelName).Msg("Translation stream failed")
			return nil, err
		}
		return &output{result: TranslationResult{TargetLanguage: in.TargetLanguage, Text: text}}, nil
	})
}
