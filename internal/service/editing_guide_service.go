package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"creatorstudio/internal/llm"
	"creatorstudio/internal/model"
	"creatorstudio/internal/repository"
	"creatorstudio/internal/timeline"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

type EditingGuideInput struct {
	Script         string   `json:"script"`
	ScenePrompts   []string `json:"scenePrompts,omitempty"`
	AIModel        string   `json:"aiModel,omitempty"`
	SRTContent     string   `json:"srtContent,omitempty"`
	ImagesPerScene int      `json:"imagesPerScene"`
	TotalDuration  float64  `json:"totalDuration,omitempty"`
}

type SceneNotes struct {
	Scene       int      `json:"scene"`
	Notes       string   `json:"notes"`
	BRoll       []string `json:"b_roll"`
	Transition  string   `json:"transition"`
	MusicCue    string   `json:"music_cue"`
	TextOverlay string   `json:"text_overlay"`
}

type EditingGuideResult struct {
	TotalDuration float64                  `json:"total_duration"`
	Scenes        []timeline.SceneTimeline `json:"scenes"`
	Notes         []SceneNotes             `json:"notes"`
}

// EditingGuideService builds a scene-by-scene editing plan from a script
// and its narration subtitles.
type EditingGuideService interface {
	Generate(ctx context.Context, userID string, in EditingGuideInput) (*model.Generation, error)
	// ExportHTML renders a stored guide as an HTML document.
	ExportHTML(ctx context.Context, userID, id string) ([]byte, error)
}

type editingGuideService struct {
	rec     *recorder
	repo    repository.GenerationRepository
	clients *ModelClients
	md      goldmark.Markdown
	logger  zerolog.Logger
}

func NewEditingGuideService(usage UsageService, repo repository.GenerationRepository, clients *ModelClients, logger zerolog.Logger) EditingGuideService {
	return &editingGuideService{
		rec:     &recorder{usage: usage, repo: repo},
		repo:    repo,
		clients: clients,
		md:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:  logger.With().Str("service", "EditingGuideService").Logger(),
	}
}

// BuildTimeline splits the script into scenes and maps the subtitles onto
// them. Scene prompts, when given, replace the scene text positionally.
func BuildTimeline(in EditingGuideInput) (float64, []timeline.SceneTimeline) {
	scenes := timeline.SplitScenes(in.Script)
	// Every prompt gets its own scene, even past the script's delimiters.
	for len(scenes) < len(in.ScenePrompts) {
		scenes = append(scenes, "")
	}
	subs := timeline.ParseSRT(in.SRTContent)
	total := in.TotalDuration
	if total <= 0 {
		total = timeline.Duration(subs)
	}
	mapped := timeline.MapSRTToScenes(scenes, subs, in.ImagesPerScene, total)
	for i := range mapped {
		if i < len(in.ScenePrompts) && strings.TrimSpace(in.ScenePrompts[i]) != "" {
			mapped[i].Prompt = in.ScenePrompts[i]
		}
	}
	return total, mapped
}

func (s *editingGuideService) Generate(ctx context.Context, userID string, in EditingGuideInput) (*model.Generation, error) {
	if strings.TrimSpace(in.Script) == "" {
		return nil, fmt.Errorf("%w: script is required", ErrInvalidInput)
	}
	if in.ImagesPerScene < 1 {
		in.ImagesPerScene = 1
	}
	client, modelName := s.clients.For(ctx, userID, in.AIModel)

	return s.rec.run(ctx, userID, model.KindEditingGuide, modelName, in, func(ctx context.Context) (*output, error) {
		total, scenes := BuildTimeline(in)
		plan, err := json.Marshal(scenes)
		if err != nil {
			return nil, fmt.Errorf("encoding timeline: %w", err)
		}
		raw, err := client.Generate(ctx, llm.Request{
			Model:  modelName,
			System: "You are a YouTube video editor writing instructions for an assistant editor. " + jsonOnly,
			Prompt: fmt.Sprintf("Scene timeline (seconds) with narration per image window:\n%s\n\n"+
				`For every scene return {"notes":[{"scene":<index from the timeline>,"notes":"...","b_roll":["..."],"transition":"...","music_cue":"...","text_overlay":"..."}]}.`, plan),
		})
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Str("model", modelName).Msg("Editing notes generation failed")
			return nil, err
		}
		var notes struct {
			Notes []SceneNotes `json:"notes"`
		}
		if err := llm.DecodeJSON(raw, &notes); err != nil {
			return nil, err
		}
		return &output{result: EditingGuideResult{TotalDuration: total, Scenes: scenes, Notes: notes.Notes}}, nil
	})
}

func (s *editingGuideService) ExportHTML(ctx context.Context, userID, id string) ([]byte, error) {
	g, err := s.repo.Get(ctx, model.KindEditingGuide, id, userID)
	if err != nil {
		return nil, translate(err)
	}
	var guide EditingGuideResult
	if err := json.Unmarshal(g.Result, &guide); err != nil {
		return nil, fmt.Errorf("decoding editing guide %s: %w", id, err)
	}
	var body bytes.Buffer
	if err := s.md.Convert([]byte(RenderMarkdown(guide)), &body); err != nil {
		return nil, fmt.Errorf("rendering editing guide %s: %w", id, err)
	}
	var doc bytes.Buffer
	doc.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Editing guide</title></head><body>\n")
	doc.Write(body.Bytes())
	doc.WriteString("</body></html>\n")
	return doc.Bytes(), nil
}

// RenderMarkdown lays out a guide as markdown: one section per scene with
// its image windows as a table and the editor notes below.
func RenderMarkdown(g EditingGuideResult) string {
	notes := make(map[int]SceneNotes, len(g.Notes))
	for _, n := range g.Notes {
		notes[n.Scene] = n
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Editing guide\n\nTotal duration: %s\n", timestamp(g.TotalDuration))
	for _, sc := range g.Scenes {
		fmt.Fprintf(&b, "\n## Scene %d (%s - %s)\n\n", sc.Index+1, timestamp(sc.Start), timestamp(sc.End))
		if p := strings.TrimSpace(sc.Prompt); p != "" {
			fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(p, "\n", " "))
		}
		b.WriteString("| Image | Start | End | Narration |\n|---|---|---|---|\n")
		for _, w := range sc.Images {
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", w.Index+1, timestamp(w.Start), timestamp(w.End), strings.ReplaceAll(w.Narration, "|", "\\|"))
		}
		n, ok := notes[sc.Index]
		if !ok {
			continue
		}
		b.WriteString("\n")
		if n.Notes != "" {
			fmt.Fprintf(&b, "%s\n\n", n.Notes)
		}
		for _, r := range n.BRoll {
			fmt.Fprintf(&b, "- B-roll: %s\n", r)
		}
		if n.Transition != "" {
			fmt.Fprintf(&b, "- Transition: %s\n", n.Transition)
		}
		if n.MusicCue != "" {
			fmt.Fprintf(&b, "- Music: %s\n", n.MusicCue)
		}
		if n.TextOverlay != "" {
			fmt.Fprintf(&b, "- On-screen text: %s\n", n.TextOverlay)
		}
	}
	return b.String()
}

func timestamp(sec float64) string {
	ms := int64(sec*1000 + 0.5)
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}
