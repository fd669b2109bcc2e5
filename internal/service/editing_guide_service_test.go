package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"creatorstudio/internal/model"
	"creatorstudio/internal/timeline"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guideScript = `Intro text that is not a scene.
--- SCENE 1
The kitchen at dawn.
--- SCENE 2
The first bite.`

const guideSRT = `1
00:00:00,000 --> 00:00:04,000
Good morning.

2
00:00:05,000 --> 00:00:08,000
Let's eat.
`

func TestBuildTimelineUsesScenePrompts(t *testing.T) {
	total, scenes := BuildTimeline(EditingGuideInput{
		Script:         guideScript,
		ScenePrompts:   []string{"wide shot of a kitchen", " "},
		SRTContent:     guideSRT,
		ImagesPerScene: 2,
	})
	assert.InDelta(t, 8.0, total, 1e-9)
	require.Len(t, scenes, 2)
	assert.Equal(t, "wide shot of a kitchen", scenes[0].Prompt)
	assert.Contains(t, scenes[1].Prompt, "The first bite.")
	assert.Len(t, timeline.Windows(scenes), 4)
	assert.InDelta(t, 4.0, scenes[1].Start, 1e-9)
}

func TestBuildTimelineAddsSceneForEveryPrompt(t *testing.T) {
	prompts := []string{"desk", "camera", "lens", "outro card"}
	_, scenes := BuildTimeline(EditingGuideInput{
		Script:         "One continuous take with no scene markers.",
		ScenePrompts:   prompts,
		SRTContent:     guideSRT,
		ImagesPerScene: 2,
	})
	require.Len(t, scenes, len(prompts))
	assert.Len(t, timeline.Windows(scenes), 8)
	for i, p := range prompts {
		assert.Equal(t, p, scenes[i].Prompt)
	}
	assert.InDelta(t, 8.0, scenes[3].End, 1e-9)
}

func TestEditingGuideGenerateAndExport(t *testing.T) {
	llmc := &fakeLLM{reply: `{"notes":[{"scene":0,"notes":"Slow push in","b_roll":["steam"],"transition":"cut","music_cue":"soft piano","text_overlay":"6 AM"}]}`}
	repo := &fakeGenerations{}
	svc := NewEditingGuideService(&fakeUsage{}, repo, clientsFor(llmc), zerolog.Nop())
	ctx := context.Background()

	g, err := svc.Generate(ctx, "u1", EditingGuideInput{Script: guideScript, SRTContent: guideSRT})
	require.NoError(t, err)
	assert.Equal(t, model.KindEditingGuide, g.Kind)

	var res EditingGuideResult
	require.NoError(t, json.Unmarshal(g.Result, &res))
	require.Len(t, res.Scenes, 2)
	require.Len(t, res.Scenes[0].Images, 1)

	html, err := svc.ExportHTML(ctx, "u1", g.ID)
	require.NoError(t, err)
	doc := string(html)
	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, "<table>")
	assert.Contains(t, doc, "Scene 1 (00:00.000 - 00:04.000)")
	assert.Contains(t, doc, "Music: soft piano")

	_, err = svc.ExportHTML(ctx, "u2", g.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEditingGuideRequiresScript(t *testing.T) {
	svc := NewEditingGuideService(&fakeUsage{}, &fakeGenerations{}, clientsFor(&fakeLLM{}), zerolog.Nop())
	_, err := svc.Generate(context.Background(), "u1", EditingGuideInput{Script: "\n"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRenderMarkdownEscapesPipes(t *testing.T) {
	md := RenderMarkdown(EditingGuideResult{
		TotalDuration: 61.5,
		Scenes: []timeline.SceneTimeline{{
			Index: 0, Start: 0, End: 61.5, Prompt: "line one\nline two",
			Images: []timeline.ImageWindow{{Index: 0, Start: 0, End: 61.5, Narration: "a | b"}},
		}},
	})
	assert.Contains(t, md, "Total duration: 01:01.500")
	assert.Contains(t, md, "> line one line two")
	assert.Contains(t, md, `a \| b`)
}
