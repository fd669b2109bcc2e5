// Package timeline maps a narration subtitle track onto the scenes of a
// video script for the editing guide.
package timeline

import "strings"

// NoNarration fills image windows that no subtitle overlaps.
const NoNarration = "(no narration)"

// ImageWindow is the slice of time one generated image stays on screen.
type ImageWindow struct {
	Index     int     `json:"index"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Narration string  `json:"narration"`
}

// SceneTimeline groups the image windows of one scene.
type SceneTimeline struct {
	Index  int           `json:"index"`
	Prompt string        `json:"prompt"`
	Start  float64       `json:"start"`
	End    float64       `json:"end"`
	Images []ImageWindow `json:"images"`
}

// MapSRTToScenes divides totalDuration evenly across scenes and each scene
// evenly across imagesPerScene windows, then attaches the text of every
// subtitle overlapping a window. Subtitles starting at or after
// totalDuration are ignored. A non-positive totalDuration falls back to the
// end of the last subtitle.
func MapSRTToScenes(scenes []string, subs []Subtitle, imagesPerScene int, totalDuration float64) []SceneTimeline {
	if len(scenes) == 0 {
		return nil
	}
	if imagesPerScene < 1 {
		imagesPerScene = 1
	}
	if totalDuration <= 0 {
		totalDuration = Duration(subs)
	}

	n := len(scenes)
	sceneDur := totalDuration / float64(n)
	imageDur := sceneDur / float64(imagesPerScene)

	out := make([]SceneTimeline, n)
	for i, prompt := range scenes {
		sceneStart := float64(i) * sceneDur
		sceneEnd := float64(i+1) * sceneDur
		if i == n-1 {
			sceneEnd = totalDuration
		}

		images := make([]ImageWindow, imagesPerScene)
		for j := range images {
			start := sceneStart + float64(j)*imageDur
			end := sceneStart + float64(j+1)*imageDur
			if j == imagesPerScene-1 {
				end = sceneEnd
			}
			images[j] = ImageWindow{
				Index:     j,
				Start:     start,
				End:       end,
				Narration: narrationFor(subs, start, end, totalDuration),
			}
		}
		out[i] = SceneTimeline{Index: i, Prompt: prompt, Start: sceneStart, End: sceneEnd, Images: images}
	}
	return out
}

func narrationFor(subs []Subtitle, start, end, total float64) string {
	var parts []string
	for _, s := range subs {
		if s.Start >= total {
			continue
		}
		overlaps := s.Start < end && s.End > start
		// A zero-length cue is a point in [start, end).
		if s.End <= s.Start {
			overlaps = s.Start >= start && s.Start < end
		}
		if overlaps {
			if t := strings.TrimSpace(s.Text); t != "" {
				parts = append(parts, t)
			}
		}
	}
	if len(parts) == 0 {
		return NoNarration
	}
	return strings.Join(parts, " ")
}

// Windows flattens a timeline into its image windows in playback order.
func Windows(scenes []SceneTimeline) []ImageWindow {
	var out []ImageWindow
	for _, s := range scenes {
		out = append(out, s.Images...)
	}
	return out
}
