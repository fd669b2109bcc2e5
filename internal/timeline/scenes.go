package timeline

import (
	"regexp"
	"strings"
)

var sceneDelimiter = regexp.MustCompile(`(?im)^\s*---\s*SCENE\s+\d+`)

// CountSceneDelimiters counts "--- SCENE n" lines in a script.
func CountSceneDelimiters(script string) int {
	return len(sceneDelimiter.FindAllStringIndex(script, -1))
}

// SplitScenes cuts a script at its "--- SCENE n" lines. Text before the
// first delimiter is dropped. A script without delimiters is one scene.
func SplitScenes(script string) []string {
	script = strings.ReplaceAll(script, "\r\n", "\n")
	locs := sceneDelimiter.FindAllStringIndex(script, -1)
	if len(locs) == 0 {
		if s := strings.TrimSpace(script); s != "" {
			return []string{s}
		}
		return nil
	}

	scenes := make([]string, 0, len(locs))
	for i, loc := range locs {
		// Body starts after the rest of the delimiter line.
		bodyStart := loc[1]
		if nl := strings.IndexByte(script[bodyStart:], '\n'); nl >= 0 {
			bodyStart += nl + 1
		} else {
			bodyStart = len(script)
		}
		bodyEnd := len(script)
		if i+1 < len(locs) {
			bodyEnd = locs[i+1][0]
		}
		if bodyStart > bodyEnd {
			bodyStart = bodyEnd
		}
		scenes = append(scenes, strings.TrimSpace(script[bodyStart:bodyEnd]))
	}
	return scenes
}
