package timeline

import (
	"regexp"
	"strconv"
	"strings"
)

// Subtitle is one cue of an SRT track. Times are in seconds.
type Subtitle struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

var timecodeLine = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2}):(\d{2})[,.](\d{1,3})\s*-->\s*(\d{1,2}):(\d{2}):(\d{2})[,.](\d{1,3})`)

// ParseSRT parses SRT content. Blocks that do not carry a valid index and
// timecode line, or whose end precedes their start, are dropped.
func ParseSRT(content string) []Subtitle {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimPrefix(content, "\ufeff")

	var subs []Subtitle
	for _, block := range splitBlocks(content) {
		lines := strings.Split(block, "\n")
		if len(lines) < 2 {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			continue
		}
		m := timecodeLine.FindStringSubmatch(lines[1])
		if m == nil {
			continue
		}
		start := toSeconds(m[1], m[2], m[3], m[4])
		end := toSeconds(m[5], m[6], m[7], m[8])
		if end < start {
			continue
		}
		text := strings.TrimSpace(strings.Join(lines[2:], " "))
		subs = append(subs, Subtitle{Index: idx, Start: start, End: end, Text: text})
	}
	return subs
}

func splitBlocks(content string) []string {
	var blocks []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, strings.Join(cur, "\n"))
			cur = nil
		}
	}
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return blocks
}

func toSeconds(h, m, s, ms string) float64 {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	ss, _ := strconv.Atoi(s)
	// "5" means 500ms, "05" means 50ms.
	for len(ms) < 3 {
		ms += "0"
	}
	milli, _ := strconv.Atoi(ms)
	return float64(hh*3600+mm*60+ss) + float64(milli)/1000
}

// Duration returns the end of the last cue, or 0 for an empty track.
func Duration(subs []Subtitle) float64 {
	var max float64
	for _, s := range subs {
		if s.End > max {
			max = s.End
		}
	}
	return max
}
