package model

import (
	"encoding/json"
	"time"
)

// Kind names a family of generated content. Each kind has its own table.
type Kind string

const (
	KindIdea         Kind = "ideas"
	KindTitle        Kind = "titles"
	KindTranslation  Kind = "translations"
	KindThumbnail    Kind = "thumbnails"
	KindImage        Kind = "images"
	KindNicheSearch  Kind = "niche_searches"
	KindEditingGuide Kind = "editing_guides"
)

var kinds = map[Kind]bool{
	KindIdea:         true,
	KindTitle:        true,
	KindTranslation:  true,
	KindThumbnail:    true,
	KindImage:        true,
	KindNicheSearch:  true,
	KindEditingGuide: true,
}

// ParseKind accepts the kind names used in URLs; "niche-searches" and
// "editing-guides" are accepted as aliases.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "niche-searches":
		s = string(KindNicheSearch)
	case "editing-guides":
		s = string(KindEditingGuide)
	}
	k := Kind(s)
	return k, kinds[k]
}

// Table returns the table holding rows of this kind.
func (k Kind) Table() string {
	return string(k)
}

// Generation is one stored AI result. URL is a short-lived download link for
// StoragePath, filled on read.
type Generation struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"user_id"`
	Kind        Kind            `db:"-" json:"kind"`
	Input       json.RawMessage `db:"input" json:"input"`
	Result      json.RawMessage `db:"result" json:"result"`
	Model       string          `db:"model" json:"model"`
	StoragePath *string         `db:"storage_path" json:"storage_path,omitempty"`
	URL         string          `db:"-" json:"url,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
