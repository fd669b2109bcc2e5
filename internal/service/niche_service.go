package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"creatorstudio/internal/llm"
	"creatorstudio/internal/model"
	"creatorstudio/internal/repository"
	"creatorstudio/internal/velocity"
	"creatorstudio/internal/youtube"

	"github.com/rs/zerolog"
)

// VideoSource is the YouTube surface the services use.
type VideoSource interface {
	Channel(ctx context.Context, idOrHandle string) (*youtube.Channel, error)
	RecentVideos(ctx context.Context, playlistID string, max int64) ([]youtube.Video, error)
	SearchVideos(ctx context.Context, query string, max int64) ([]youtube.Video, error)
}

type NicheSearchInput struct {
	Keyword    string `json:"keyword"`
	MaxResults int    `json:"max_results"`
	Model      string `json:"model,omitempty"`
}

type NicheVideo struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ChannelTitle string    `json:"channel_title"`
	PublishedAt  time.Time `json:"published_at"`
	Views        int64     `json:"views"`
	VPH          float64   `json:"vph"`
}

type NicheStats struct {
	Videos          int     `json:"videos"`
	UniqueChannels  int     `json:"unique_channels"`
	TotalViews      int64   `json:"total_views"`
	AverageViews    float64 `json:"average_views"`
	MedianViews     int64   `json:"median_views"`
	AverageVPH      float64 `json:"average_vph"`
	RecentShare     float64 `json:"recent_share"` // share of videos published in the last 30 days
	TopChannelShare float64 `json:"top_channel_share"`
}

type NicheAssessment struct {
	Competition      string   `json:"competition"`
	OpportunityScore int      `json:"opportunity_score"`
	Summary          string   `json:"summary"`
	SuggestedAngles  []string `json:"suggested_angles"`
}

type NicheSearchResult struct {
	Keyword    string          `json:"keyword"`
	Stats      NicheStats      `json:"stats"`
	TopVideos  []NicheVideo    `json:"top_videos"`
	Assessment NicheAssessment `json:"assessment"`
}

type NicheService interface {
	Search(ctx context.Context, userID string, in NicheSearchInput) (*model.Generation, error)
}

type nicheService struct {
	rec     *recorder
	clients *ModelClients
	videos  VideoSource
	now     func() time.Time
	logger  zerolog.Logger
}

func NewNicheService(usage UsageService, repo repository.GenerationRepository, clients *ModelClients, videos VideoSource, logger zerolog.Logger) NicheService {
	return &nicheService{
		rec:     &recorder{usage: usage, repo: repo},
		clients: clients,
		videos:  videos,
		now:     time.Now,
		logger:  logger.With().Str("service", "NicheService").Logger(),
	}
}

// summarize computes the niche statistics and ranks videos by views per hour.
func summarize(videos []youtube.Video, now time.Time) (NicheStats, []NicheVideo) {
	var st NicheStats
	if len(videos) == 0 {
		return st, nil
	}
	ranked := make([]NicheVideo, 0, len(videos))
	views := make([]int64, 0, len(videos))
	perChannel := map[string]int64{}
	recent := 0
	var vphSum float64
	for _, v := range videos {
		vph := velocity.VPH(v.Views, v.PublishedAt, now)
		ranked = append(ranked, NicheVideo{
			ID: v.ID, Title: v.Title, ChannelTitle: v.ChannelTitle,
			PublishedAt: v.PublishedAt, Views: v.Views, VPH: vph,
		})
		views = append(views, v.Views)
		perChannel[v.ChannelID] += v.Views
		st.TotalViews += v.Views
		vphSum += vph
		if now.Sub(v.PublishedAt) <= 30*24*time.Hour {
			recent++
		}
	}

	n := len(videos)
	st.Videos = n
	st.UniqueChannels = len(perChannel)
	st.AverageViews = float64(st.TotalViews) / float64(n)
	st.AverageVPH = vphSum / float64(n)
	st.RecentShare = float64(recent) / float64(n)

	sort.Slice(views, func(i, j int) bool { return views[i] < views[j] })
	if n%2 == 1 {
		st.MedianViews = views[n/2]
	} else {
		st.MedianViews = (views[n/2-1] + views[n/2]) / 2
	}
	var top int64
	for _, cv := range perChannel {
		top = max(top, cv)
	}
	if st.TotalViews > 0 {
		st.TopChannelShare = float64(top) / float64(st.TotalViews)
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].VPH > ranked[j].VPH })
	return st, ranked
}

func (s *nicheService) Search(ctx context.Context, userID string, in NicheSearchInput) (*model.Generation, error) {
	in.Keyword = strings.TrimSpace(in.Keyword)
	if in.Keyword == "" {
		return nil, fmt.Errorf("%w: keyword is required", ErrInvalidInput)
	}
	in.MaxResults = countOr(in.MaxResults, 25, 50)
	client, modelName := s.clients.For(ctx, userID, in.Model)

	return s.rec.run(ctx, userID, model.KindNicheSearch, modelName, in, func(ctx context.Context) (*output, error) {
		videos, err := s.videos.SearchVideos(ctx, in.Keyword, int64(in.MaxResults))
		if err != nil {
			s.logger.Error().Err(err).Str("keyword", in.Keyword).Msg("YouTube search failed")
			return nil, err
		}
		stats, ranked := summarize(videos, s.now())
		if len(ranked) > 10 {
			ranked = ranked[:10]
		}

		digest, err := json.Marshal(map[string]any{"stats": stats, "top_videos": ranked})
		if err != nil {
			return nil, fmt.Errorf("encoding niche digest: %w", err)
		}
		raw, err := client.Generate(ctx, llm.Request{
			Model:  modelName,
			System: "You assess YouTube niches for new creators. " + jsonOnly,
			Prompt: fmt.Sprintf("Keyword: %s\nSearch statistics:\n%s\n\n"+
				`Return {"competition":"low|medium|high","opportunity_score":0-100,"summary":"...","suggested_angles":["..."]}.`,
				in.Keyword, digest),
		})
		if err != nil {
			return nil, err
		}
		var assessment NicheAssessment
		if err := llm.DecodeJSON(raw, &assessment); err != nil {
			return nil, err
		}
		assessment.OpportunityScore = min(max(assessment.OpportunityScore, 0), 100)

		return &output{result: NicheSearchResult{
			Keyword:    in.Keyword,
			Stats:      stats,
			TopVideos:  ranked,
			Assessment: assessment,
		}}, nil
	})
}
