// Package velocity scores how fast a video is gaining views relative to the
// size of the channel that published it.
package velocity

import (
	"fmt"
	"math"
	"time"
)

type Bucket string

const (
	BucketMicro  Bucket = "micro"
	BucketSmall  Bucket = "small"
	BucketMedium Bucket = "medium"
	BucketLarge  Bucket = "large"
)

type Label string

const (
	LabelNormal    Label = "normal"
	LabelTrending  Label = "trending"
	LabelViral     Label = "viral"
	LabelExplosive Label = "explosive"
)

// Rank orders labels so callers can compare them.
func (l Label) Rank() int {
	switch l {
	case LabelTrending:
		return 1
	case LabelViral:
		return 2
	case LabelExplosive:
		return 3
	default:
		return 0
	}
}

// Thresholds are the views-per-hour at which a video enters each label.
type Thresholds struct {
	Trending  float64
	Viral     float64
	Explosive float64
}

var bucketThresholds = map[Bucket]Thresholds{
	BucketMicro:  {Trending: 50, Viral: 200, Explosive: 1000},
	BucketSmall:  {Trending: 200, Viral: 1000, Explosive: 5000},
	BucketMedium: {Trending: 1000, Viral: 5000, Explosive: 20000},
	BucketLarge:  {Trending: 5000, Viral: 20000, Explosive: 100000},
}

// Classification is the result of scoring a single video.
type Classification struct {
	Bucket Bucket  `json:"bucket"`
	Label  Label   `json:"label"`
	Score  int     `json:"score"`
	VPH    float64 `json:"vph"`
	Reason string  `json:"reason"`
}

// BucketFor maps a subscriber count to its size bucket.
func BucketFor(subscriberCount int64) Bucket {
	switch {
	case subscriberCount < 10_000:
		return BucketMicro
	case subscriberCount < 100_000:
		return BucketSmall
	case subscriberCount < 1_000_000:
		return BucketMedium
	default:
		return BucketLarge
	}
}

// ThresholdsFor returns the static thresholds of a bucket.
func ThresholdsFor(b Bucket) Thresholds {
	if t, ok := bucketThresholds[b]; ok {
		return t
	}
	return bucketThresholds[BucketLarge]
}

// Classify labels a views-per-hour figure against the thresholds of the
// channel's bucket and produces a 0-100 score. For a fixed bucket both label
// and score are non-decreasing in vph.
func Classify(vph float64, subscriberCount int64) Classification {
	if math.IsNaN(vph) || vph < 0 {
		vph = 0
	}
	bucket := BucketFor(subscriberCount)
	t := ThresholdsFor(bucket)

	c := Classification{Bucket: bucket, VPH: vph}
	switch {
	case vph >= t.Explosive:
		c.Label = LabelExplosive
		// 90 at the threshold, 100 at ten times the threshold.
		c.Score = 90 + int(10*math.Min(1, math.Log10(vph/t.Explosive)))
		c.Reason = fmt.Sprintf("%.0f views/hour is above the explosive threshold of %.0f for %s channels", vph, t.Explosive, bucket)
	case vph >= t.Viral:
		c.Label = LabelViral
		c.Score = band(vph, t.Viral, t.Explosive, 70, 89)
		c.Reason = fmt.Sprintf("%.0f views/hour is above the viral threshold of %.0f for %s channels", vph, t.Viral, bucket)
	case vph >= t.Trending:
		c.Label = LabelTrending
		c.Score = band(vph, t.Trending, t.Viral, 40, 69)
		c.Reason = fmt.Sprintf("%.0f views/hour is above the trending threshold of %.0f for %s channels", vph, t.Trending, bucket)
	default:
		c.Label = LabelNormal
		c.Score = band(vph, 0, t.Trending, 0, 39)
		c.Reason = fmt.Sprintf("%.0f views/hour is below the trending threshold of %.0f for %s channels", vph, t.Trending, bucket)
	}
	if c.Score > 100 {
		c.Score = 100
	}
	return c
}

// band maps v in [lo, hi) linearly onto [minScore, maxScore].
func band(v, lo, hi float64, minScore, maxScore int) int {
	if hi <= lo {
		return minScore
	}
	frac := (v - lo) / (hi - lo)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return minScore + int(math.Floor(frac*float64(maxScore-minScore)))
}

// VPH computes views per hour since publication. Videos younger than an hour
// are treated as one hour old so fresh uploads do not produce huge spikes.
func VPH(views int64, publishedAt, now time.Time) float64 {
	hours := now.Sub(publishedAt).Hours()
	if hours < 1 {
		hours = 1
	}
	return float64(views) / hours
}

// ShouldAlert reports whether a label is worth notifying the user about.
func ShouldAlert(l Label) bool {
	return l.Rank() >= LabelViral.Rank()
}
