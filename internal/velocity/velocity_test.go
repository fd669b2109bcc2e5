package velocity

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketFor(t *testing.T) {
	tests := []struct {
		subs int64
		want Bucket
	}{
		{0, BucketMicro},
		{9_999, BucketMicro},
		{10_000, BucketSmall},
		{99_999, BucketSmall},
		{100_000, BucketMedium},
		{999_999, BucketMedium},
		{1_000_000, BucketLarge},
		{50_000_000, BucketLarge},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketFor(tt.subs), "subs=%d", tt.subs)
	}
}

func TestClassifyLabels(t *testing.T) {
	tests := []struct {
		vph  float64
		subs int64
		want Label
	}{
		{10, 5_000, LabelNormal},
		{50, 5_000, LabelTrending},
		{200, 5_000, LabelViral},
		{1000, 5_000, LabelExplosive},
		{999, 500_000, LabelNormal},
		{5000, 500_000, LabelViral},
		{150_000, 2_000_000, LabelExplosive},
	}
	for _, tt := range tests {
		c := Classify(tt.vph, tt.subs)
		assert.Equal(t, tt.want, c.Label, "vph=%v subs=%d", tt.vph, tt.subs)
		assert.NotEmpty(t, c.Reason)
	}
}

func TestClassifyScoreBands(t *testing.T) {
	c := Classify(0, 1)
	assert.Equal(t, 0, c.Score)

	c = Classify(50, 1)
	assert.Equal(t, 40, c.Score)

	c = Classify(200, 1)
	assert.Equal(t, 70, c.Score)

	c = Classify(1000, 1)
	assert.Equal(t, 90, c.Score)

	c = Classify(1_000_000, 1)
	assert.Equal(t, 100, c.Score)
}

func TestClassifyMonotonicInVPH(t *testing.T) {
	for _, subs := range []int64{1_000, 50_000, 500_000, 5_000_000} {
		prev := Classify(0, subs)
		for vph := 1.0; vph < 500_000; vph *= 1.07 {
			cur := Classify(vph, subs)
			require.GreaterOrEqual(t, cur.Label.Rank(), prev.Label.Rank(), "label dropped at vph=%v subs=%d", vph, subs)
			require.GreaterOrEqual(t, cur.Score, prev.Score, "score dropped at vph=%v subs=%d", vph, subs)
			require.LessOrEqual(t, cur.Score, 100)
			prev = cur
		}
	}
}

func TestClassifyMalformedInput(t *testing.T) {
	c := Classify(math.NaN(), 100)
	assert.Equal(t, LabelNormal, c.Label)
	assert.Equal(t, 0, c.Score)

	c = Classify(-40, 100)
	assert.Equal(t, LabelNormal, c.Label)
	assert.Equal(t, 0.0, c.VPH)
}

func TestVPH(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	assert.InDelta(t, 100.0, VPH(1000, now.Add(-10*time.Hour), now), 1e-9)
	// Younger than an hour counts as one hour.
	assert.InDelta(t, 500.0, VPH(500, now.Add(-5*time.Minute), now), 1e-9)
}

func TestShouldAlert(t *testing.T) {
	assert.False(t, ShouldAlert(LabelNormal))
	assert.False(t, ShouldAlert(LabelTrending))
	assert.True(t, ShouldAlert(LabelViral))
	assert.True(t, ShouldAlert(LabelExplosive))
}
