package markercache

import (
	"testing"

	"github.com/killallgit/player-api/internal/models"
	"github.com/stretchr/testify/assert"
)

func uintPtr(v uint) *uint { return &v }

func TestCache_RebuildSection_And_SectionBreakdown(t *testing.T) {
	c := New()
	c.RebuildSection(1, map[uint]models.Breakdown{
		10: {Bucket: models.PackBucket(1, 1), Commercials: 0},
		11: {Bucket: models.PackBucket(1, 0), Commercials: 2},
		12: {Bucket: models.PackBucket(0, 0), Commercials: 0},
	}, nil)

	sb := c.SectionBreakdown(1)
	assert.Equal(t, 3, sb.ItemCount)
	assert.Equal(t, 2, sb.ItemsWithMarkers)
	assert.Equal(t, 2, sb.ItemsWithIntros)
	assert.Equal(t, 1, sb.ItemsWithCredits)
	assert.Equal(t, 2, sb.TotalIntros)
	assert.Equal(t, 1, sb.TotalCredits)
	assert.Equal(t, 2, sb.TotalCommercials)
	assert.Equal(t, 5, sb.TotalMarkers)
}

func TestCache_Delta_UpdatesBucketOnly(t *testing.T) {
	c := New()
	c.Set(1, 10, models.Breakdown{Bucket: models.PackBucket(0, 0), Commercials: 3}, Ancestors{})

	c.Delta(1, 10, 0, 0, 1, 0)

	b, ok := c.Breakdown(1, 10)
	assert.True(t, ok)
	assert.Equal(t, 1, b.Bucket.Intros())
	assert.Equal(t, 0, b.Bucket.Credits())
	assert.Equal(t, 3, b.Commercials, "commercial count must survive an intro/credits delta")
}

func TestCache_Remove(t *testing.T) {
	c := New()
	c.Set(1, 10, models.Breakdown{Bucket: models.PackBucket(1, 0)}, Ancestors{})
	c.Remove(1, 10)

	_, ok := c.Breakdown(1, 10)
	assert.False(t, ok)
}

func TestCache_ShowAndSeasonBreakdown_RollUp(t *testing.T) {
	c := New()
	show1, show2 := uintPtr(100), uintPtr(200)
	season1 := uintPtr(10)

	c.RebuildSection(1, map[uint]models.Breakdown{
		1: {Bucket: models.PackBucket(1, 1)},
		2: {Bucket: models.PackBucket(1, 0)},
		3: {Bucket: models.PackBucket(0, 1)},
	}, map[uint]Ancestors{
		1: {ShowID: show1, SeasonID: season1},
		2: {ShowID: show1, SeasonID: season1},
		3: {ShowID: show2},
	})

	showBD := c.ShowBreakdown(1, 100)
	assert.Equal(t, 2, showBD.ItemCount)
	assert.Equal(t, 2, showBD.TotalIntros)
	assert.Equal(t, 1, showBD.TotalCredits)

	seasonBD := c.SeasonBreakdown(1, 10)
	assert.Equal(t, 2, seasonBD.ItemCount)

	otherShowBD := c.ShowBreakdown(1, 200)
	assert.Equal(t, 1, otherShowBD.ItemCount)
}

func TestCache_SectionBreakdown_UnknownSection(t *testing.T) {
	c := New()
	sb := c.SectionBreakdown(999)
	assert.Equal(t, 0, sb.ItemCount)
	assert.Equal(t, 0, sb.Buckets)
}
