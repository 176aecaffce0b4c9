package markercache

import (
	"sync"

	"github.com/killallgit/player-api/internal/models"
)

// Ancestors carries the denormalized season/show ids a cache entry
// needs to answer show/season roll-up queries without walking the
// library database again.
type Ancestors struct {
	SeasonID *uint
	ShowID   *uint
}

type entry struct {
	breakdown models.Breakdown
	ancestors Ancestors
}

// Cache is the in-memory per-section breakdown index (component C). It
// is rebuilt from the library database at startup and kept correct
// thereafter by post-commit calls from the CRUD engine; the Purge
// Reconciler's Restore reaches it through the CRUD engine's Add. The
// Shift engine (type never changes) and Purge Ignore do not touch it.
type Cache struct {
	mu       sync.RWMutex
	sections map[uint]map[uint]entry // sectionID -> parentID -> entry
}

// New creates an empty cache. Call RebuildSection (or rebuildCache in
// internal/service at the wiring layer) before serving aggregate queries.
func New() *Cache {
	return &Cache{sections: make(map[uint]map[uint]entry)}
}

// RebuildSection replaces the entire index for one section in one pass,
// per spec's rebuild-from-SectionOverview requirement.
func (c *Cache) RebuildSection(sectionID uint, breakdowns map[uint]models.Breakdown, ancestors map[uint]Ancestors) {
	sec := make(map[uint]entry, len(breakdowns))
	for parentID, b := range breakdowns {
		sec[parentID] = entry{breakdown: b, ancestors: ancestors[parentID]}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sections[sectionID] = sec
}

func (c *Cache) section(sectionID uint) map[uint]entry {
	if sec, ok := c.sections[sectionID]; ok {
		return sec
	}
	return nil
}

// Set installs or replaces one parent's full breakdown, used by every
// Add (and so by Purge Restore, which goes through Add), where the
// ancestry may not already be present in the cache.
func (c *Cache) Set(sectionID, parentID uint, breakdown models.Breakdown, ancestors Ancestors) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sec, ok := c.sections[sectionID]
	if !ok {
		sec = make(map[uint]entry)
		c.sections[sectionID] = sec
	}
	sec[parentID] = entry{breakdown: breakdown, ancestors: ancestors}
}

// Delta records a committed mutation that changed a parent's intro or
// credits counts, per the (parentId, oldIntros, oldCredits, newIntros,
// newCredits) mutation protocol. It is a no-op call when a mutation
// never touches intro/credits counts (plain commercial edits, shifts).
func (c *Cache) Delta(sectionID, parentID uint, oldIntros, oldCredits, newIntros, newCredits int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sec, ok := c.sections[sectionID]
	if !ok {
		sec = make(map[uint]entry)
		c.sections[sectionID] = sec
	}
	e := sec[parentID]
	e.breakdown.Bucket = models.PackBucket(newIntros, newCredits)
	sec[parentID] = e
}

// SetCommercials updates a parent's commercial count without disturbing
// its intro/credits bucket (commercial markers are excluded from the
// breakdown, see models.Breakdown).
func (c *Cache) SetCommercials(sectionID, parentID uint, commercials int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sec, ok := c.sections[sectionID]
	if !ok {
		sec = make(map[uint]entry)
		c.sections[sectionID] = sec
	}
	e := sec[parentID]
	e.breakdown.Commercials = commercials
	sec[parentID] = e
}

// Remove drops a parent's entry entirely. Used when a parent's last
// marker is deleted.
func (c *Cache) Remove(sectionID, parentID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sec, ok := c.sections[sectionID]; ok {
		delete(sec, parentID)
	}
}

// Breakdown returns one parent's current cached breakdown.
func (c *Cache) Breakdown(sectionID, parentID uint) (models.Breakdown, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sec := c.section(sectionID)
	if sec == nil {
		return models.Breakdown{}, false
	}
	e, ok := sec[parentID]
	return e.breakdown, ok
}

// SectionBreakdown computes the full aggregate for a section in
// O(parents in scope).
func (c *Cache) SectionBreakdown(sectionID uint) models.SectionBreakdown {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return summarize(c.section(sectionID))
}

// ShowBreakdown rolls up every cached entry under one show.
func (c *Cache) ShowBreakdown(sectionID, showID uint) models.SectionBreakdown {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return summarize(filter(c.section(sectionID), func(e entry) bool {
		return e.ancestors.ShowID != nil && *e.ancestors.ShowID == showID
	}))
}

// SeasonBreakdown rolls up every cached entry under one season.
func (c *Cache) SeasonBreakdown(sectionID, seasonID uint) models.SectionBreakdown {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return summarize(filter(c.section(sectionID), func(e entry) bool {
		return e.ancestors.SeasonID != nil && *e.ancestors.SeasonID == seasonID
	}))
}

func filter(sec map[uint]entry, keep func(entry) bool) map[uint]entry {
	out := make(map[uint]entry)
	for id, e := range sec {
		if keep(e) {
			out[id] = e
		}
	}
	return out
}

func summarize(sec map[uint]entry) models.SectionBreakdown {
	sb := models.SectionBreakdown{
		CollapsedBuckets: make(map[int]int),
		IntroBuckets:     make(map[int]int),
		CreditsBuckets:   make(map[int]int),
	}
	distinct := make(map[models.PackedBucket]struct{})

	for _, e := range sec {
		sb.ItemCount++
		intros, credits := e.breakdown.Bucket.Intros(), e.breakdown.Bucket.Credits()
		total := e.breakdown.TotalMarkers()

		distinct[e.breakdown.Bucket] = struct{}{}
		sb.CollapsedBuckets[total]++
		sb.IntroBuckets[intros]++
		sb.CreditsBuckets[credits]++

		sb.TotalIntros += intros
		sb.TotalCredits += credits
		sb.TotalCommercials += e.breakdown.Commercials
		sb.TotalMarkers += total

		if total > 0 {
			sb.ItemsWithMarkers++
		}
		if intros > 0 {
			sb.ItemsWithIntros++
		}
		if credits > 0 {
			sb.ItemsWithCredits++
		}
	}

	sb.Buckets = len(distinct)
	return sb
}
