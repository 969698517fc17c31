package cache

import (
	"context"
	"time"

	"github.com/vibeelabs/vibee-go/vibee"
)

// SectionCache holds home-screen section sets keyed by language. Mood
// updates are copy-on-write so readers always see a consistent
// snapshot; the persistent tier is written explicitly once a refresh
// settles, not on every mood update.
type SectionCache struct {
	tier *TwoTier[vibee.SectionSet]
}

// NewSectionCache creates a section cache instance over store.
func NewSectionCache(store vibee.KVStore, ttl time.Duration, logger vibee.Logger) *SectionCache {
	return &SectionCache{tier: NewTwoTier[vibee.SectionSet](store, "sections:", ttl, logger)}
}

// Get returns the section set for lang from either tier.
func (c *SectionCache) Get(ctx context.Context, lang string) (vibee.SectionSet, bool) {
	return c.tier.Get(ctx, lang)
}

// GetMemory returns the memory-tier section set for lang.
func (c *SectionCache) GetMemory(lang string) (vibee.SectionSet, bool) {
	return c.tier.GetMemory(lang)
}

// PutMemory replaces the memory snapshot for lang.
func (c *SectionCache) PutMemory(lang string, set vibee.SectionSet) {
	c.tier.PutMemory(lang, set)
}

// UpdateMood clones the current snapshot for lang, replaces one mood's
// songs and stores the clone in memory. The clone-and-replace runs
// atomically, so moods resolving concurrently never drop each other's
// updates. Returns the new snapshot.
func (c *SectionCache) UpdateMood(lang, mood string, songs []vibee.Song) vibee.SectionSet {
	return c.tier.Update(lang, func(current vibee.SectionSet, ok bool) vibee.SectionSet {
		if !ok {
			current = vibee.EmptySectionSet()
		}
		next := current.Clone()
		next[mood] = songs
		return next
	})
}

// Persist writes the current memory snapshot for lang to the
// persistent tier.
func (c *SectionCache) Persist(ctx context.Context, lang string) {
	c.tier.Persist(ctx, lang)
}

// Invalidate drops lang from both tiers.
func (c *SectionCache) Invalidate(ctx context.Context, lang string) {
	c.tier.Delete(ctx, lang)
}
