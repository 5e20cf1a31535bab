package sponsorblock

import (
	"sync"
	"time"
)

// segmentCache remembers the merged segments of recently played videos. A
// video without segments is cached too, as an empty list.
type segmentCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	limit   int
	now     func() time.Time
	byVideo map[string]cachedSegments
}

type cachedSegments struct {
	segs    []Segment
	expires time.Time
}

func newSegmentCache(ttl time.Duration, limit int) *segmentCache {
	return &segmentCache{
		ttl:     ttl,
		limit:   limit,
		now:     time.Now,
		byVideo: make(map[string]cachedSegments),
	}
}

func (c *segmentCache) lookup(videoID string) ([]Segment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hit, ok := c.byVideo[videoID]
	if !ok {
		return nil, false
	}
	if !c.now().Before(hit.expires) {
		delete(c.byVideo, videoID)
		return nil, false
	}
	return hit.segs, true
}

// store keeps segs for videoID. When the cache is full, expired videos are
// dropped first, then the one closest to expiry.
func (c *segmentCache) store(videoID string, segs []Segment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if _, ok := c.byVideo[videoID]; !ok && c.limit > 0 && len(c.byVideo) >= c.limit {
		c.evictLocked(now)
	}
	c.byVideo[videoID] = cachedSegments{segs: segs, expires: now.Add(c.ttl)}
}

func (c *segmentCache) evictLocked(now time.Time) {
	var oldest string
	var oldestExp time.Time
	for id, hit := range c.byVideo {
		if !now.Before(hit.expires) {
			delete(c.byVideo, id)
			continue
		}
		if oldest == "" || hit.expires.Before(oldestExp) {
			oldest, oldestExp = id, hit.expires
		}
	}
	if len(c.byVideo) >= c.limit && oldest != "" {
		delete(c.byVideo, oldest)
	}
}

func (c *segmentCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byVideo)
}
