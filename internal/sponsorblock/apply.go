package sponsorblock

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	// edgeSlack is how close to either end of a video a segment has to be
	// to count as its intro or outro.
	edgeSlack = 2.0
	// minPlayable keeps a mislabelled video from being cut to nothing.
	minPlayable = 10

	cacheTTL   = time.Hour
	cacheLimit = 1024
)

// Trimmer cuts the non-music intro and outro off music videos.
type Trimmer struct {
	client     *Client
	cache      *segmentCache
	disableFor time.Duration

	mu            sync.Mutex
	disabledUntil time.Time
}

func NewTrimmer(timeoutMinutes int) *Trimmer {
	return &Trimmer{
		client:     NewClient(),
		cache:      newSegmentCache(cacheTTL, cacheLimit),
		disableFor: time.Duration(timeoutMinutes) * time.Minute,
	}
}

func (t *Trimmer) disabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Now().Before(t.disabledUntil)
}

func (t *Trimmer) backOff() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabledUntil = time.Now().Add(t.disableFor)
}

// Trim returns the part of videoID worth playing, in seconds. With nothing
// to cut it returns 0, 0. note describes what was cut.
func (t *Trimmer) Trim(ctx context.Context, videoID string, length int) (start, end int, note string) {
	if videoID == "" || length <= 0 || t.disabled() {
		return 0, 0, ""
	}
	segs, ok := t.cache.lookup(videoID)
	if !ok {
		var err error
		segs, err = t.client.GetSegments(ctx, videoID, []string{CategoryMusicOfftopic})
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				t.backOff()
			}
			slog.Debug("sponsorblock lookup failed", "videoID", videoID, "err", err)
			return 0, 0, ""
		}
		segs = MergeSegments(segs)
		t.cache.store(videoID, segs)
	}
	return window(segs, length)
}

// window finds the intro and outro among merged segments.
func window(segs []Segment, length int) (start, end int, note string) {
	if len(segs) == 0 {
		return 0, 0, ""
	}
	var parts []string
	end = length

	if last := segs[len(segs)-1]; last.End() >= float64(length)-edgeSlack {
		if cut := int(last.Start()); cut > 0 && cut < length {
			end = cut
			parts = append(parts, "trimmed outro")
		}
	}
	if first := segs[0]; first.Start() <= edgeSlack {
		if skip := int(first.End()); skip > 0 && skip < end {
			start = skip
			parts = append(parts, "skipped intro")
		}
	}
	if len(parts) == 0 || end-start < minPlayable {
		return 0, 0, ""
	}
	if end == length {
		end = 0
	}
	return start, end, strings.Join(parts, ", ")
}
