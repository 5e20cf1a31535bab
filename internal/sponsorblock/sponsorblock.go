package sponsorblock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"
)

const defaultBase = "https://sponsor.ajay.app/api/skipSegments"

// CategoryMusicOfftopic marks the non-music parts of a music video.
const CategoryMusicOfftopic = "music_offtopic"

// ErrUnavailable means the API is overloaded and should be left alone for a
// while.
var ErrUnavailable = errors.New("sponsorblock unavailable")

type Segment struct {
	Category   string     `json:"category"`
	Segment    [2]float64 `json:"segment"` // [start, end] seconds
	UUID       string     `json:"UUID"`
	ActionType string     `json:"actionType"`
}

func (s Segment) Start() float64 { return s.Segment[0] }
func (s Segment) End() float64   { return s.Segment[1] }

type Client struct {
	http *http.Client
	base string
}

func NewClient() *Client {
	return &Client{
		http: &http.Client{Timeout: 8 * time.Second},
		base: defaultBase,
	}
}

// GetSegments fetches segments of the given categories for a YouTube video.
// A video nobody submitted segments for has none.
func (c *Client) GetSegments(ctx context.Context, videoID string, categories []string) ([]Segment, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("videoID", videoID)
	for _, cat := range categories {
		q.Add("category", cat)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)
	default:
		return nil, fmt.Errorf("sponsorblock: unexpected status %s", resp.Status)
	}
	var segs []Segment
	if err := json.NewDecoder(resp.Body).Decode(&segs); err != nil {
		return nil, fmt.Errorf("sponsorblock: decode: %w", err)
	}
	return segs, nil
}

// MergeSegments sorts segs by start and joins the ones that overlap.
func MergeSegments(segs []Segment) []Segment {
	if len(segs) == 0 {
		return segs
	}
	segs = slices.Clone(segs)
	slices.SortFunc(segs, func(a, b Segment) int {
		switch {
		case a.Start() < b.Start():
			return -1
		case a.Start() > b.Start():
			return 1
		}
		return 0
	})
	out := []Segment{segs[0]}
	for _, s := range segs[1:] {
		last := &out[len(out)-1]
		if s.Start() <= last.End() {
			last.Segment[1] = max(last.End(), s.End())
			continue
		}
		out = append(out, s)
	}
	return out
}
