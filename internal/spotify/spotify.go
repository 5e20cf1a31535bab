package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

var ErrNotSpotify = errors.New("not a spotify link")

type Track struct {
	Name   string
	Artist string
}

// SearchQuery is the text used to find the track on YouTube.
func (t Track) SearchQuery() string {
	if t.Artist == "" {
		return t.Name
	}
	return t.Name + " " + t.Artist
}

func (t Track) String() string {
	if t.Artist == "" {
		return t.Name
	}
	return t.Name + " - " + t.Artist
}

type Collection struct {
	Title  string
	Source string
	Tracks []Track
}

type Client struct {
	raw    *spotify.Client
	market string
}

func NewClientCredentials(ctx context.Context, clientID, clientSecret string) *Client {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	cl := spotify.New(cfg.Client(ctx), spotify.WithRetry(true))
	return &Client{raw: cl, market: "US"}
}

// IsLink reports whether raw is a Spotify URI or open.spotify.com URL.
func IsLink(raw string) bool {
	_, _, err := ParseID(raw)
	return err == nil
}

func ParseID(raw string) (typ string, id spotify.ID, err error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) != 3 || parts[2] == "" {
			return "", "", fmt.Errorf("invalid spotify URI: %w", ErrNotSpotify)
		}
		return checkType(parts[1], parts[2])
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", "", ErrNotSpotify
	}
	if u.Host != "open.spotify.com" && u.Host != "www.open.spotify.com" {
		return "", "", ErrNotSpotify
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// open.spotify.com/intl-de/track/<id>
	if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) < 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid spotify URL path: %w", ErrNotSpotify)
	}
	return checkType(parts[0], parts[1])
}

func checkType(typ, id string) (string, spotify.ID, error) {
	switch typ {
	case "album", "playlist", "track", "artist":
		return typ, spotify.ID(id), nil
	}
	return "", "", fmt.Errorf("unsupported spotify type %q: %w", typ, ErrNotSpotify)
}

// Expand turns a track, album, playlist or artist link into its tracks.
// limit caps the result; 0 means no cap.
func (c *Client) Expand(ctx context.Context, link string, limit int) (Collection, error) {
	typ, id, err := ParseID(link)
	if err != nil {
		return Collection{}, err
	}
	switch typ {
	case "track":
		t, err := c.GetTrack(ctx, id)
		if err != nil {
			return Collection{}, err
		}
		return Collection{Title: t.String(), Source: link, Tracks: []Track{t}}, nil
	case "album":
		return c.GetAlbum(ctx, id, limit)
	case "playlist":
		return c.GetPlaylist(ctx, id, limit)
	default:
		return c.GetArtistTop(ctx, id, limit)
	}
}

func simpleArtist(artists []spotify.SimpleArtist) string {
	if len(artists) == 0 {
		return ""
	}
	return artists[0].Name
}

func full(limit, have int) bool {
	return limit > 0 && have >= limit
}

func (c *Client) GetAlbum(ctx context.Context, id spotify.ID, limit int) (Collection, error) {
	alb, err := c.raw.GetAlbum(ctx, id)
	if err != nil {
		return Collection{}, err
	}
	page, err := c.raw.GetAlbumTracks(ctx, id)
	if err != nil {
		return Collection{}, err
	}
	out := Collection{Title: alb.Name, Source: alb.ExternalURLs["spotify"]}
	for {
		for _, t := range page.Tracks {
			if full(limit, len(out.Tracks)) {
				return out, nil
			}
			out.Tracks = append(out.Tracks, Track{Name: t.Name, Artist: simpleArtist(t.Artists)})
		}
		if page.Next == "" || full(limit, len(out.Tracks)) {
			return out, nil
		}
		if err := c.raw.NextPage(ctx, page); err != nil {
			return out, nil
		}
	}
}

func (c *Client) GetPlaylist(ctx context.Context, id spotify.ID, limit int) (Collection, error) {
	pl, err := c.raw.GetPlaylist(ctx, id)
	if err != nil {
		return Collection{}, err
	}
	page, err := c.raw.GetPlaylistItems(ctx, id)
	if err != nil {
		return Collection{}, err
	}
	out := Collection{Title: pl.Name, Source: pl.ExternalURLs["spotify"]}
	for {
		for _, it := range page.Items {
			t := it.Track.Track
			if t == nil {
				continue
			}
			if full(limit, len(out.Tracks)) {
				return out, nil
			}
			out.Tracks = append(out.Tracks, Track{Name: t.Name, Artist: simpleArtist(t.Artists)})
		}
		if page.Next == "" || full(limit, len(out.Tracks)) {
			return out, nil
		}
		if err := c.raw.NextPage(ctx, page); err != nil {
			return out, nil
		}
	}
}

func (c *Client) GetTrack(ctx context.Context, id spotify.ID) (Track, error) {
	t, err := c.raw.GetTrack(ctx, id)
	if err != nil {
		return Track{}, err
	}
	return Track{Name: t.Name, Artist: simpleArtist(t.Artists)}, nil
}

func (c *Client) GetArtistTop(ctx context.Context, id spotify.ID, limit int) (Collection, error) {
	artist, err := c.raw.GetArtist(ctx, id)
	if err != nil {
		return Collection{}, err
	}
	top, err := c.raw.GetArtistsTopTracks(ctx, id, c.market)
	if err != nil {
		return Collection{}, err
	}
	out := Collection{Title: artist.Name, Source: artist.ExternalURLs["spotify"]}
	for _, t := range top {
		if full(limit, len(out.Tracks)) {
			break
		}
		out.Tracks = append(out.Tracks, Track{Name: t.Name, Artist: simpleArtist(t.Artists)})
	}
	return out, nil
}

func (c *Client) SearchAlbumsAndTracks(ctx context.Context, query string, limit int) ([]spotify.SimpleAlbum, []spotify.FullTrack, error) {
	if limit <= 0 {
		limit = 10
	}
	res, err := c.raw.Search(ctx, query, spotify.SearchTypeAlbum|spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, nil, err
	}
	var albums []spotify.SimpleAlbum
	if res.Albums != nil {
		albums = res.Albums.Albums
	}
	var tracks []spotify.FullTrack
	if res.Tracks != nil {
		tracks = res.Tracks.Tracks
	}
	return albums[:min(len(albums), limit)], tracks[:min(len(tracks), limit)], nil
}
