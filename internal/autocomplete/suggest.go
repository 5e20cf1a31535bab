package autocomplete

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/tubebot/internal/spotify"
	"github.com/sonroyaalmerol/tubebot/internal/utils"
)

// Discord rejects choices with longer names or values.
const maxChoiceLen = 100

var (
	suggestEndpoint = "https://suggestqueries.google.com/complete/search"
	httpClient      = &http.Client{Timeout: 3 * time.Second}
)

func GetYouTubeSuggestions(ctx context.Context, query string) ([]string, error) {
	u, err := url.Parse(suggestEndpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("client", "firefox")
	q.Set("ds", "yt")
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", utils.RandomUserAgent())
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggestions: unexpected status %s", resp.Status)
	}
	return parseSuggestions(json.NewDecoder(resp.Body))
}

// parseSuggestions reads the ["query", ["s1", "s2", ...]] response shape.
func parseSuggestions(dec *json.Decoder) ([]string, error) {
	var parsed []any
	if err := dec.Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed) < 2 {
		return nil, nil
	}
	arr, ok := parsed[1].([]any)
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func choice(name, value string) *discordgo.ApplicationCommandOptionChoice {
	return &discordgo.ApplicationCommandOptionChoice{
		Name:  utils.Truncate(name, maxChoiceLen),
		Value: value,
	}
}

func withArtist(prefix, name string, artists []string) string {
	out := prefix + name
	if len(artists) > 0 && artists[0] != "" {
		out += " - " + artists[0]
	}
	return out
}

// GetYouTubeAndSpotifySuggestions merges YouTube search suggestions with
// Spotify albums and tracks. sp may be nil.
func GetYouTubeAndSpotifySuggestions(ctx context.Context, query string, sp *spotify.Client, limit int) ([]*discordgo.ApplicationCommandOptionChoice, error) {
	if limit <= 0 {
		limit = 10
	}
	yt, ytErr := GetYouTubeSuggestions(ctx, query)

	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, limit)
	for _, s := range yt[:min(len(yt), limit)] {
		if len(s) > maxChoiceLen {
			continue
		}
		out = append(out, choice("YouTube: "+s, s))
	}

	if sp != nil {
		albums, tracks, err := sp.SearchAlbumsAndTracks(ctx, query, limit/2)
		if err == nil {
			// make room
			if keep := limit - len(albums) - len(tracks); len(out) > keep {
				out = out[:max(0, keep)]
			}
			for _, a := range albums {
				var artists []string
				for _, ar := range a.Artists {
					artists = append(artists, ar.Name)
				}
				out = append(out, choice(withArtist("Spotify: 💿 ", a.Name, artists), "spotify:album:"+a.ID.String()))
			}
			for _, t := range tracks {
				var artists []string
				for _, ar := range t.Artists {
					artists = append(artists, ar.Name)
				}
				out = append(out, choice(withArtist("Spotify: 🎵 ", t.Name, artists), "spotify:track:"+t.ID.String()))
			}
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	if len(out) == 0 && ytErr != nil {
		return nil, ytErr
	}
	return out, nil
}
