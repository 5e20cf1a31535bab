package resolver

import (
	"net/url"
	"strings"

	"github.com/sonroyaalmerol/tubebot/internal/spotify"
)

var youtubeHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
}

// IsYouTubeURL reports whether q is an http(s) URL on a YouTube host.
func IsYouTubeURL(q string) bool {
	u, err := url.Parse(strings.TrimSpace(q))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return youtubeHosts[strings.ToLower(u.Hostname())]
}

// IsPlaylistURL reports whether q can be expanded by Playlist.
func IsPlaylistURL(q string) bool {
	return IsYouTubeURL(q) || spotify.IsLink(q)
}

// target turns user input into what yt-dlp should look up. Anything that is
// not a YouTube URL is searched for.
func target(q string) (string, bool) {
	q = strings.TrimSpace(q)
	if IsYouTubeURL(q) {
		return q, false
	}
	return "ytsearch1:" + q, true
}

// VideoURL is the canonical watch link yt-dlp is pointed at for downloads.
func VideoURL(id string) string {
	return "https://youtu.be/" + id
}
