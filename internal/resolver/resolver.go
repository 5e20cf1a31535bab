package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	ytdlp "github.com/lrstanley/go-ytdlp"
	"golang.org/x/time/rate"

	"github.com/sonroyaalmerol/tubebot/internal/config"
	"github.com/sonroyaalmerol/tubebot/internal/media"
	"github.com/sonroyaalmerol/tubebot/internal/session"
	"github.com/sonroyaalmerol/tubebot/internal/spotify"
)

const audioFormat = "worstaudio"

// Info is the metadata of one video, known before anything is downloaded.
type Info struct {
	ID          string
	Title       string
	Ext         string
	Duration    int // seconds
	Description string
	Search      bool
}

func (i Info) URL() string { return VideoURL(i.ID) }

// Entry is one item of a playlist, still to be resolved.
type Entry struct {
	Query string
	Title string
}

// Trimmer finds the part of a video worth playing. start and end are in
// seconds; 0, 0 plays everything.
type Trimmer interface {
	Trim(ctx context.Context, videoID string, length int) (start, end int, note string)
}

type Resolver struct {
	store   *media.Store
	spotify *spotify.Client
	trimmer Trimmer
	limit   int
	rate    float64
}

var installOnce sync.Once

// New builds a Resolver. sp and trimmer are optional.
func New(cfg *config.Config, store *media.Store, sp *spotify.Client, trimmer Trimmer) *Resolver {
	return &Resolver{
		store:   store,
		spotify: sp,
		trimmer: trimmer,
		limit:   cfg.PlaylistLimit,
		rate:    cfg.PlaylistRate,
	}
}

// Install makes sure a yt-dlp binary is available.
func Install(ctx context.Context) {
	installOnce.Do(func() {
		ytdlp.MustInstall(ctx, nil)
	})
}

func baseArgs(args ...string) []string {
	return append([]string{"--force-ipv4", "--socket-timeout", "30"}, args...)
}

// Resolve looks query up without downloading it. YouTube URLs are used as
// they are, Spotify track links become a search for the track, and anything
// else is searched on YouTube.
func (r *Resolver) Resolve(ctx context.Context, query string) (Info, error) {
	query = strings.TrimSpace(query)
	if r.spotify != nil && spotify.IsLink(query) {
		col, err := r.spotify.Expand(ctx, query, 1)
		if err != nil {
			return Info{}, &DownloadError{Query: query, Msg: err.Error(), Err: err}
		}
		if len(col.Tracks) == 0 {
			return Info{}, &DownloadError{Query: query, Msg: "no tracks found"}
		}
		query = col.Tracks[0].SearchQuery()
	}

	tgt, search := target(query)
	res, err := ytdlp.New().
		Format(audioFormat).
		NoPlaylist().
		NoWarnings().
		IgnoreConfig().
		Print("%(id)s\t%(ext)s\t%(duration)s\t%(description)j\t%(title)s").
		Run(ctx, baseArgs("--skip-download", tgt)...)
	if err != nil {
		return Info{}, newDownloadError(query, res, err)
	}
	info, ok := parseInfo(res.Stdout)
	if !ok {
		return Info{}, newDownloadError(query, res, nil)
	}
	info.Search = search
	slog.Debug("resolved", "query", query, "id", info.ID, "title", info.Title)
	return info, nil
}

// Playlist flattens a YouTube playlist or a Spotify collection into entries,
// capped at the configured playlist limit.
func (r *Resolver) Playlist(ctx context.Context, link string) (string, []Entry, error) {
	link = strings.TrimSpace(link)
	if spotify.IsLink(link) {
		if r.spotify == nil {
			return "", nil, &DownloadError{Query: link, Msg: "spotify links are not enabled"}
		}
		col, err := r.spotify.Expand(ctx, link, r.limit)
		if err != nil {
			return "", nil, &DownloadError{Query: link, Msg: err.Error(), Err: err}
		}
		entries := make([]Entry, 0, len(col.Tracks))
		for _, t := range col.Tracks {
			entries = append(entries, Entry{Query: t.SearchQuery(), Title: t.String()})
		}
		return col.Title, entries, nil
	}

	if !IsYouTubeURL(link) {
		return "", nil, &DownloadError{Query: link, Msg: "not a playlist link"}
	}
	cmd := ytdlp.New().
		FlatPlaylist().
		NoWarnings().
		IgnoreConfig().
		Print("%(id)s\t%(playlist_title)s\t%(title)s")
	if r.limit > 0 {
		cmd = cmd.PlaylistItems(fmt.Sprintf("1-%d", r.limit))
	}
	res, err := cmd.Run(ctx, baseArgs("--yes-playlist", link)...)
	if err != nil {
		return "", nil, newDownloadError(link, res, err)
	}
	title, entries := parseEntries(res.Stdout)
	if r.limit > 0 && len(entries) > r.limit {
		entries = entries[:r.limit]
	}
	return title, entries, nil
}

// Download fetches the audio of info into the guild's media directory. A
// file already present from an earlier request is reused.
func (r *Resolver) Download(ctx context.Context, guildID string, info Info) (session.Track, error) {
	dir, err := r.store.Prepare(guildID)
	if err != nil {
		return session.Track{}, fmt.Errorf("prepare media dir: %w", err)
	}
	t := session.Track{
		ID:       info.ID,
		Title:    info.Title,
		Ext:      info.Ext,
		Path:     r.store.PathFor(guildID, info.ID, info.Ext),
		Duration: info.Duration,
	}
	r.trim(ctx, &t)
	if r.store.Exists(t.Path) {
		slog.Debug("reusing downloaded file", "guildID", guildID, "path", t.Path)
		return t, nil
	}

	res, err := ytdlp.New().
		Format(audioFormat).
		NoPlaylist().
		NoWarnings().
		IgnoreConfig().
		NoPart().
		Output(filepath.Join(dir, "%(id)s.%(ext)s")).
		Run(ctx, baseArgs(info.URL())...)
	if err != nil {
		return session.Track{}, newDownloadError(info.URL(), res, err)
	}
	if !r.store.Exists(t.Path) {
		return session.Track{}, &DownloadError{Query: info.URL(), Msg: "downloaded file is missing"}
	}
	slog.Info("downloaded", "guildID", guildID, "id", info.ID, "path", t.Path)
	return t, nil
}

func (r *Resolver) trim(ctx context.Context, t *session.Track) {
	if r.trimmer == nil {
		return
	}
	start, end, note := r.trimmer.Trim(ctx, t.ID, t.Duration)
	if start == 0 && end == 0 {
		return
	}
	t.Start, t.End = start, end
	if end == 0 {
		end = t.Duration
	}
	t.Duration = end - start
	slog.Info("trimmed track", "id", t.ID, "start", start, "end", t.End, "note", note)
}

// EachEntry calls fn for every entry in order, at most PLAYLIST_RATE times a
// second. It stops at the first error fn returns or when ctx ends.
func (r *Resolver) EachEntry(ctx context.Context, entries []Entry, fn func(i int, e Entry) error) error {
	lim := rate.NewLimiter(rate.Limit(r.rate), 1)
	for i, e := range entries {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
		if err := fn(i, e); err != nil {
			return err
		}
	}
	return nil
}

// parseInfo reads the first "id\text\tduration\tdescription\ttitle" line.
// The description is JSON encoded so it stays on one line.
func parseInfo(stdout string) (Info, bool) {
	for _, l := range strings.Split(strings.TrimSpace(stdout), "\n") {
		ps := strings.SplitN(strings.TrimRight(l, "\r"), "\t", 5)
		if len(ps) < 5 || ps[0] == "" || ps[0] == "NA" {
			continue
		}
		var desc string
		_ = json.Unmarshal([]byte(ps[3]), &desc) // "NA" when the video has none
		return Info{
			ID:          ps[0],
			Ext:         ps[1],
			Duration:    parseSeconds(ps[2]),
			Description: desc,
			Title:       ps[4],
		}, true
	}
	return Info{}, false
}

// parseEntries reads "id\tplaylist title\ttitle" lines.
func parseEntries(stdout string) (string, []Entry) {
	var title string
	var out []Entry
	for _, l := range strings.Split(strings.TrimSpace(stdout), "\n") {
		ps := strings.SplitN(strings.TrimRight(l, "\r"), "\t", 3)
		if len(ps) < 3 || ps[0] == "" || ps[0] == "NA" {
			continue
		}
		if title == "" && ps[1] != "NA" {
			title = ps[1]
		}
		out = append(out, Entry{Query: VideoURL(ps[0]), Title: ps[2]})
	}
	return title, out
}

// parseSeconds accepts yt-dlp's duration field, which may be fractional or NA.
func parseSeconds(s string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f)
}
