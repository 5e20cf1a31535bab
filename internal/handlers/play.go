package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/tubebot/internal/resolver"
	"github.com/sonroyaalmerol/tubebot/internal/session"
)

// fetch resolves query, downloads it and appends it to the guild's queue,
// one entry per chapter when split is set. found is called once the video is
// known, before the download starts.
func (h *CommandHandler) fetch(
	ctx context.Context,
	guildID, channelID, userID, query string,
	split bool,
	found func(resolver.Info),
) ([]session.Track, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	// Keeps a concurrent teardown from purging the file before it is queued.
	done := h.store.Begin(guildID)
	defer done()

	info, err := h.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if found != nil {
		found(info)
	}
	t, err := h.resolver.Download(ctx, guildID, info)
	if err != nil {
		return nil, err
	}
	t.RequestedBy = userID

	tracks := []session.Track{t}
	if split {
		tracks = resolver.SplitChapters(info, t)
	}
	started, err := h.sessions.Enqueue(ctx, guildID, channelID, tracks...)
	if err != nil {
		return nil, err
	}
	slog.Info("track queued", "guildID", guildID, "userID", userID, "id", t.ID, "title", t.Title, "parts", len(tracks), "started", started)
	return tracks, nil
}

func (h *CommandHandler) cmdPlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	query := optString(i, "query")
	if query == "" {
		h.reply(s, i, "Tell me what to play.", true)
		return
	}
	userID := userIDOf(i)
	channelID, err := h.guard.Check(i.GuildID, userID)
	if err != nil {
		h.reply(s, i, errorMessage(err), true)
		return
	}

	h.deferReply(s, i)
	h.editReply(s, i, fmt.Sprintf("Looking for %s...", code(query)))
	slog.Info("cmd play", "guildID", i.GuildID, "userID", userID, "query", query)

	split, _ := optBool(i, "split")
	tracks, err := h.fetch(h.root, i.GuildID, channelID, userID, query, split, func(info resolver.Info) {
		// A link for searches; the title for URLs, whose preview is already in chat.
		if info.Search {
			h.say(s, i, "Downloading "+info.URL())
		} else {
			h.say(s, i, "Downloading "+code(info.Title))
		}
	})
	if err != nil {
		h.reportFetchError(s, i, query, err)
		return
	}
	if len(tracks) > 1 {
		h.say(s, i, fmt.Sprintf("Split into `%d` chapters.", len(tracks)))
	}
}

func (h *CommandHandler) reportFetchError(s *discordgo.Session, i *discordgo.InteractionCreate, query string, err error) {
	if errors.Is(err, session.ErrDownload) {
		slog.Warn("download failed", "guildID", i.GuildID, "query", query, "err", err)
		h.say(s, i, downloadFailure(err, h.cfg.ReportDownloadErrors))
		return
	}
	slog.Error("enqueue failed", "guildID", i.GuildID, "query", query, "err", err)
	if session.KindOf(err) != session.KindUnknown {
		h.say(s, i, errorMessage(err))
		return
	}
	h.say(s, i, "Couldn't connect to the voice channel.")
}

func (h *CommandHandler) cmdPlaylist(s *discordgo.Session, i *discordgo.InteractionCreate) {
	link := optString(i, "url")
	if !resolver.IsPlaylistURL(link) {
		h.reply(s, i, "Invalid YouTube link.", true)
		return
	}
	userID := userIDOf(i)
	channelID, err := h.guard.Check(i.GuildID, userID)
	if err != nil {
		h.reply(s, i, errorMessage(err), true)
		return
	}

	h.deferReply(s, i)
	h.editReply(s, i, fmt.Sprintf("Adding playlist: %s...", code(link)))
	slog.Info("cmd playlist", "guildID", i.GuildID, "userID", userID, "url", link)

	title, entries, err := h.resolver.Playlist(h.root, link)
	if err != nil {
		slog.Warn("playlist lookup failed", "guildID", i.GuildID, "url", link, "err", err)
		h.say(s, i, downloadFailure(err, h.cfg.ReportDownloadErrors))
		return
	}
	if len(entries) == 0 {
		h.say(s, i, "No playlist found.")
		return
	}
	h.say(s, i, fmt.Sprintf("Playlist found: `%d` videos.", len(entries)))

	added := 0
	err = h.resolver.EachEntry(h.root, entries, func(n int, e resolver.Entry) error {
		// The caller may have left or been separated from the bot meanwhile.
		if _, err := h.guard.Check(i.GuildID, userID); err != nil {
			return err
		}
		_, err := h.fetch(h.root, i.GuildID, channelID, userID, e.Query, false, nil)
		if errors.Is(err, session.ErrDownload) {
			slog.Warn("playlist entry failed", "guildID", i.GuildID, "index", n, "title", e.Title, "err", err)
			h.say(s, i, fmt.Sprintf("Skipping %s: %s", code(e.Title), downloadFailure(err, h.cfg.ReportDownloadErrors)))
			return nil
		}
		if err != nil {
			return err
		}
		added++
		return nil
	})
	if err != nil {
		slog.Warn("playlist aborted", "guildID", i.GuildID, "url", link, "added", added, "err", err)
		if errors.Is(err, context.Canceled) {
			return
		}
		h.say(s, i, errorMessage(err))
	}
	slog.Info("playlist queued", "guildID", i.GuildID, "title", title, "added", added, "total", len(entries))
	h.say(s, i, fmt.Sprintf("Playlist added to the queue: `%d` videos.", added))
}
