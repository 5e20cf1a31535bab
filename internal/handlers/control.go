package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/tubebot/internal/session"
	"github.com/sonroyaalmerol/tubebot/internal/ui"
	"github.com/sonroyaalmerol/tubebot/internal/utils"
)

// guarded runs the membership check and answers the caller when it fails.
func (h *CommandHandler) guarded(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if _, err := h.guard.Check(i.GuildID, userIDOf(i)); err != nil {
		h.reply(s, i, errorMessage(err), true)
		return false
	}
	return true
}

func (h *CommandHandler) cmdQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	snap, ok := h.sessions.Snapshot(i.GuildID)
	if !ok || len(snap.Tracks) == 0 {
		h.reply(s, i, errorMessage(session.ErrNothingPlaying), true)
		return
	}
	page := 1
	if p, ok := optInt(i, "page"); ok {
		page = p
	}
	embed, err := ui.QueueEmbed(snap, page, h.cfg.Color)
	if err != nil {
		slog.Debug("build queue embed failed", "guildID", i.GuildID, "page", page, "err", err)
		h.reply(s, i, errorMessage(err), true)
		return
	}
	h.replyEmbed(s, i, embed, ui.QueueButtons(max(page, 1), ui.PageCount(snap)))
	slog.Debug("cmd queue", "guildID", i.GuildID, "userID", userIDOf(i), "page", page)
}

// parseSkip turns the skip argument into a count. Anything that is neither
// a number nor "all" skips one track.
func parseSkip(raw string, queueLen int) int {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "all") {
		return queueLen
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func skipMessage(n, queueLen int) string {
	switch {
	case n == 1:
		return "Skipping track"
	case n < queueLen:
		return fmt.Sprintf("skipping `%d` of `%d` tracks", n, queueLen)
	}
	return "Skipping all tracks"
}

func (h *CommandHandler) cmdSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	snap, ok := h.sessions.Snapshot(i.GuildID)
	if !ok || len(snap.Tracks) == 0 {
		h.reply(s, i, errorMessage(session.ErrNothingPlaying), true)
		return
	}
	if !h.guarded(s, i) {
		return
	}
	want := parseSkip(optString(i, "count"), len(snap.Tracks))
	n, err := h.sessions.Skip(i.GuildID, want)
	if err != nil {
		slog.Debug("skip failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, errorMessage(err), true)
		return
	}
	slog.Info("cmd skip", "guildID", i.GuildID, "userID", userIDOf(i), "count", n)
	h.reply(s, i, skipMessage(n, len(snap.Tracks)), false)
}

func (h *CommandHandler) cmdPause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.guarded(s, i) {
		return
	}
	if err := h.sessions.Pause(i.GuildID); err != nil {
		slog.Debug("pause failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, "No music is currently playing.", true)
		return
	}
	slog.Info("cmd pause", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "Music paused.", false)
}

func (h *CommandHandler) cmdUnpause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.guarded(s, i) {
		return
	}
	if err := h.sessions.Resume(i.GuildID); err != nil {
		slog.Debug("unpause failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, errorMessage(err), true)
		return
	}
	slog.Info("cmd unpause", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "Music resumed.", false)
}

func (h *CommandHandler) cmdCurrent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	snap, ok := h.sessions.Snapshot(i.GuildID)
	if !ok || len(snap.Tracks) == 0 {
		h.reply(s, i, "No song is currently playing.", true)
		return
	}
	h.replyEmbed(s, i, ui.CurrentEmbed(snap, h.cfg.Color), nil)
}

func (h *CommandHandler) cmdRemove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.guarded(s, i) {
		return
	}
	pos, _ := optInt(i, "position")
	t, err := h.sessions.RemoveAt(i.GuildID, pos)
	if err != nil {
		slog.Debug("remove failed", "guildID", i.GuildID, "pos", pos, "err", err)
		h.reply(s, i, errorMessage(err), true)
		return
	}
	slog.Info("cmd remove", "guildID", i.GuildID, "userID", userIDOf(i), "pos", pos, "title", t.Title)
	h.reply(s, i, fmt.Sprintf("Removed song '%s' from the queue.", utils.EscapeMd(t.Title)), false)
}

func (h *CommandHandler) cmdMove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	from, okFrom := optInt(i, "from")
	to, okTo := optInt(i, "to")
	if !okFrom || !okTo {
		h.reply(s, i, "Please provide both the queue number and the new position.", true)
		return
	}
	if !h.guarded(s, i) {
		return
	}
	t, err := h.sessions.Move(i.GuildID, from, to)
	if err != nil {
		slog.Debug("move failed", "guildID", i.GuildID, "from", from, "to", to, "err", err)
		if errors.Is(err, session.ErrInvalidPosition) {
			h.reply(s, i, "Invalid queue number or new position.", true)
			return
		}
		h.reply(s, i, errorMessage(err), true)
		return
	}
	slog.Info("cmd move", "guildID", i.GuildID, "userID", userIDOf(i), "from", from, "to", to, "title", t.Title)
	h.reply(s, i, fmt.Sprintf("Moved song from position %d to %d in the queue.", from, to), false)
}

func (h *CommandHandler) cmdShuffle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.guarded(s, i) {
		return
	}
	if err := h.sessions.Shuffle(i.GuildID); err != nil {
		slog.Debug("shuffle failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, errorMessage(err), true)
		return
	}
	slog.Info("cmd shuffle", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "Queue shuffled.", false)
}

func (h *CommandHandler) cmdClear(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.guarded(s, i) {
		return
	}
	n, err := h.sessions.Clear(i.GuildID)
	if err != nil {
		slog.Debug("clear failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, errorMessage(err), true)
		return
	}
	slog.Info("cmd clear", "guildID", i.GuildID, "userID", userIDOf(i), "removed", n)
	h.reply(s, i, "Queue cleared.", false)
}

func (h *CommandHandler) cmdLoop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	raw := optString(i, "mode")
	if raw == "" {
		h.reply(s, i, "Current loop mode: "+h.sessions.Loop(i.GuildID).String(), false)
		return
	}
	if !h.guarded(s, i) {
		return
	}
	mode, err := h.sessions.SetLoop(i.GuildID, raw)
	if err != nil {
		h.reply(s, i, errorMessage(err), true)
		return
	}
	slog.Info("cmd loop", "guildID", i.GuildID, "userID", userIDOf(i), "mode", mode)
	h.reply(s, i, "Loop mode set to: "+capitalize(mode.String()), false)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (h *CommandHandler) cmdExit(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.guarded(s, i) {
		return
	}
	if err := h.sessions.Exit(i.GuildID); err != nil {
		h.reply(s, i, errorMessage(err), true)
		return
	}
	slog.Info("cmd exit", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "Bot has left the voice channel and the queue has been cleared.", false)
}
