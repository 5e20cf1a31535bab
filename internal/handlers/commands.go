package handlers

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/tubebot/internal/autocomplete"
	"github.com/sonroyaalmerol/tubebot/internal/config"
	"github.com/sonroyaalmerol/tubebot/internal/media"
	"github.com/sonroyaalmerol/tubebot/internal/resolver"
	"github.com/sonroyaalmerol/tubebot/internal/session"
	"github.com/sonroyaalmerol/tubebot/internal/spotify"
	"github.com/sonroyaalmerol/tubebot/internal/ui"
)

const (
	downloadTimeout     = 10 * time.Minute
	autocompleteTimeout = 2500 * time.Millisecond
)

type CommandHandler struct {
	root     context.Context
	cfg      *config.Config
	store    *media.Store
	resolver *resolver.Resolver
	spotify  *spotify.Client
	sessions *session.Manager
	guard    *session.Guard
}

func NewCommandHandler(
	root context.Context,
	cfg *config.Config,
	store *media.Store,
	res *resolver.Resolver,
	sp *spotify.Client,
	sessions *session.Manager,
	guard *session.Guard,
) *CommandHandler {
	return &CommandHandler{
		root:     root,
		cfg:      cfg,
		store:    store,
		resolver: res,
		spotify:  sp,
		sessions: sessions,
		guard:    guard,
	}
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	loopChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "off", Value: "off"},
		{Name: "single", Value: "single"},
		{Name: "all", Value: "all"},
	}
	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a YouTube video (URL or search)",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "YouTube URL or search terms", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
				{Name: "split", Description: "queue each chapter of the video separately", Type: discordgo.ApplicationCommandOptionBoolean},
			},
		},
		{
			Name:        "playlist",
			Description: "Add every video of a YouTube playlist to the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "url", Description: "playlist URL", Type: discordgo.ApplicationCommandOptionString, Required: true},
			},
		},
		{
			Name:        "queue",
			Description: "Show the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "page", Description: "page of the queue to show [default: 1]", Type: discordgo.ApplicationCommandOptionInteger},
			},
		},
		{
			Name:        "skip",
			Description: "Skip tracks",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "count", Description: "number of tracks to skip, or \"all\" [default: 1]", Type: discordgo.ApplicationCommandOptionString},
			},
		},
		{Name: "pause", Description: "Pause playback"},
		{Name: "unpause", Description: "Resume playback"},
		{Name: "current", Description: "Show the track that is playing"},
		{
			Name:        "remove",
			Description: "Remove a track from the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "position", Description: "position shown by /queue", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
			},
		},
		{
			Name:        "move",
			Description: "Move a track within the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "from", Description: "position of the track to move", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				{Name: "to", Description: "position to move the track to", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
			},
		},
		{Name: "shuffle", Description: "Shuffle the queue"},
		{Name: "clear", Description: "Clear the queue except the current track"},
		{
			Name:        "loop",
			Description: "Show or set the loop mode",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "mode", Description: "off, single or all", Type: discordgo.ApplicationCommandOptionString, Choices: loopChoices},
			},
		},
		{Name: "exit", Description: "Leave the voice channel and clear the queue"},
	}
}

// RegisterCommands overwrites the command set of guildID, or the global set
// when guildID is empty.
func (h *CommandHandler) RegisterCommands(s *discordgo.Session, appID string, guildID string) error {
	start := time.Now()
	cmds := commandDefinitions()
	if _, err := s.ApplicationCommandBulkOverwrite(appID, guildID, cmds); err != nil {
		slog.Error("failed to register application commands", "guildID", guildID, "err", err)
		return err
	}
	slog.Info("finished registering commands", "guildID", guildID, "count", len(cmds), "took", time.Since(start))
	return nil
}

func (h *CommandHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer h.recoverPanic(s, i)

	if i.GuildID == "" {
		if i.Type == discordgo.InteractionApplicationCommand {
			h.reply(s, i, "This command only works in a server.", true)
		}
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		slog.Debug("interaction: application command", "guildID", i.GuildID, "userID", userIDOf(i), "command", i.ApplicationCommandData().Name)
		h.handleChatCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		h.handleAutocomplete(s, i)
	case discordgo.InteractionMessageComponent:
		h.handleComponent(s, i)
	default:
		slog.Debug("interaction: ignored type", "type", i.Type, "guildID", i.GuildID)
	}
}

func (h *CommandHandler) recoverPanic(s *discordgo.Session, i *discordgo.InteractionCreate) {
	r := recover()
	if r == nil {
		return
	}
	attrs := []any{"guildID", i.GuildID, "userID", userIDOf(i), "panic", r}
	if h.cfg.PrintStackTrace {
		attrs = append(attrs, "stack", string(debug.Stack()))
	}
	slog.Error("command handler panicked", attrs...)
}

func (h *CommandHandler) handleChatCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.ApplicationCommandData().Name {
	case "play":
		h.cmdPlay(s, i)
	case "playlist":
		h.cmdPlaylist(s, i)
	case "queue":
		h.cmdQueue(s, i)
	case "skip":
		h.cmdSkip(s, i)
	case "pause":
		h.cmdPause(s, i)
	case "unpause":
		h.cmdUnpause(s, i)
	case "current":
		h.cmdCurrent(s, i)
	case "remove":
		h.cmdRemove(s, i)
	case "move":
		h.cmdMove(s, i)
	case "shuffle":
		h.cmdShuffle(s, i)
	case "clear":
		h.cmdClear(s, i)
	case "loop":
		h.cmdLoop(s, i)
	case "exit":
		h.cmdExit(s, i)
	default:
		slog.Debug("unknown command", "name", i.ApplicationCommandData().Name, "guildID", i.GuildID, "userID", userIDOf(i))
		if h.cfg.ReportCommandNotFound {
			h.reply(s, i, "Command not recognized. Type / to see the available commands.", true)
		}
	}
}

func (h *CommandHandler) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "play" {
		return
	}

	var query string
	for _, opt := range data.Options {
		if opt.Focused || opt.Name == "query" {
			query = opt.StringValue()
		}
	}
	choices := []*discordgo.ApplicationCommandOptionChoice{}
	if strings.TrimSpace(query) != "" {
		ctx, cancel := context.WithTimeout(h.root, autocompleteTimeout)
		defer cancel()
		found, err := autocomplete.GetYouTubeAndSpotifySuggestions(ctx, query, h.spotify, 10)
		if err != nil {
			slog.Debug("autocomplete suggestions error", "guildID", i.GuildID, "err", err)
		}
		if found != nil {
			choices = found
		}
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		slog.Debug("autocomplete respond failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	page, ok := ui.ParseQueueButton(i.MessageComponentData().CustomID)
	if !ok {
		return
	}
	data := &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{ui.NothingPlaying(h.cfg.Color)},
		Components: []discordgo.MessageComponent{},
	}
	if snap, ok := h.sessions.Snapshot(i.GuildID); ok {
		page = min(page, ui.PageCount(snap))
		if embed, err := ui.QueueEmbed(snap, page, h.cfg.Color); err == nil {
			data.Embeds = []*discordgo.MessageEmbed{embed}
			if rows := ui.QueueButtons(page, ui.PageCount(snap)); rows != nil {
				data.Components = rows
			}
		}
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: data,
	}); err != nil {
		slog.Warn("queue page update failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) replyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		},
	}); err != nil {
		slog.Warn("embed reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		slog.Warn("defer reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

// say posts a follow-up message. Once the interaction token has expired the
// message goes straight to the channel instead.
func (h *CommandHandler) say(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_, err := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
		Content: content,
	})
	if err == nil {
		return
	}
	slog.Debug("followup failed, falling back to channel", "guildID", i.GuildID, "err", err)
	if _, err := s.ChannelMessageSend(i.ChannelID, content); err != nil {
		slog.Warn("channel message failed", "guildID", i.GuildID, "channelID", i.ChannelID, "err", err)
	}
}

// errorMessage is the chat reply for an error a command surfaced.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNoVoiceChannel):
		return "You have to be in a voice channel to use this command"
	case errors.Is(err, session.ErrWrongChannel):
		return "You have to be in the same voice channel as the bot to use this command"
	case errors.Is(err, session.ErrNothingPlaying):
		return "The bot isn't playing anything"
	case errors.Is(err, session.ErrNotPaused):
		return "Music is not paused."
	case errors.Is(err, session.ErrNotEnough):
		return "Not enough songs in the queue to shuffle."
	case errors.Is(err, session.ErrInvalidPosition):
		return "Invalid position."
	case errors.Is(err, session.ErrAlreadyInPosition):
		return "The song is already in the specified position."
	case errors.Is(err, session.ErrInvalidMode):
		return "Invalid loop mode. Available modes: All, Single, Off"
	case errors.Is(err, session.ErrNotConnected):
		return "Bot is not currently in a voice channel."
	case errors.Is(err, ui.ErrPageOutOfRange):
		return "The queue isn't that big."
	}
	return "Something went wrong."
}

// downloadFailure is the chat reply for a failed lookup or download.
func downloadFailure(err error, report bool) string {
	var dlErr *resolver.DownloadError
	if report && errors.As(err, &dlErr) {
		if msg := dlErr.Sanitized(); msg != "" {
			return "Failed to download due to error: " + msg
		}
	}
	return "Sorry, failed to download this video"
}

func userIDOf(i *discordgo.InteractionCreate) string {
	if i == nil {
		return ""
	}
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func optString(i *discordgo.InteractionCreate, name string) string {
	if o := i.ApplicationCommandData().GetOption(name); o != nil {
		return strings.TrimSpace(o.StringValue())
	}
	return ""
}

func optInt(i *discordgo.InteractionCreate, name string) (int, bool) {
	if o := i.ApplicationCommandData().GetOption(name); o != nil {
		return int(o.IntValue()), true
	}
	return 0, false
}

func optBool(i *discordgo.InteractionCreate, name string) (bool, bool) {
	if o := i.ApplicationCommandData().GetOption(name); o != nil {
		return o.BoolValue(), true
	}
	return false, false
}

// code wraps s in an inline code span.
func code(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "'") + "`"
}
