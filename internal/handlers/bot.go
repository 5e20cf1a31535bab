package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/tubebot/internal/config"
	"github.com/sonroyaalmerol/tubebot/internal/media"
	"github.com/sonroyaalmerol/tubebot/internal/resolver"
	"github.com/sonroyaalmerol/tubebot/internal/session"
	"github.com/sonroyaalmerol/tubebot/internal/sponsorblock"
	"github.com/sonroyaalmerol/tubebot/internal/spotify"
	"github.com/sonroyaalmerol/tubebot/internal/stream"
)

const shutdownTimeout = 10 * time.Second

type Bot struct {
	cfg      *config.Config
	store    *media.Store
	spotify  *spotify.Client
	resolver *resolver.Resolver
}

func NewBot(cfg *config.Config, store *media.Store, sp *spotify.Client) *Bot {
	var trimmer resolver.Trimmer
	if cfg.SponsorBlock {
		trimmer = sponsorblock.NewTrimmer(cfg.SponsorBlockTimeout)
	}
	return &Bot{
		cfg:      cfg,
		store:    store,
		spotify:  sp,
		resolver: resolver.New(cfg, store, sp, trimmer),
	}
}

// stateLocator answers voice membership questions from the gateway cache.
type stateLocator struct {
	state *discordgo.State
}

func (l stateLocator) UserVoiceChannel(guildID, userID string) (string, bool) {
	vs, err := l.state.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	resolver.Install(ctx)

	voice := stream.NewVoice(dg, stream.DefaultBitrate)
	sessions := session.NewManager(voice, b.store, session.NewLoops())
	guard := session.NewGuard(stateLocator{state: dg.State}, sessions)
	cmd := NewCommandHandler(ctx, b.cfg, b.store, b.resolver, b.spotify, sessions, guard)

	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("connected", "user", s.State.User.Username, "guilds", len(r.Guilds))
		b.setPresence(s)

		if b.cfg.RegisterCommandsOnBot {
			if err := cmd.RegisterCommands(s, s.State.User.ID, ""); err != nil {
				slog.Error("register global commands", "err", err)
			}
			return
		}
		// Per-guild registration happens on GuildCreate; drop stale global commands.
		if _, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, "", []*discordgo.ApplicationCommand{}); err != nil {
			slog.Error("clear global commands", "err", err)
		}
	})

	// Fires for every guild after Ready and for guilds joined later.
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if b.cfg.RegisterCommandsOnBot {
			return
		}
		if err := cmd.RegisterCommands(s, s.State.User.ID, g.ID); err != nil {
			slog.Error("register guild commands", "guildID", g.ID, "err", err)
		}
	})

	dg.AddHandler(cmd.HandleInteraction)

	dg.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if s.State.User == nil || vs.UserID != s.State.User.ID {
			return
		}
		if vs.ChannelID == "" {
			sessions.HandleVoiceLeft(vs.GuildID)
		}
	})

	if err := dg.Open(); err != nil {
		return err
	}
	defer dg.Close()

	<-ctx.Done()
	slog.Info("shutting down", "activeSessions", sessions.Active())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := voice.Close(shutdownCtx); err != nil {
		slog.Warn("close voice connections", "err", err)
	}
	if err := b.store.Sweep(); err != nil {
		slog.Warn("sweep media", "err", err)
	}
	return nil
}

var activityTypes = map[string]discordgo.ActivityType{
	"playing":   discordgo.ActivityTypeGame,
	"streaming": discordgo.ActivityTypeStreaming,
	"listening": discordgo.ActivityTypeListening,
	"watching":  discordgo.ActivityTypeWatching,
	"competing": discordgo.ActivityTypeCompeting,
}

// presence builds the gateway status from BOT_STATUS and BOT_ACTIVITY. The
// activity may start with a verb ("listening lofi"); without one it is a
// game.
func presence(status, activity string) discordgo.UpdateStatusData {
	usd := discordgo.UpdateStatusData{Status: "online"}
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "idle", "dnd", "invisible", "online":
		usd.Status = strings.ToLower(strings.TrimSpace(status))
	}
	activity = strings.TrimSpace(activity)
	if activity == "" {
		return usd
	}
	typ := discordgo.ActivityTypeGame
	if verb, rest, ok := strings.Cut(activity, " "); ok {
		if t, known := activityTypes[strings.ToLower(verb)]; known {
			typ = t
			activity = strings.TrimSpace(rest)
		}
	}
	usd.Activities = []*discordgo.Activity{{Name: activity, Type: typ}}
	return usd
}

func (b *Bot) setPresence(s *discordgo.Session) {
	if b.cfg.BotStatus == "" && b.cfg.BotActivity == "" {
		return
	}
	if err := s.UpdateStatusComplex(presence(b.cfg.BotStatus, b.cfg.BotActivity)); err != nil {
		slog.Warn("set presence", "err", err)
	}
}
