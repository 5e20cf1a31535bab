package session

// VoiceLocator finds the voice channel a guild member is connected to.
type VoiceLocator interface {
	UserVoiceChannel(guildID, userID string) (string, bool)
}

// Guard decides whether a member may control playback in a guild.
type Guard struct {
	voice    VoiceLocator
	sessions *Manager
}

func NewGuard(voice VoiceLocator, sessions *Manager) *Guard {
	return &Guard{voice: voice, sessions: sessions}
}

// Check returns the caller's voice channel. The caller must be in voice,
// and in the bot's channel when the bot is already connected.
func (g *Guard) Check(guildID, userID string) (string, error) {
	channelID, ok := g.voice.UserVoiceChannel(guildID, userID)
	if !ok || channelID == "" {
		return "", ErrNoVoiceChannel
	}
	if botChannel, ok := g.sessions.BotChannel(guildID); ok && botChannel != channelID {
		return "", ErrWrongChannel
	}
	return channelID, nil
}
