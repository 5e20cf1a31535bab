package config

type Config struct {
	DiscordToken        string
	SpotifyClientID     string
	SpotifyClientSecret string

	DownloadsDir  string
	PlaylistLimit int     // 0 means unlimited
	PlaylistRate  float64 // entry resolutions per second

	Color                 int
	ReportDownloadErrors  bool
	ReportCommandNotFound bool
	PrintStackTrace       bool
	BotStatus             string // online/dnd/idle
	BotActivity           string
	RegisterCommandsOnBot bool

	SponsorBlock        bool // trim non-music intros and outros
	SponsorBlockTimeout int  // minutes to back off after the API fails

	LogLevel string
	LogFile  string
}

// SpotifyEnabled reports whether Spotify links can be expanded.
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}
