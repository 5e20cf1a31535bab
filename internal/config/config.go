package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const DefaultColor = 0xff0000

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func getbool(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "":
		return def
	case "1", "t", "true", "yes", "on":
		return true
	}
	return false
}

// LoadConfig reads .env, if any, and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, ErrConfig("read .env: " + err.Error())
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment alone.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DiscordToken:          getenv("BOT_TOKEN", os.Getenv("DISCORD_TOKEN")),
		SpotifyClientID:       os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret:   os.Getenv("SPOTIFY_CLIENT_SECRET"),
		DownloadsDir:          getenv("DOWNLOADS_DIR", "./dl"),
		Color:                 parseColor(getenv("BOT_COLOR", "ff0000")),
		ReportDownloadErrors:  getbool("BOT_REPORT_DL_ERROR", false),
		ReportCommandNotFound: getbool("BOT_REPORT_COMMAND_NOT_FOUND", true),
		PrintStackTrace:       getbool("PRINT_STACK_TRACE", true),
		BotStatus:             getenv("BOT_STATUS", "online"),
		BotActivity:           getenv("BOT_ACTIVITY", "music"),
		RegisterCommandsOnBot: getbool("REGISTER_COMMANDS_ON_BOT", false),
		SponsorBlock:          getbool("SPONSORBLOCK", false),
		LogLevel:              getenv("LOG_LEVEL", "info"),
		LogFile:               os.Getenv("LOG_FILE"),
	}

	limit, err := strconv.Atoi(getenv("PLAYLIST_LIMIT", "0"))
	if err != nil || limit < 0 {
		return nil, ErrConfig("PLAYLIST_LIMIT must be a non-negative integer")
	}
	cfg.PlaylistLimit = limit

	rate, err := strconv.ParseFloat(getenv("PLAYLIST_RATE", "2"), 64)
	if err != nil || rate <= 0 {
		return nil, ErrConfig("PLAYLIST_RATE must be a positive number")
	}
	cfg.PlaylistRate = rate

	sbTimeout, err := strconv.Atoi(getenv("SPONSORBLOCK_TIMEOUT", "5"))
	if err != nil || sbTimeout < 0 {
		return nil, ErrConfig("SPONSORBLOCK_TIMEOUT must be a non-negative number of minutes")
	}
	cfg.SponsorBlockTimeout = sbTimeout

	if cfg.DiscordToken == "" {
		return nil, ErrConfig("BOT_TOKEN required")
	}
	return cfg, nil
}

func parseColor(s string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 16, 32)
	if err != nil || v < 0 || v > 0xffffff {
		slog.Warn("BOT_COLOR is not a valid hex color, using default", "value", s, "default", "ff0000")
		return DefaultColor
	}
	return int(v)
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
