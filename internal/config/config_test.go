package config

import (
	"errors"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("BOT_COLOR", "")
	t.Setenv("DOWNLOADS_DIR", "")
	t.Setenv("PLAYLIST_LIMIT", "")
	t.Setenv("PLAYLIST_RATE", "")
	t.Setenv("BOT_REPORT_DL_ERROR", "")
	t.Setenv("BOT_REPORT_COMMAND_NOT_FOUND", "")
	t.Setenv("PRINT_STACK_TRACE", "")
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	t.Setenv("SPONSORBLOCK", "")
	t.Setenv("SPONSORBLOCK_TIMEOUT", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DiscordToken != "token" {
		t.Errorf("token = %q", cfg.DiscordToken)
	}
	if cfg.Color != DefaultColor {
		t.Errorf("color = %x", cfg.Color)
	}
	if cfg.DownloadsDir != "./dl" {
		t.Errorf("downloads dir = %q", cfg.DownloadsDir)
	}
	if cfg.PlaylistLimit != 0 || cfg.PlaylistRate != 2 {
		t.Errorf("playlist limit/rate = %d/%v", cfg.PlaylistLimit, cfg.PlaylistRate)
	}
	if cfg.ReportDownloadErrors || !cfg.ReportCommandNotFound || !cfg.PrintStackTrace {
		t.Errorf("report flags = %v/%v/%v", cfg.ReportDownloadErrors, cfg.ReportCommandNotFound, cfg.PrintStackTrace)
	}
	if cfg.SpotifyEnabled() {
		t.Error("spotify enabled without credentials")
	}
	if cfg.SponsorBlock || cfg.SponsorBlockTimeout != 5 {
		t.Errorf("sponsorblock = %v/%d", cfg.SponsorBlock, cfg.SponsorBlockTimeout)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("DISCORD_TOKEN", "legacy")
	t.Setenv("BOT_COLOR", "#00ff7f")
	t.Setenv("PLAYLIST_LIMIT", "25")
	t.Setenv("PLAYLIST_RATE", "0.5")
	t.Setenv("BOT_REPORT_DL_ERROR", "T")
	t.Setenv("BOT_REPORT_COMMAND_NOT_FOUND", "0")
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")
	t.Setenv("SPONSORBLOCK", "yes")
	t.Setenv("SPONSORBLOCK_TIMEOUT", "15")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DiscordToken != "legacy" {
		t.Errorf("token = %q", cfg.DiscordToken)
	}
	if cfg.Color != 0x00ff7f {
		t.Errorf("color = %x", cfg.Color)
	}
	if cfg.PlaylistLimit != 25 || cfg.PlaylistRate != 0.5 {
		t.Errorf("playlist limit/rate = %d/%v", cfg.PlaylistLimit, cfg.PlaylistRate)
	}
	if !cfg.ReportDownloadErrors || cfg.ReportCommandNotFound {
		t.Errorf("report flags = %v/%v", cfg.ReportDownloadErrors, cfg.ReportCommandNotFound)
	}
	if !cfg.SpotifyEnabled() {
		t.Error("spotify disabled with credentials")
	}
	if !cfg.SponsorBlock || cfg.SponsorBlockTimeout != 15 {
		t.Errorf("sponsorblock = %v/%d", cfg.SponsorBlock, cfg.SponsorBlockTimeout)
	}
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing token", env: map[string]string{"BOT_TOKEN": "", "DISCORD_TOKEN": ""}},
		{name: "bad limit", env: map[string]string{"BOT_TOKEN": "x", "PLAYLIST_LIMIT": "-1"}},
		{name: "bad rate", env: map[string]string{"BOT_TOKEN": "x", "PLAYLIST_RATE": "fast"}},
		{name: "bad sponsorblock timeout", env: map[string]string{"BOT_TOKEN": "x", "SPONSORBLOCK_TIMEOUT": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PLAYLIST_LIMIT", "")
			t.Setenv("PLAYLIST_RATE", "")
			t.Setenv("SPONSORBLOCK_TIMEOUT", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			var cerr ErrConfig
			if !errors.As(err, &cerr) {
				t.Fatalf("err = %v, want ErrConfig", err)
			}
		})
	}
}

func TestParseColorFallsBack(t *testing.T) {
	for _, in := range []string{"red", "1000000", "-1"} {
		if got := parseColor(in); got != DefaultColor {
			t.Errorf("parseColor(%q) = %x", in, got)
		}
	}
}
