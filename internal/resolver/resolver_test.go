package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sonroyaalmerol/tubebot/internal/session"
)

func TestIsYouTubeURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"http://youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", true},
		{"https://music.youtube.com/watch?v=abc", true},
		{"https://m.youtube.com/playlist?list=PL123", true},
		{" https://WWW.YOUTUBE.COM/watch?v=x ", true},
		{"www.youtube.com/watch?v=dQw4w9WgXcQ", false},
		{"https://evil.com/youtube.com", false},
		{"https://youtube.com.evil.com/watch", false},
		{"ftp://youtube.com/video", false},
		{"never gonna give you up", false},
	}
	for _, tt := range tests {
		if got := IsYouTubeURL(tt.in); got != tt.want {
			t.Errorf("IsYouTubeURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTarget(t *testing.T) {
	if got, search := target("lofi beats"); got != "ytsearch1:lofi beats" || !search {
		t.Fatalf("target(search) = %q, %v", got, search)
	}
	u := "https://youtu.be/dQw4w9WgXcQ"
	if got, search := target(u); got != u || search {
		t.Fatalf("target(url) = %q, %v", got, search)
	}
}

func TestIsPlaylistURL(t *testing.T) {
	if !IsPlaylistURL("https://www.youtube.com/playlist?list=PL1") {
		t.Error("youtube playlist rejected")
	}
	if !IsPlaylistURL("https://open.spotify.com/album/1DFixLWuPkv3KT3TnV35m3") {
		t.Error("spotify album rejected")
	}
	if IsPlaylistURL("some words") {
		t.Error("search term accepted")
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"\x1b[0;31mERROR:\x1b[0m [youtube] abc: Video unavailable", "[youtube] abc: Video unavailable"},
		{"  error: : private video ", "private video"},
		{"Errors happen", "s happen"},
		{"Video unavailable", "Video unavailable"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDownloadError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := error(newDownloadError("q", nil, cause))

	if !errors.Is(err, session.ErrDownload) {
		t.Fatal("DownloadError does not match ErrDownload")
	}
	if !errors.Is(err, cause) {
		t.Fatal("DownloadError does not unwrap its cause")
	}
	if session.KindOf(err) != session.KindDownload {
		t.Fatalf("kind = %v", session.KindOf(err))
	}
	var de *DownloadError
	if !errors.As(err, &de) || de.Msg != "exit status 1" {
		t.Fatalf("msg = %q", de.Msg)
	}
}

func TestLastLine(t *testing.T) {
	if got := lastLine("WARNING: slow\nERROR: gone\n\n"); got != "ERROR: gone" {
		t.Fatalf("lastLine = %q", got)
	}
}

func TestParseInfo(t *testing.T) {
	info, ok := parseInfo("NA\tNA\tNA\tNA\tNA\ndQw4w9WgXcQ\twebm\t212.0\t\"0:00 Intro\\n1:00 Verse\"\tNever Gonna Give You Up\tfeat. tab\n")
	if !ok {
		t.Fatal("no info parsed")
	}
	if info.ID != "dQw4w9WgXcQ" || info.Ext != "webm" || info.Duration != 212 {
		t.Fatalf("info = %+v", info)
	}
	if info.Description != "0:00 Intro\n1:00 Verse" {
		t.Fatalf("description = %q", info.Description)
	}
	if info.Title != "Never Gonna Give You Up\tfeat. tab" {
		t.Fatalf("title = %q", info.Title)
	}
	if info.URL() != "https://youtu.be/dQw4w9WgXcQ" {
		t.Fatalf("url = %q", info.URL())
	}
	if _, ok := parseInfo(""); ok {
		t.Fatal("parsed info from empty output")
	}
}

func TestParseEntries(t *testing.T) {
	title, entries := parseEntries("a1\tMix\tFirst\nNA\tMix\tPrivate video\nb2\tMix\tSecond\n")
	if title != "Mix" {
		t.Fatalf("title = %q", title)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Query != "https://youtu.be/a1" || entries[1].Title != "Second" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestParseSeconds(t *testing.T) {
	for in, want := range map[string]int{"212": 212, "59.9": 59, "NA": 0, "-3": 0} {
		if got := parseSeconds(in); got != want {
			t.Errorf("parseSeconds(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestEachEntry(t *testing.T) {
	r := &Resolver{rate: 1000}
	entries := []Entry{{Query: "a"}, {Query: "b"}, {Query: "c"}}

	var seen []string
	err := r.EachEntry(context.Background(), entries, func(i int, e Entry) error {
		seen = append(seen, e.Query)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 || seen[0] != "a" || seen[2] != "c" {
		t.Fatalf("seen = %v", seen)
	}

	stop := errors.New("stop")
	calls := 0
	err = r.EachEntry(context.Background(), entries, func(i int, e Entry) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}
}

func TestEachEntryPaced(t *testing.T) {
	r := &Resolver{rate: 20}
	entries := make([]Entry, 5)

	start := time.Now()
	if err := r.EachEntry(context.Background(), entries, func(int, Entry) error { return nil }); err != nil {
		t.Fatal(err)
	}
	// one token up front, four more at 50ms each
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("entries resolved too fast: %v", elapsed)
	}
}

func TestEachEntryCancelled(t *testing.T) {
	r := &Resolver{rate: 0.01}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := r.EachEntry(ctx, []Entry{{}, {}}, func(int, Entry) error {
		calls++
		cancel()
		return nil
	})
	if err == nil || calls != 1 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}
}

type fixedTrimmer struct {
	start, end int
}

func (f fixedTrimmer) Trim(context.Context, string, int) (int, int, string) {
	return f.start, f.end, "test"
}

func TestTrim(t *testing.T) {
	tests := []struct {
		name     string
		trimmer  Trimmer
		start    int
		end      int
		duration int
	}{
		{name: "no trimmer", trimmer: nil, duration: 200},
		{name: "nothing to cut", trimmer: fixedTrimmer{}, duration: 200},
		{name: "intro", trimmer: fixedTrimmer{start: 15}, start: 15, duration: 185},
		{name: "outro", trimmer: fixedTrimmer{end: 180}, end: 180, duration: 180},
		{name: "both", trimmer: fixedTrimmer{start: 10, end: 190}, start: 10, end: 190, duration: 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Resolver{trimmer: tt.trimmer}
			tr := session.Track{ID: "abc", Duration: 200}
			r.trim(context.Background(), &tr)
			if tr.Start != tt.start || tr.End != tt.end || tr.Duration != tt.duration {
				t.Fatalf("track = start %d end %d duration %d", tr.Start, tr.End, tr.Duration)
			}
		})
	}
}
