package resolver

import (
	"fmt"
	"regexp"
	"strings"

	ytdlp "github.com/lrstanley/go-ytdlp"

	"github.com/sonroyaalmerol/tubebot/internal/session"
)

// DownloadError is a failed lookup or download. Msg holds what yt-dlp
// printed about the failure.
type DownloadError struct {
	Query string
	Msg   string
	Err   error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %q: %s", e.Query, e.Msg)
}

func (e *DownloadError) Unwrap() error { return e.Err }

func (e *DownloadError) Is(target error) bool {
	return target == session.ErrDownload
}

// Sanitized is Msg fit for a chat message.
func (e *DownloadError) Sanitized() string {
	return Sanitize(e.Msg)
}

var reANSI = regexp.MustCompile(`\x1b[^m]*m`)

// Sanitize strips terminal colours and a leading "ERROR:" from a yt-dlp
// message.
func Sanitize(msg string) string {
	s := strings.TrimSpace(reANSI.ReplaceAllString(msg, ""))
	if len(s) >= 5 && strings.EqualFold(s[:5], "error") {
		s = strings.Trim(s[5:], " :")
	}
	return s
}

func newDownloadError(query string, res *ytdlp.Result, err error) *DownloadError {
	msg := ""
	if res != nil {
		msg = lastLine(res.Stderr)
	}
	if msg == "" && err != nil {
		msg = err.Error()
	}
	if msg == "" {
		msg = "no results"
	}
	return &DownloadError{Query: query, Msg: msg, Err: err}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
