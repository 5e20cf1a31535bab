package resolver

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/sonroyaalmerol/tubebot/internal/session"
)

// Chapter is one titled part of a video, in seconds.
type Chapter struct {
	Title string
	Start int
	End   int
}

var reTimestamp = regexp.MustCompile(`(?:\d+:)+\d+`) // 0:00, 12:34, 1:23:45

// parseChapters reads a chapter list from a video description: lines that
// carry exactly one timestamp, the first of them at 0:00.
func parseChapters(description string, duration int) []Chapter {
	var found []Chapter
	for _, line := range strings.Split(description, "\n") {
		matches := reTimestamp.FindAllString(line, -1)
		if len(matches) != 1 {
			continue
		}
		ts := matches[0]
		secs := parseTimestamp(ts)
		if len(found) == 0 && secs != 0 {
			continue
		}
		before, after, _ := strings.Cut(line, ts)
		label := strings.TrimSpace(strings.TrimLeft(after, " \t-:–—|>)]"))
		if label == "" {
			label = strings.TrimSpace(strings.TrimRight(before, " \t-:–—|<(["))
		}
		if label == "" {
			label = "Chapter"
		}
		found = append(found, Chapter{Title: label, Start: secs})
	}
	if len(found) < 2 {
		return nil
	}

	slices.SortStableFunc(found, func(a, b Chapter) int { return a.Start - b.Start })
	out := make([]Chapter, 0, len(found))
	for i, ch := range found {
		ch.End = duration
		if i+1 < len(found) {
			ch.End = found[i+1].Start
		}
		if ch.End > ch.Start {
			out = append(out, ch)
		}
	}
	if len(out) < 2 {
		return nil
	}
	return out
}

func parseTimestamp(s string) int {
	total := 0
	for _, p := range strings.Split(s, ":") {
		n, _ := strconv.Atoi(p)
		total = total*60 + n
	}
	return total
}

// SplitChapters turns a downloaded track into one track per chapter of its
// video. Every part shares the downloaded file. A video without chapters
// comes back as the track alone.
func SplitChapters(info Info, t session.Track) []session.Track {
	chapters := parseChapters(info.Description, info.Duration)
	if len(chapters) == 0 {
		return []session.Track{t}
	}
	out := make([]session.Track, 0, len(chapters))
	for _, ch := range chapters {
		part := t
		part.Title = fmt.Sprintf("%s (%s)", ch.Title, t.Title)
		part.Start = ch.Start
		part.End = ch.End
		part.Duration = ch.End - ch.Start
		out = append(out, part)
	}
	return out
}
