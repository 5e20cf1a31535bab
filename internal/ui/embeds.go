package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/tubebot/internal/session"
	"github.com/sonroyaalmerol/tubebot/internal/utils"
)

const (
	PageSize = 20

	maxDesc  = 4096
	maxTitle = 256
	maxField = 1024
)

var ErrPageOutOfRange = errors.New("the queue isn't that big")

func trackLink(t session.Track) string {
	return fmt.Sprintf("[%s](%s)", utils.EscapeMd(utils.Truncate(t.Title, 100)), t.Link())
}

func duration(t session.Track) string {
	if t.Duration <= 0 {
		return "?"
	}
	return utils.PrettyTime(t.Duration)
}

func loopIcon(m session.LoopMode) string {
	switch m {
	case session.LoopSingle:
		return "🔂"
	case session.LoopAll:
		return "🔁"
	}
	return ""
}

func statusIcon(s session.PlayerStatus) string {
	if s == session.StatusPaused {
		return "⏸️"
	}
	return "▶️"
}

func footer(s session.Snapshot) *discordgo.MessageEmbedFooter {
	return &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("%s %s · loop: %s", statusIcon(s.Status), s.Status, s.Loop),
	}
}

// NothingPlaying is shown when a guild has no session.
func NothingPlaying(color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Nothing Playing",
		Description: "No track is playing right now.",
		Color:       color,
	}
}

func CurrentEmbed(s session.Snapshot, color int) *discordgo.MessageEmbed {
	cur, ok := s.Current()
	if !ok {
		return NothingPlaying(color)
	}
	title := utils.Truncate(cur.Title, maxField)
	if title == "" {
		title = cur.ID
	}
	embed := &discordgo.MessageEmbed{
		Title: "Currently Playing",
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Title", Value: title},
			{Name: "YouTube Link:", Value: cur.Link()},
		},
		Footer: footer(s),
	}
	if cur.Duration > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Length",
			Value:  utils.PrettyTime(cur.Duration),
			Inline: true,
		})
	}
	if cur.RequestedBy != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Requested by",
			Value:  "<@" + cur.RequestedBy + ">",
			Inline: true,
		})
	}
	return embed
}

// PageCount is the number of queue pages. A queue holding only the playing
// track still has one page.
func PageCount(s session.Snapshot) int {
	pending := max(0, len(s.Tracks)-1)
	return max(1, (pending+PageSize-1)/PageSize)
}

// QueueEmbed renders page (1-based) of the queue. The playing track heads
// every page; pending tracks are numbered from 1 as the queue commands
// address them.
func QueueEmbed(s session.Snapshot, page, color int) (*discordgo.MessageEmbed, error) {
	cur, ok := s.Current()
	if !ok {
		return nil, session.ErrNothingPlaying
	}
	if page < 1 {
		page = 1
	}
	pages := PageCount(s)
	if page > pages {
		return nil, ErrPageOutOfRange
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Now playing:** %s `[ %s ]`\n\n", trackLink(cur), duration(cur))

	pending := s.Tracks[1:]
	begin := (page - 1) * PageSize
	end := min(begin+PageSize, len(pending))
	if begin < end {
		b.WriteString("**Up next:**\n")
	}
	shown := 0
	for i := begin; i < end; i++ {
		line := fmt.Sprintf("`%d.` %s `[ %s ]`\n", i+1, trackLink(pending[i]), duration(pending[i]))
		if b.Len()+len(line) > maxDesc-32 {
			break
		}
		b.WriteString(line)
		shown++
	}
	if rest := end - begin - shown; rest > 0 {
		fmt.Fprintf(&b, "…and %d more", rest)
	}

	total := 0
	for _, t := range s.Tracks {
		total += t.Duration
	}

	title := "Queue"
	if icon := loopIcon(s.Loop); icon != "" {
		title += " " + icon
	}
	embed := &discordgo.MessageEmbed{
		Title:       utils.Truncate(title, maxTitle),
		Description: b.String(),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "In queue", Value: queueInfo(len(pending)), Inline: true},
			{Name: "Total length", Value: totalLenStr(total), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d/%d · loop: %s", page, pages, s.Loop),
		},
	}
	return embed, nil
}

func queueInfo(n int) string {
	switch n {
	case 0:
		return "-"
	case 1:
		return "1 track"
	}
	return fmt.Sprintf("%d tracks", n)
}

func totalLenStr(sec int) string {
	if sec <= 0 {
		return "-"
	}
	return utils.PrettyTime(sec)
}
