package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const queuePrefix = "queue:"

// QueueButtons returns the first/previous/next/last row for a paginated
// queue embed, or nil when everything fits on one page. Custom IDs carry the
// target page and must be unique within the message, hence the role prefix.
func QueueButtons(page, pages int) []discordgo.MessageComponent {
	if pages <= 1 {
		return nil
	}
	btn := func(role, label string, target int, disabled bool) discordgo.MessageComponent {
		return discordgo.Button{
			Label:    label,
			Style:    discordgo.SecondaryButton,
			CustomID: fmt.Sprintf("%s%s:%d", queuePrefix, role, target),
			Disabled: disabled,
		}
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			btn("first", "⏮", 1, page <= 1),
			btn("prev", "◀", max(1, page-1), page <= 1),
			btn("next", "▶", min(pages, page+1), page >= pages),
			btn("last", "⏭", pages, page >= pages),
		}},
	}
}

// ParseQueueButton extracts the target page from a QueueButtons custom ID.
func ParseQueueButton(customID string) (int, bool) {
	rest, ok := strings.CutPrefix(customID, queuePrefix)
	if !ok {
		return 0, false
	}
	_, num, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, false
	}
	page, err := strconv.Atoi(num)
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}
