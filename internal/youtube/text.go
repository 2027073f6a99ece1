package youtube

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const unnamedAuthor = "<unnamed>"

// FormatLines renders the chat items carried by an action as human readable
// lines. Replay wrappers are expanded. Actions without a chat item, or items
// without a usable time, produce nothing.
func FormatLines(a Action) []string {
	var lines []string
	for _, inner := range Flatten([]Action{a}) {
		if inner.AddChatItem == nil {
			continue
		}
		if line, ok := formatItem(inner.AddChatItem.Item); ok {
			lines = append(lines, line)
		}
	}
	return lines
}

func formatItem(item ChatItem) (string, bool) {
	r, kind := item.Renderer()
	if r == nil || kind == RendererViewerEngagement {
		return "", false
	}
	ts, ok := itemTime(r)
	if !ok {
		return "", false
	}

	var body string
	switch kind {
	case RendererText:
		body = fmt.Sprintf("%s%s: %s", authorName(r), badges(r), runsText(r.Message))
	case RendererMembership:
		body = runsText(r.HeaderSubtext)
	case RendererPaid:
		msg := "<no text>"
		if r.Message != nil {
			msg = runsText(r.Message)
		}
		amount := ""
		if r.PurchaseAmountText != nil {
			amount = r.PurchaseAmountText.SimpleText
		}
		body = fmt.Sprintf("[%s] %s%s: %s", amount, authorName(r), badges(r), msg)
	}
	if body == "" {
		return "", false
	}
	return ts + " " + body, true
}

func itemTime(r *MessageRenderer) (string, bool) {
	if r.TimestampText != nil && r.TimestampText.SimpleText != "" {
		return fmt.Sprintf("%8s", r.TimestampText.SimpleText), true
	}
	if r.TimestampUsec == "" {
		return "", false
	}
	usec, err := strconv.ParseInt(r.TimestampUsec, 10, 64)
	if err != nil {
		return "", false
	}
	return time.UnixMicro(usec).UTC().Format("2006-01-02T15:04:05"), true
}

func authorName(r *MessageRenderer) string {
	if r.AuthorName == nil || r.AuthorName.SimpleText == "" {
		return unnamedAuthor
	}
	return r.AuthorName.SimpleText
}

func badges(r *MessageRenderer) string {
	var b strings.Builder
	for _, badge := range r.AuthorBadges {
		label := ""
		if badge.Renderer != nil && badge.Renderer.Accessibility != nil {
			label = badge.Renderer.Accessibility.AccessibilityData.Label
		}
		b.WriteString("[" + label + "]")
	}
	return b.String()
}

func runsText(r *Runs) string {
	if r == nil {
		return ""
	}
	if len(r.Runs) == 0 {
		return r.SimpleText
	}
	var b strings.Builder
	for _, run := range r.Runs {
		switch {
		case run.Text != "":
			b.WriteString(run.Text)
		case run.Emoji != nil:
			label := run.Emoji.EmojiID
			if acc := run.Emoji.Image.Accessibility; acc != nil && acc.AccessibilityData.Label != "" {
				label = acc.AccessibilityData.Label
			}
			b.WriteString(" :" + label + ": ")
		}
	}
	return b.String()
}

// Text renders the runs as plain text with emoji shown as :label:.
func (r *Runs) Text() string {
	return strings.TrimSpace(runsText(r))
}
