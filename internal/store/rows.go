// Package store persists chat items to Postgres.
package store

import (
	"encoding/json"
	"strconv"

	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

// Row is one chat item as stored in the chat_messages table.
type Row struct {
	VideoID       string
	ItemID        string
	Kind          string
	Author        string
	AuthorID      string
	Message       string
	Amount        string
	TimestampUsec int64
	VideoOffsetMs *int64
	Raw           json.RawMessage
}

// Rows flattens the chat items in actions. Actions without a chat item and
// items without an id are skipped. Items inside a replay wrapper carry the
// wrapper's video offset.
func Rows(videoID string, actions []youtube.Action) []Row {
	var rows []Row
	for _, a := range actions {
		if a.ReplayChatItem != nil {
			offset := int64(a.ReplayChatItem.VideoOffsetTimeMsec)
			for _, inner := range a.ReplayChatItem.Actions {
				if row, ok := rowFor(videoID, inner); ok {
					row.VideoOffsetMs = &offset
					rows = append(rows, row)
				}
			}
			continue
		}
		if row, ok := rowFor(videoID, a); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

func rowFor(videoID string, a youtube.Action) (Row, bool) {
	if a.AddChatItem == nil {
		return Row{}, false
	}
	r, kind := a.AddChatItem.Item.Renderer()
	if r == nil || r.ID == "" {
		return Row{}, false
	}

	raw, err := json.Marshal(a)
	if err != nil {
		return Row{}, false
	}
	row := Row{
		VideoID:  videoID,
		ItemID:   r.ID,
		Kind:     string(kind),
		AuthorID: r.AuthorExternalID,
		Raw:      raw,
	}
	if r.AuthorName != nil {
		row.Author = r.AuthorName.SimpleText
	}
	if kind == youtube.RendererMembership && r.Message == nil {
		row.Message = r.HeaderSubtext.Text()
	} else {
		row.Message = r.Message.Text()
	}
	if r.PurchaseAmountText != nil {
		row.Amount = r.PurchaseAmountText.SimpleText
	}
	if usec, err := strconv.ParseInt(r.TimestampUsec, 10, 64); err == nil {
		row.TimestampUsec = usec
	}
	return row, true
}
