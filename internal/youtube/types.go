package youtube

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Millis is a millisecond quantity. YouTube encodes these either as JSON
// numbers or as decimal strings depending on the field.
type Millis int64

func (m *Millis) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*m = Millis(n)
	return nil
}

// Continuations

type ReloadContinuationData struct {
	Continuation string `json:"continuation"`
}

type TimedContinuationData struct {
	TimeoutMs    Millis `json:"timeoutMs"`
	Continuation string `json:"continuation"`
}

type InvalidationContinuationData struct {
	TimeoutMs    Millis `json:"timeoutMs"`
	Continuation string `json:"continuation"`
}

type LiveChatReplayContinuationData struct {
	TimeUntilLastMessageMsec Millis `json:"timeUntilLastMessageMsec,omitempty"`
	Continuation             string `json:"continuation"`
}

type PlayerSeekContinuationData struct {
	Continuation string `json:"continuation"`
}

// Continuation is one "next page" record. Exactly one field is set in
// anything YouTube sends.
type Continuation struct {
	Reload         *ReloadContinuationData         `json:"reloadContinuationData,omitempty"`
	Timed          *TimedContinuationData          `json:"timedContinuationData,omitempty"`
	Invalidation   *InvalidationContinuationData   `json:"invalidationContinuationData,omitempty"`
	LiveChatReplay *LiveChatReplayContinuationData `json:"liveChatReplayContinuationData,omitempty"`
	PlayerSeek     *PlayerSeekContinuationData     `json:"playerSeekContinuationData,omitempty"`
}

// Text

type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

type Accessibility struct {
	AccessibilityData struct {
		Label string `json:"label"`
	} `json:"accessibilityData"`
}

type Image struct {
	Thumbnails    []Thumbnail    `json:"thumbnails"`
	Accessibility *Accessibility `json:"accessibility,omitempty"`
}

type Emoji struct {
	EmojiID       string `json:"emojiId"`
	Image         Image  `json:"image"`
	IsCustomEmoji bool   `json:"isCustomEmoji,omitempty"`
}

// Run is a piece of a message body: plain text or an emoji.
type Run struct {
	Text  string `json:"text,omitempty"`
	Emoji *Emoji `json:"emoji,omitempty"`
}

type SimpleText struct {
	SimpleText string `json:"simpleText"`
}

// Runs holds either a list of runs or a simpleText fallback.
type Runs struct {
	Runs       []Run  `json:"runs,omitempty"`
	SimpleText string `json:"simpleText,omitempty"`
}

type Icon struct {
	IconType string `json:"iconType"`
}

type AuthorBadgeRenderer struct {
	CustomThumbnail *Image         `json:"customThumbnail,omitempty"`
	Icon            *Icon          `json:"icon,omitempty"`
	Tooltip         string         `json:"tooltip,omitempty"`
	Accessibility   *Accessibility `json:"accessibility,omitempty"`
}

type AuthorBadge struct {
	Renderer *AuthorBadgeRenderer `json:"liveChatAuthorBadgeRenderer,omitempty"`
}

// Chat items

// MessageRenderer is the shared shape of the chat item renderers. Fields a
// particular renderer doesn't carry stay empty.
type MessageRenderer struct {
	ID                 string        `json:"id"`
	TimestampUsec      string        `json:"timestampUsec,omitempty"`
	TimestampText      *SimpleText   `json:"timestampText,omitempty"`
	AuthorName         *SimpleText   `json:"authorName,omitempty"`
	AuthorPhoto        *Image        `json:"authorPhoto,omitempty"`
	AuthorBadges       []AuthorBadge `json:"authorBadges,omitempty"`
	AuthorExternalID   string        `json:"authorExternalChannelId,omitempty"`
	Message            *Runs         `json:"message,omitempty"`
	PurchaseAmountText *SimpleText   `json:"purchaseAmountText,omitempty"`
	HeaderSubtext      *Runs         `json:"headerSubtext,omitempty"`
}

type RendererKind string

const (
	RendererText             RendererKind = "text"
	RendererPaid             RendererKind = "paid"
	RendererMembership       RendererKind = "membership"
	RendererViewerEngagement RendererKind = "viewer_engagement"
)

type ChatItem struct {
	TextMessage      *MessageRenderer `json:"liveChatTextMessageRenderer,omitempty"`
	PaidMessage      *MessageRenderer `json:"liveChatPaidMessageRenderer,omitempty"`
	Membership       *MessageRenderer `json:"liveChatMembershipItemRenderer,omitempty"`
	ViewerEngagement *MessageRenderer `json:"liveChatViewerEngagementMessageRenderer,omitempty"`
}

// Renderer returns whichever renderer is present, or nil.
func (c ChatItem) Renderer() (*MessageRenderer, RendererKind) {
	switch {
	case c.TextMessage != nil:
		return c.TextMessage, RendererText
	case c.PaidMessage != nil:
		return c.PaidMessage, RendererPaid
	case c.Membership != nil:
		return c.Membership, RendererMembership
	case c.ViewerEngagement != nil:
		return c.ViewerEngagement, RendererViewerEngagement
	}
	return nil, ""
}

// Actions

type AddChatItemAction struct {
	Item ChatItem `json:"item"`
}

// ReplayChatItemAction wraps the actions that happened at one point of a
// recorded broadcast.
type ReplayChatItemAction struct {
	Actions             []Action `json:"actions"`
	VideoOffsetTimeMsec Millis   `json:"videoOffsetTimeMsec"`
}

type ActionKind string

const (
	ActionAddChatItem         ActionKind = "addChatItemAction"
	ActionAddTickerItem       ActionKind = "addLiveChatTickerItemAction"
	ActionReplayChatItem      ActionKind = "replayChatItemAction"
	ActionMarkDeleted         ActionKind = "markChatItemAsDeletedAction"
	ActionMarkDeletedByAuthor ActionKind = "markChatItemsByAuthorAsDeletedAction"
	ActionUnknown             ActionKind = "unknown"
)

// Action is one entry of a chat response. The raw JSON it was decoded from
// is kept so that re-encoding never loses fields this package doesn't model.
type Action struct {
	AddChatItem                    *AddChatItemAction    `json:"addChatItemAction,omitempty"`
	AddLiveChatTickerItem          json.RawMessage       `json:"addLiveChatTickerItemAction,omitempty"`
	ReplayChatItem                 *ReplayChatItemAction `json:"replayChatItemAction,omitempty"`
	MarkChatItemAsDeleted          json.RawMessage       `json:"markChatItemAsDeletedAction,omitempty"`
	MarkChatItemsByAuthorAsDeleted json.RawMessage       `json:"markChatItemsByAuthorAsDeletedAction,omitempty"`

	raw json.RawMessage
}

type plainAction Action

func (a *Action) UnmarshalJSON(b []byte) error {
	var p plainAction
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*a = Action(p)
	a.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (a Action) MarshalJSON() ([]byte, error) {
	if len(a.raw) > 0 {
		return a.raw, nil
	}
	return json.Marshal(plainAction(a))
}

// Kind reports which variant the action carries.
func (a Action) Kind() ActionKind {
	switch {
	case a.AddChatItem != nil:
		return ActionAddChatItem
	case a.ReplayChatItem != nil:
		return ActionReplayChatItem
	case len(a.AddLiveChatTickerItem) > 0:
		return ActionAddTickerItem
	case len(a.MarkChatItemAsDeleted) > 0:
		return ActionMarkDeleted
	case len(a.MarkChatItemsByAuthorAsDeleted) > 0:
		return ActionMarkDeletedByAuthor
	}
	return ActionUnknown
}

// Flatten expands replay wrappers into their inner actions, keeping order.
func Flatten(actions []Action) []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		if a.ReplayChatItem != nil {
			out = append(out, a.ReplayChatItem.Actions...)
			continue
		}
		out = append(out, a)
	}
	return out
}

// LastVideoOffset returns the offset of the last replay wrapper in actions.
func LastVideoOffset(actions []Action) (int64, bool) {
	for i := len(actions) - 1; i >= 0; i-- {
		if r := actions[i].ReplayChatItem; r != nil {
			return int64(r.VideoOffsetTimeMsec), true
		}
	}
	return 0, false
}

// Video page

type LiveChatRenderer struct {
	Continuations []Continuation `json:"continuations"`
}

type ConversationBar struct {
	LiveChatRenderer *LiveChatRenderer `json:"liveChatRenderer,omitempty"`
}

type PageInitialData struct {
	Contents struct {
		TwoColumnWatchNextResults struct {
			ConversationBar *ConversationBar `json:"conversationBar,omitempty"`
		} `json:"twoColumnWatchNextResults"`
	} `json:"contents"`
}

type VideoDetails struct {
	VideoID       string `json:"videoId"`
	Title         string `json:"title"`
	Author        string `json:"author,omitempty"`
	ChannelID     string `json:"channelId,omitempty"`
	IsLive        bool   `json:"isLive,omitempty"`
	IsLiveContent bool   `json:"isLiveContent,omitempty"`
}

type LiveBroadcastDetails struct {
	IsLiveNow      bool   `json:"isLiveNow,omitempty"`
	StartTimestamp string `json:"startTimestamp,omitempty"`
	EndTimestamp   string `json:"endTimestamp,omitempty"`
}

type PlayerResponse struct {
	VideoDetails VideoDetails `json:"videoDetails"`
	Microformat  struct {
		PlayerMicroformatRenderer struct {
			LiveBroadcastDetails *LiveBroadcastDetails `json:"liveBroadcastDetails,omitempty"`
		} `json:"playerMicroformatRenderer"`
	} `json:"microformat"`
}

// Page is the structured content of a watch page.
type Page struct {
	InitialData    PageInitialData `json:"parsedInitialData"`
	PlayerResponse PlayerResponse  `json:"parsedInitialPlayerResponse"`
}

func (p *Page) VideoID() string { return p.PlayerResponse.VideoDetails.VideoID }
func (p *Page) Title() string   { return p.PlayerResponse.VideoDetails.Title }
func (p *Page) IsLive() bool    { return p.PlayerResponse.VideoDetails.IsLive }

// IsArchive reports a finished broadcast: live content that is no longer live.
func (p *Page) IsArchive() bool {
	return !p.IsLive() && p.PlayerResponse.VideoDetails.IsLiveContent
}

// ChatContinuations returns the continuations of the page's chat room. ok is
// false when the page has no chat room.
func (p *Page) ChatContinuations() (list []Continuation, ok bool) {
	bar := p.InitialData.Contents.TwoColumnWatchNextResults.ConversationBar
	if bar == nil || bar.LiveChatRenderer == nil {
		return nil, false
	}
	return bar.LiveChatRenderer.Continuations, true
}

// Chat page

type LiveChatContinuation struct {
	Continuations []Continuation `json:"continuations"`
	Actions       []Action       `json:"actions,omitempty"`
}

type ContinuationContents struct {
	LiveChatContinuation LiveChatContinuation `json:"liveChatContinuation"`
}

// ClientConfig is the part of ytcfg needed for follow-up XHR calls.
type ClientConfig struct {
	APIKey  string          `json:"INNERTUBE_API_KEY"`
	Context json.RawMessage `json:"INNERTUBE_CONTEXT"`
}

// ChatPage is the structured content of the live_chat / live_chat_replay page.
type ChatPage struct {
	InitialData struct {
		ContinuationContents ContinuationContents `json:"continuationContents"`
	} `json:"parsedInitialData"`
	Config ClientConfig `json:"parsedYtCfg"`
}

func (c *ChatPage) Continuations() []Continuation {
	return c.InitialData.ContinuationContents.LiveChatContinuation.Continuations
}

func (c *ChatPage) Actions() []Action {
	return c.InitialData.ContinuationContents.LiveChatContinuation.Actions
}

// ChatXhrResponse is the body of get_live_chat / get_live_chat_replay. A nil
// ContinuationContents means the chain has ended.
type ChatXhrResponse struct {
	ContinuationContents *ContinuationContents `json:"continuationContents,omitempty"`
}

func (r *ChatXhrResponse) Ended() bool { return r.ContinuationContents == nil }

func (r *ChatXhrResponse) Continuations() []Continuation {
	if r.ContinuationContents == nil {
		return nil
	}
	return r.ContinuationContents.LiveChatContinuation.Continuations
}

func (r *ChatXhrResponse) Actions() []Action {
	if r.ContinuationContents == nil {
		return nil
	}
	return r.ContinuationContents.LiveChatContinuation.Actions
}
