package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// TelegramClient receives live channel posts through Bot API long polling.
// The Bot API has no per-chat history endpoint, so History reports
// ErrHistoryUnavailable; deployments that need deep backfill plug in a
// client backed by a fuller API.
type TelegramClient struct {
	baseURL    string
	httpClient *http.Client
	watched    map[int64]bool
	// offset is atomic: a restart can briefly overlap a draining poll loop
	// with its replacement.
	offset    atomic.Int64
	connected atomic.Bool
}

type tgUpdate struct {
	UpdateID    int64      `json:"update_id"`
	Message     *tgMessage `json:"message"`
	ChannelPost *tgMessage `json:"channel_post"`
}

type tgMessage struct {
	MessageID int64  `json:"message_id"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

type tgUpdatesResponse struct {
	OK          bool       `json:"ok"`
	Description string     `json:"description"`
	Result      []tgUpdate `json:"result"`
}

// NewTelegramClient creates a long-polling client limited to the given
// chats. An empty watch list accepts every chat.
func NewTelegramClient(token string, watchedChats []int64, timeout time.Duration) *TelegramClient {
	return newTelegramClientForURL("https://api.telegram.org/bot"+token, watchedChats, timeout)
}

// newTelegramClientForURL is the test seam for pointing at a fake server.
func newTelegramClientForURL(baseURL string, watchedChats []int64, timeout time.Duration) *TelegramClient {
	watched := make(map[int64]bool, len(watchedChats))
	for _, id := range watchedChats {
		watched[id] = true
	}
	return &TelegramClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		watched:    watched,
	}
}

// Updates starts the long-poll loop and returns its output channel.
func (c *TelegramClient) Updates(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message, 64)
	go c.pollLoop(ctx, out)
	return out, nil
}

func (c *TelegramClient) pollLoop(ctx context.Context, out chan<- Message) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			c.connected.Store(false)
			return
		default:
		}

		updates, err := c.getUpdates(ctx)
		if err != nil {
			c.connected.Store(false)
			if ctx.Err() != nil {
				return
			}
			logrus.Warnf("Telegram getUpdates failed: %v", err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		c.connected.Store(true)

		for _, upd := range updates {
			if upd.UpdateID >= c.offset.Load() {
				c.offset.Store(upd.UpdateID + 1)
			}
			msg := upd.ChannelPost
			if msg == nil {
				msg = upd.Message
			}
			if msg == nil {
				continue
			}
			if len(c.watched) > 0 && !c.watched[msg.Chat.ID] {
				continue
			}
			select {
			case out <- Message{
				ChatID:    msg.Chat.ID,
				MessageID: msg.MessageID,
				Text:      msg.Text,
				Date:      time.Unix(msg.Date, 0).UTC(),
			}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *TelegramClient) getUpdates(ctx context.Context) ([]tgUpdate, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(c.offset.Load(), 10))
	params.Set("timeout", "25")
	params.Set("allowed_updates", `["message","channel_post"]`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/getUpdates?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body tgUpdatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode getUpdates response: %w", err)
	}
	if !body.OK {
		return nil, fmt.Errorf("getUpdates rejected: %s", body.Description)
	}
	return body.Result, nil
}

// History is not supported by the Bot API.
func (c *TelegramClient) History(ctx context.Context, chatID, afterID int64, pageSize int) ([]Message, error) {
	return nil, ErrHistoryUnavailable
}

// Connected reports whether the last poll round-trip succeeded.
func (c *TelegramClient) Connected() bool {
	return c.connected.Load()
}
