// Package source defines the boundary to the message-source client: the
// live update stream, the history-fetch API used by backfill, and a
// connectivity probe.
package source

import (
	"context"
	"errors"
	"time"
)

// Message is one observed message from a monitored chat.
type Message struct {
	ChatID    int64
	MessageID int64
	Text      string
	Date      time.Time
}

// ErrHistoryUnavailable is returned by clients whose backing API cannot
// fetch chat history. Backfill skips such sources.
var ErrHistoryUnavailable = errors.New("history fetch not supported by this source client")

// Client is the message-source client.
type Client interface {
	// Updates returns a stream of live messages. The channel closes when
	// the context is cancelled or the client shuts down.
	Updates(ctx context.Context) (<-chan Message, error)

	// History returns up to pageSize messages from a chat with ids
	// strictly greater than afterID, in ascending id order. An empty page
	// means there is nothing newer.
	History(ctx context.Context, chatID, afterID int64, pageSize int) ([]Message, error)

	// Connected reports whether the client currently has a live link to
	// the source.
	Connected() bool
}
