package session

import (
	"context"

	"github.com/zhouzirui/connect-chat/backend/internal/service/stream"
)

// Stream is an open subscription. Close must guarantee no frame is delivered after it
// returns.
type Stream interface {
	Close() error
}

// StreamOpener opens a subscription to a stream endpoint and delivers raw frames to
// onFrame in arrival order.
type StreamOpener interface {
	Open(ctx context.Context, url string, onFrame func([]byte)) (Stream, error)
}

// WebsocketOpener opens streams with a websocket Dialer.
type WebsocketOpener struct {
	Dialer *stream.Dialer
}

func (o WebsocketOpener) Open(ctx context.Context, url string, onFrame func([]byte)) (Stream, error) {
	sub, err := o.Dialer.Open(ctx, url, onFrame)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
