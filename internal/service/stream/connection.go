package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/connect-chat/backend/internal/model/chat"
)

// Options 流连接配置选项
type Options struct {
	Topic            string        // 订阅的主题
	HandshakeTimeout time.Duration // 握手超时时间
	ReadTimeout      time.Duration // 读取超时时间
	WriteTimeout     time.Duration // 写入超时时间
	PingInterval     time.Duration // Ping间隔
}

// DefaultOptions 默认流连接选项
func DefaultOptions() *Options {
	return &Options{
		Topic:            chat.DefaultChatTopic,
		HandshakeTimeout: 30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

// Dialer opens stream subscriptions.
type Dialer struct {
	options *Options
	dialer  *websocket.Dialer
}

// NewDialer 创建流连接拨号器
func NewDialer(options *Options) *Dialer {
	if options == nil {
		options = DefaultOptions()
	}
	return &Dialer{
		options: options,
		dialer: &websocket.Dialer{
			HandshakeTimeout: options.HandshakeTimeout,
		},
	}
}

// Subscription is one open stream connection subscribed to a single topic.
type Subscription struct {
	conn    *websocket.Conn
	options *Options
	onFrame func([]byte)

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Open dials url, sends the subscribe frame and starts delivering raw frames to onFrame
// from a single reader goroutine, in arrival order.
func (d *Dialer) Open(ctx context.Context, url string, onFrame func([]byte)) (*Subscription, error) {
	conn, _, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	subscribe, err := chat.SubscribeFrame(d.options.Topic)
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetWriteDeadline(time.Now().Add(d.options.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, subscribe); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send subscribe frame: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(d.options.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(d.options.ReadTimeout))
		return nil
	})

	loopCtx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		conn:    conn,
		options: d.options,
		onFrame: onFrame,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go sub.readLoop(loopCtx)
	go sub.pingLoop(loopCtx)

	return sub, nil
}

// Done is closed once the reader goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close shuts the connection and waits for the reader to exit, so no frame is delivered
// after Close returns. It must not be called from onFrame.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	<-s.done
	return err
}

func (s *Subscription) readLoop(ctx context.Context) {
	defer close(s.done)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("component", "stream").Msg("stream closed unexpectedly")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		s.conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))
		s.onFrame(data)
	}
}

// pingLoop 定期发送ping消息
func (s *Subscription) pingLoop(ctx context.Context) {
	if s.options.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.options.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Debug().Err(err).Str("component", "stream").Msg("ping failed")
				return
			}
		}
	}
}
