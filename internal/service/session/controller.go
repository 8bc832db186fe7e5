package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/connect-chat/backend/internal/model/chat"
)

const (
	// DefaultRefreshMargin is how long before expiry the connection is refreshed.
	DefaultRefreshMargin = 5 * time.Second

	systemSender      = "System"
	connectingMessage = "Connecting..."
)

// Relay is the relay operation set the controller depends on.
type Relay interface {
	CreateOrResumeSession(ctx context.Context, displayName, participantToken string) (chat.Connection, error)
	PostMessage(ctx context.Context, connectionToken, content string) (chat.Ack, error)
	EndSession(ctx context.Context, connectionToken string) (chat.Ack, error)
}

// Options configures a Controller.
type Options struct {
	RefreshMargin  time.Duration
	RequestTimeout time.Duration
	Topic          string
	Clock          Clock
}

// DefaultOptions returns the options used when NewController receives nil.
func DefaultOptions() *Options {
	return &Options{
		RefreshMargin:  DefaultRefreshMargin,
		RequestTimeout: 15 * time.Second,
		Topic:          chat.DefaultChatTopic,
		Clock:          realClock{},
	}
}

// Controller owns the single chat session of one UI instance. Operations may be called
// from any goroutine; refresh timers and inbound frames are serialized with them on mu.
type Controller struct {
	relay  Relay
	opener StreamOpener
	sink   EventSink
	opts   Options

	mu          sync.Mutex
	session     chat.Session
	gen         uint64
	stream      Stream
	timer       Timer
	ctx         context.Context
	cancel      context.CancelFunc
	sendEnabled bool
	ended       bool

	inflight sync.WaitGroup
}

// NewController creates a controller in the Idle state.
func NewController(relay Relay, opener StreamOpener, sink EventSink, opts *Options) *Controller {
	o := *DefaultOptions()
	if opts != nil {
		if opts.RefreshMargin > 0 {
			o.RefreshMargin = opts.RefreshMargin
		}
		if opts.RequestTimeout > 0 {
			o.RequestTimeout = opts.RequestTimeout
		}
		if opts.Topic != "" {
			o.Topic = opts.Topic
		}
		if opts.Clock != nil {
			o.Clock = opts.Clock
		}
	}
	if sink == nil {
		sink = NopSink{}
	}

	return &Controller{
		relay:   relay,
		opener:  opener,
		sink:    sink,
		opts:    o,
		session: chat.Session{Status: chat.StatusIdle},
	}
}

// Status returns the current session status.
func (c *Controller) Status() chat.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Status
}

// Session returns a copy of the current session.
func (c *Controller) Session() chat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// CanSend reports whether the UI should allow sending.
func (c *Controller) CanSend() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendEnabled
}

// Start begins a new session for the visitor. Both names are required.
func (c *Controller) Start(ctx context.Context, firstName, lastName string) error {
	displayName, err := displayNameOf(firstName, lastName)
	if err != nil {
		return err
	}
	return c.begin(ctx, displayName, "")
}

// Rejoin begins a session with a participant token obtained earlier, so the provider
// reconnects the visitor to the existing contact.
func (c *Controller) Rejoin(ctx context.Context, firstName, lastName, participantToken string) error {
	displayName, err := displayNameOf(firstName, lastName)
	if err != nil {
		return err
	}
	participantToken = strings.TrimSpace(participantToken)
	if participantToken == "" {
		return &chat.ValidationError{Field: "participantToken", Message: "is required"}
	}
	return c.begin(ctx, displayName, participantToken)
}

func displayNameOf(firstName, lastName string) (string, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return "", &chat.ValidationError{Message: "please enter a first and last name"}
	}
	return firstName + " " + lastName, nil
}

func (c *Controller) begin(ctx context.Context, displayName, participantToken string) error {
	c.mu.Lock()
	if c.session.Status.Live() {
		c.mu.Unlock()
		return chat.ErrSessionInProgress
	}

	c.gen++
	gen := c.gen
	sessionCtx, cancel := context.WithCancel(context.Background())
	c.ctx, c.cancel = sessionCtx, cancel
	c.session = chat.Session{
		ID:               uuid.NewString(),
		DisplayName:      displayName,
		ParticipantToken: participantToken,
		Status:           chat.StatusConnecting,
	}
	c.sendEnabled = false
	c.ended = false
	logger := c.loggerLocked()
	c.sink.OnStatusChange(chat.StatusConnecting)
	c.mu.Unlock()

	conn, err := c.relay.CreateOrResumeSession(ctx, displayName, participantToken)
	if err != nil {
		logger.Warn().Err(err).Msg("create session failed")
		c.abort(gen)
		return err
	}

	if !c.current(gen) {
		// torn down while connecting
		c.endQuietly(ctx, logger, conn.ConnectionToken)
		return nil
	}

	sub, err := c.opener.Open(sessionCtx, conn.StreamEndpoint, c.frameHandler(gen))
	if err != nil {
		logger.Warn().Err(err).Msg("open stream failed")
		c.endQuietly(ctx, logger, conn.ConnectionToken)
		c.abort(gen)
		return &chat.TransportError{Reason: "open stream", Err: err}
	}

	c.mu.Lock()
	if c.gen != gen {
		// torn down while connecting
		c.mu.Unlock()
		_ = sub.Close()
		c.endQuietly(ctx, logger, conn.ConnectionToken)
		return nil
	}
	c.session.Apply(conn)
	if c.ended {
		// the stream already delivered the ended event
		c.session.ConnectionToken = ""
	}
	c.stream = sub
	c.scheduleRefreshLocked(gen)
	c.sink.OnMessage(chat.DisplayEntry{From: systemSender, Text: connectingMessage})
	c.mu.Unlock()

	logger.Info().Time("expires_at", conn.ExpiresAt).Msg("session connecting")
	return nil
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// abort returns a failed Connecting session to Idle.
func (c *Controller) abort(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.ctx, c.cancel = nil, nil
	c.session = chat.Session{Status: chat.StatusIdle}
	c.sink.OnStatusChange(chat.StatusIdle)
}

// scheduleRefreshLocked arms the refresh timer for ExpiresAt minus the margin.
func (c *Controller) scheduleRefreshLocked(gen uint64) {
	if c.timer != nil {
		c.timer.Stop()
	}
	delay := c.session.ExpiresAt.Sub(c.opts.Clock.Now()) - c.opts.RefreshMargin
	if delay < 0 {
		delay = 0
	}
	c.timer = c.opts.Clock.AfterFunc(delay, func() { c.refresh(gen) })
}

// refresh exchanges the participant token for a new connection and re-subscribes.
// Failures leave the stale credentials in place.
func (c *Controller) refresh(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || !c.session.Status.Live() || c.ended || c.ctx == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.inflight.Add(1)
	defer c.inflight.Done()

	displayName := c.session.DisplayName
	participantToken := c.session.ParticipantToken
	parent := c.ctx
	logger := c.loggerLocked()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, c.opts.RequestTimeout)
	defer cancel()

	conn, err := c.relay.CreateOrResumeSession(ctx, displayName, participantToken)
	if err != nil {
		logger.Warn().Err(err).Msg("token refresh failed, keeping stale connection")
		return
	}

	sub, err := c.opener.Open(parent, conn.StreamEndpoint, c.frameHandler(gen))
	if err != nil {
		logger.Warn().Err(err).Msg("re-subscribe failed, keeping previous stream")
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		if sub != nil {
			_ = sub.Close()
		}
		return
	}

	var old Stream
	c.session.Apply(conn)
	if c.ended {
		c.session.ConnectionToken = ""
	}
	if sub != nil {
		old = c.stream
		c.stream = sub
	}
	c.scheduleRefreshLocked(gen)
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	logger.Debug().Time("expires_at", conn.ExpiresAt).Msg("connection refreshed")
}

// frameHandler binds inbound frames to the session generation that opened the stream.
func (c *Controller) frameHandler(gen uint64) func([]byte) {
	return func(raw []byte) {
		msg, ok, err := chat.ParseFrame(raw, c.opts.Topic)
		if err != nil {
			log.Debug().Err(err).Str("component", "session").Msg("ignoring malformed frame")
			return
		}
		if !ok {
			return
		}
		c.handleInbound(gen, msg)
	}
}

func (c *Controller) handleInbound(gen uint64, msg chat.InboundMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || !c.session.Status.Live() {
		return
	}

	switch msg.Kind {
	case chat.KindChatMessage:
		if msg.Role == chat.RoleCustomer {
			return
		}
		if c.session.Status == chat.StatusConnecting {
			c.session.Status = chat.StatusActive
			c.sink.OnStatusChange(chat.StatusActive)
			if !c.ended {
				c.sendEnabled = true
				c.sink.OnSendEnabled(true)
			}
		}
		c.sink.OnMessage(chat.DisplayEntry{From: msg.DisplayName, Text: msg.Body})

	case chat.KindParticipantEvent:
		if !msg.Ended() || c.ended {
			return
		}
		c.ended = true
		c.session.ConnectionToken = ""
		if c.sendEnabled {
			c.sendEnabled = false
			c.sink.OnSendEnabled(false)
		}
		logger := c.loggerLocked()
		logger.Info().Str("event", msg.Body).Msg("conversation ended by provider")
	}
}

// Send posts text and appends it to the display once the relay accepts it. Blank text
// is ignored. A failed post is logged and dropped, never retried.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	gen := c.gen
	token := c.session.ConnectionToken
	displayName := c.session.DisplayName
	logger := c.loggerLocked()
	c.mu.Unlock()

	if _, err := c.relay.PostMessage(ctx, token, text); err != nil {
		logger.Warn().Err(err).Msg("send failed, message dropped")
		return err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.sink.OnMessage(chat.DisplayEntry{From: displayName, Text: text})
	}
	c.mu.Unlock()
	return nil
}

// Leave resets the UI and tears the session down.
func (c *Controller) Leave(ctx context.Context) {
	c.sink.OnReset()
	c.Disconnect(ctx)
}

// Disconnect cancels the pending refresh, closes the stream and, when a connection token
// is still known, notifies the relay. It is idempotent, and once it returns no callback
// from the torn down session mutates controller state.
func (c *Controller) Disconnect(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	timer := c.timer
	sub := c.stream
	cancel := c.cancel
	token := c.session.ConnectionToken
	wasLive := c.session.Status.Live()
	logger := c.loggerLocked()

	status := c.session.Status
	if wasLive {
		status = chat.StatusEnded
	}
	c.timer = nil
	c.stream = nil
	c.ctx, c.cancel = nil, nil
	c.session = chat.Session{Status: status}
	c.ended = false
	if c.sendEnabled {
		c.sendEnabled = false
		c.sink.OnSendEnabled(false)
	}
	if wasLive {
		c.sink.OnStatusChange(chat.StatusEnded)
	}
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if cancel != nil {
		cancel()
	}
	c.inflight.Wait()
	if sub != nil {
		_ = sub.Close()
	}

	if token != "" {
		c.endQuietly(ctx, logger, token)
	}
	if wasLive {
		logger.Info().Msg("session disconnected")
	}
}

func (c *Controller) endQuietly(ctx context.Context, logger zerolog.Logger, connectionToken string) {
	if connectionToken == "" {
		return
	}
	if _, err := c.relay.EndSession(ctx, connectionToken); err != nil {
		logger.Debug().Err(err).Msg("end session failed, ignoring")
	}
}

func (c *Controller) loggerLocked() zerolog.Logger {
	return log.With().Str("component", "session").Str("session_id", c.session.ID).Logger()
}
