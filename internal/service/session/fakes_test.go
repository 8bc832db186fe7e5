package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/zhouzirui/connect-chat/backend/internal/model/chat"
)

type createCall struct {
	displayName      string
	participantToken string
}

type fakeRelay struct {
	mu          sync.Mutex
	creates     []createCall
	connections []chat.Connection
	createErr   error
	posts       []string
	postErr     error
	ends        []string
	endErr      error
}

func (f *fakeRelay) CreateOrResumeSession(_ context.Context, displayName, participantToken string) (chat.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, createCall{displayName: displayName, participantToken: participantToken})
	if f.createErr != nil {
		return chat.Connection{}, f.createErr
	}
	if len(f.connections) == 0 {
		return chat.Connection{}, &chat.ProviderError{Op: "CreateOrResumeSession", Message: "no scripted connection"}
	}
	conn := f.connections[0]
	f.connections = f.connections[1:]
	return conn, nil
}

func (f *fakeRelay) PostMessage(_ context.Context, connectionToken, content string) (chat.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, connectionToken+"|"+content)
	if f.postErr != nil {
		return chat.Ack{}, f.postErr
	}
	return chat.Ack{Status: chat.AckMessageSent}, nil
}

func (f *fakeRelay) EndSession(_ context.Context, connectionToken string) (chat.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends = append(f.ends, connectionToken)
	if f.endErr != nil {
		return chat.Ack{}, f.endErr
	}
	return chat.Ack{Status: chat.AckDisconnected}, nil
}

func (f *fakeRelay) createCalls() []createCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]createCall(nil), f.creates...)
}

type fakeStream struct {
	mu      sync.Mutex
	url     string
	onFrame func([]byte)
	closed  bool
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// emit delivers a frame unless the stream is closed.
func (s *fakeStream) emit(raw []byte) {
	if s.isClosed() {
		return
	}
	s.onFrame(raw)
}

type fakeOpener struct {
	mu      sync.Mutex
	streams []*fakeStream
	err     error
	// early frames are delivered before Open returns
	early [][]byte
}

func (o *fakeOpener) Open(_ context.Context, url string, onFrame func([]byte)) (Stream, error) {
	o.mu.Lock()
	if o.err != nil {
		o.mu.Unlock()
		return nil, o.err
	}
	s := &fakeStream{url: url, onFrame: onFrame}
	o.streams = append(o.streams, s)
	early := o.early
	o.early = nil
	o.mu.Unlock()

	for _, raw := range early {
		s.emit(raw)
	}
	return s, nil
}

func (o *fakeOpener) last() *fakeStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.streams) == 0 {
		return nil
	}
	return o.streams[len(o.streams)-1]
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.streams)
}

func (o *fakeOpener) liveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, s := range o.streams {
		if !s.isClosed() {
			n++
		}
	}
	return n
}

type fakeTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{delay: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) lastTimer() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return nil
	}
	return c.timers[len(c.timers)-1]
}

// fire runs the timer callback on the calling goroutine unless it was stopped.
func (t *fakeTimer) fire() {
	t.mu.Lock()
	stopped := t.stopped
	t.stopped = true
	t.mu.Unlock()
	if !stopped {
		t.f()
	}
}

type recordingSink struct {
	mu       sync.Mutex
	statuses []chat.Status
	entries  []string
	sends    []bool
	resets   int
}

func (s *recordingSink) OnStatusChange(status chat.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *recordingSink) OnMessage(entry chat.DisplayEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry.String())
}

func (s *recordingSink) OnSendEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, enabled)
}

func (s *recordingSink) OnReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	s.entries = nil
}

func (s *recordingSink) snapshot() (statuses []chat.Status, entries []string, sends []bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Status(nil), s.statuses...), append([]string(nil), s.entries...), append([]bool(nil), s.sends...)
}

func chatFrame(content map[string]string) []byte {
	inner, _ := json.Marshal(content)
	raw, _ := json.Marshal(map[string]any{
		"topic":       chat.DefaultChatTopic,
		"contentType": "application/json",
		"content":     string(inner),
	})
	return raw
}

func messageFrame(role, name, text string) []byte {
	return chatFrame(map[string]string{
		"Type":            "MESSAGE",
		"ParticipantRole": role,
		"DisplayName":     name,
		"Content":         text,
	})
}

func endedFrame() []byte {
	return chatFrame(map[string]string{
		"Type":        "EVENT",
		"ContentType": "application/vnd.amazonaws.connect.event.chat.ended",
	})
}
