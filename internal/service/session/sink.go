package session

import "github.com/zhouzirui/connect-chat/backend/internal/model/chat"

// EventSink receives UI-facing notifications from a Controller. Methods are called
// while the controller holds its lock, so implementations must not call back into
// the Controller synchronously.
type EventSink interface {
	OnStatusChange(status chat.Status)
	OnMessage(entry chat.DisplayEntry)
	OnSendEnabled(enabled bool)
	// OnReset clears the displayed transcript and returns the UI to its start form.
	OnReset()
}

// NopSink discards every notification.
type NopSink struct{}

func (NopSink) OnStatusChange(chat.Status)  {}
func (NopSink) OnMessage(chat.DisplayEntry) {}
func (NopSink) OnSendEnabled(bool)          {}
func (NopSink) OnReset()                    {}
