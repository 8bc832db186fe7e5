package chat

import (
	"encoding/json"
	"strings"
)

// Kind 区分流上到达的内容类型。
type Kind int

const (
	KindChatMessage Kind = iota + 1
	KindParticipantEvent
)

// Role identifies who produced an inbound message.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAgent    Role = "AGENT"
	RoleSystem   Role = "SYSTEM"
)

const (
	// SubscribeTopic is the control topic used to subscribe on a fresh stream.
	SubscribeTopic = "aws/subscribe"
	// DefaultChatTopic carries chat messages and participant events.
	DefaultChatTopic = "aws/chat"

	frameContentType = "application/json"
	contentMessage   = "MESSAGE"
	contentEvent     = "EVENT"
)

// InboundMessage is a message or control event received on the stream.
type InboundMessage struct {
	Kind        Kind
	Role        Role
	DisplayName string
	// Body is the text for chat messages and the event subtype for participant events.
	Body string
}

// Ended reports whether a participant event signals the end of the conversation.
func (m InboundMessage) Ended() bool {
	return m.Kind == KindParticipantEvent && strings.Contains(m.Body, "ended")
}

// DisplayEntry 是写入聊天记录的一行。
type DisplayEntry struct {
	From string
	Text string
}

func (e DisplayEntry) String() string {
	return e.From + ": " + e.Text
}

// Frame is the outer stream envelope.
type Frame struct {
	Topic       string          `json:"topic"`
	ContentType string          `json:"contentType,omitempty"`
	Content     json.RawMessage `json:"content"`
}

type subscribeContent struct {
	Topics []string `json:"topics"`
}

// SubscribeFrame builds the frame sent once after the stream opens.
func SubscribeFrame(topic string) ([]byte, error) {
	content, err := json.Marshal(subscribeContent{Topics: []string{topic}})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Topic: SubscribeTopic, Content: content})
}

type envelope struct {
	Type            string `json:"Type"`
	ParticipantRole string `json:"ParticipantRole"`
	DisplayName     string `json:"DisplayName"`
	Content         string `json:"Content"`
	ContentType     string `json:"ContentType"`
}

// ParseFrame decodes one raw stream frame. ok is false for frames outside topic or of a
// content kind the client does not handle; err is a *TransportError for malformed input.
func ParseFrame(raw []byte, topic string) (msg InboundMessage, ok bool, err error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return InboundMessage{}, false, &TransportError{Reason: "invalid frame", Err: err}
	}
	if frame.Topic != topic || frame.ContentType != frameContentType {
		return InboundMessage{}, false, nil
	}

	// content arrives as a JSON encoded string holding the envelope
	var encoded string
	if err := json.Unmarshal(frame.Content, &encoded); err != nil {
		return InboundMessage{}, false, &TransportError{Reason: "content is not a string", Err: err}
	}

	var env envelope
	if err := json.Unmarshal([]byte(encoded), &env); err != nil {
		return InboundMessage{}, false, &TransportError{Reason: "invalid content envelope", Err: err}
	}

	switch env.Type {
	case contentMessage:
		return InboundMessage{
			Kind:        KindChatMessage,
			Role:        Role(env.ParticipantRole),
			DisplayName: env.DisplayName,
			Body:        env.Content,
		}, true, nil
	case contentEvent:
		return InboundMessage{
			Kind:        KindParticipantEvent,
			Role:        Role(env.ParticipantRole),
			DisplayName: env.DisplayName,
			Body:        env.ContentType,
		}, true, nil
	default:
		return InboundMessage{}, false, nil
	}
}
