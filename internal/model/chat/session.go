package chat

import "time"

// Status 表示一次会话在客户端侧的生命周期状态。
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusActive
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusActive:
		return "active"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Live reports whether a stream and connection token may be held in this status.
func (s Status) Live() bool {
	return s == StatusConnecting || s == StatusActive
}

// Connection 是 CreateOrResumeSession 的结果，也是 POST /connectChat 的响应体。
type Connection struct {
	ParticipantToken string    `json:"participantToken"`
	ConnectionToken  string    `json:"connectionToken"`
	StreamEndpoint   string    `json:"streamEndpoint"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

// Session captures the single live chat session of one visitor.
type Session struct {
	ID               string
	DisplayName      string
	ParticipantToken string
	ConnectionToken  string
	StreamEndpoint   string
	ExpiresAt        time.Time
	Status           Status
}

// Apply replaces the rotating credentials with the ones from conn.
func (s *Session) Apply(conn Connection) {
	s.ParticipantToken = conn.ParticipantToken
	s.ConnectionToken = conn.ConnectionToken
	s.StreamEndpoint = conn.StreamEndpoint
	s.ExpiresAt = conn.ExpiresAt
}
