package chat

// ConnectRequest 是 POST /connectChat 的请求体。
type ConnectRequest struct {
	DisplayName      string `json:"displayName"`
	ParticipantToken string `json:"participantToken,omitempty"`
}

// EndRequest 是 DELETE /connectChat 的请求体。
type EndRequest struct {
	ConnectionToken string `json:"connectionToken"`
}

// SendRequest 是 POST /connectChat/send 的请求体。
type SendRequest struct {
	ConnectionToken string `json:"connectionToken"`
	Content         string `json:"content"`
}

// Ack acknowledges send and end operations.
type Ack struct {
	Status string `json:"status"`
}

const (
	AckMessageSent  = "message sent"
	AckDisconnected = "disconnected"
)

// ErrorBody 是所有错误响应的结构。
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Operation string `json:"operation,omitempty"`
}
