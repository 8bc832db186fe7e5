package relay

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/connect-chat/backend/internal/model/chat"
)

const (
	opCreate = "CreateOrResumeSession"
	opPost   = "PostMessage"
	opEnd    = "EndSession"

	contentTypeText = "text/plain"
)

// API is the operation set exposed by the relay, both in-process and over HTTP.
type API interface {
	CreateOrResumeSession(ctx context.Context, displayName, participantToken string) (chat.Connection, error)
	PostMessage(ctx context.Context, connectionToken, content string) (chat.Ack, error)
	EndSession(ctx context.Context, connectionToken string) (chat.Ack, error)
}

// ParticipantConnection is what the provider returns when a participant token is
// exchanged for a streaming connection.
type ParticipantConnection struct {
	ConnectionToken string
	StreamURL       string
	ExpiresAt       time.Time
}

// Provider is the backend chat provider behind the relay.
type Provider interface {
	StartChatContact(ctx context.Context, displayName string) (participantToken string, err error)
	CreateParticipantConnection(ctx context.Context, participantToken string) (ParticipantConnection, error)
	SendMessage(ctx context.Context, connectionToken, contentType, content string) error
	DisconnectParticipant(ctx context.Context, connectionToken string) error
}

// Service translates relay operations onto a Provider. It holds no session state.
type Service struct {
	provider Provider
}

// NewService creates the relay service.
func NewService(provider Provider) *Service {
	return &Service{provider: provider}
}

var _ API = (*Service)(nil)

// CreateOrResumeSession starts a new chat contact when participantToken is empty and
// then exchanges the participant token for a fresh connection.
func (s *Service) CreateOrResumeSession(ctx context.Context, displayName, participantToken string) (chat.Connection, error) {
	displayName = strings.TrimSpace(displayName)
	participantToken = strings.TrimSpace(participantToken)

	if participantToken == "" {
		if displayName == "" {
			return chat.Connection{}, &chat.ValidationError{Field: "displayName", Message: "is required"}
		}
		token, err := s.provider.StartChatContact(ctx, displayName)
		if err != nil {
			return chat.Connection{}, asProviderError(opCreate, err)
		}
		participantToken = token
		log.Info().Str("component", "relay").Str("display_name", displayName).Msg("chat contact started")
	}

	conn, err := s.provider.CreateParticipantConnection(ctx, participantToken)
	if err != nil {
		return chat.Connection{}, asProviderError(opCreate, err)
	}

	return chat.Connection{
		ParticipantToken: participantToken,
		ConnectionToken:  conn.ConnectionToken,
		StreamEndpoint:   conn.StreamURL,
		ExpiresAt:        conn.ExpiresAt,
	}, nil
}

// PostMessage sends plain text on behalf of the connection's participant.
func (s *Service) PostMessage(ctx context.Context, connectionToken, content string) (chat.Ack, error) {
	if strings.TrimSpace(connectionToken) == "" {
		return chat.Ack{}, &chat.ValidationError{Field: "connectionToken", Message: "is required"}
	}
	if strings.TrimSpace(content) == "" {
		return chat.Ack{}, &chat.ValidationError{Field: "content", Message: "is required"}
	}

	if err := s.provider.SendMessage(ctx, connectionToken, contentTypeText, content); err != nil {
		return chat.Ack{}, asProviderError(opPost, err)
	}
	return chat.Ack{Status: chat.AckMessageSent}, nil
}

// EndSession disconnects the participant owning connectionToken.
func (s *Service) EndSession(ctx context.Context, connectionToken string) (chat.Ack, error) {
	if strings.TrimSpace(connectionToken) == "" {
		return chat.Ack{}, &chat.ValidationError{Field: "connectionToken", Message: "is required"}
	}

	if err := s.provider.DisconnectParticipant(ctx, connectionToken); err != nil {
		return chat.Ack{}, asProviderError(opEnd, err)
	}
	return chat.Ack{Status: chat.AckDisconnected}, nil
}
