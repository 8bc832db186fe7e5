package relay

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/connect"
	connecttypes "github.com/aws/aws-sdk-go-v2/service/connect/types"
	"github.com/aws/aws-sdk-go-v2/service/connectparticipant"
	participanttypes "github.com/aws/aws-sdk-go-v2/service/connectparticipant/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/zhouzirui/connect-chat/backend/internal/config"
)

type contactAPI interface {
	StartChatContact(ctx context.Context, in *connect.StartChatContactInput, optFns ...func(*connect.Options)) (*connect.StartChatContactOutput, error)
}

type participantAPI interface {
	CreateParticipantConnection(ctx context.Context, in *connectparticipant.CreateParticipantConnectionInput, optFns ...func(*connectparticipant.Options)) (*connectparticipant.CreateParticipantConnectionOutput, error)
	SendMessage(ctx context.Context, in *connectparticipant.SendMessageInput, optFns ...func(*connectparticipant.Options)) (*connectparticipant.SendMessageOutput, error)
	DisconnectParticipant(ctx context.Context, in *connectparticipant.DisconnectParticipantInput, optFns ...func(*connectparticipant.Options)) (*connectparticipant.DisconnectParticipantOutput, error)
}

// ConnectProvider implements Provider on Amazon Connect chat.
type ConnectProvider struct {
	contacts     contactAPI
	participants participantAPI
	flowID       string
	instanceID   string
}

// NewConnectProvider 根据配置创建 Amazon Connect 客户端。
func NewConnectProvider(ctx context.Context, cfg config.ProviderConfig) (*ConnectProvider, error) {
	if !cfg.Enabled() {
		return nil, errors.New("provider config requires REGION, FLOW_ID and INSTANCE_ID")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.StaticCredentials() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	contacts := connect.NewFromConfig(awsCfg, func(o *connect.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	participants := connectparticipant.NewFromConfig(awsCfg, func(o *connectparticipant.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return newConnectProvider(contacts, participants, cfg.FlowID, cfg.InstanceID), nil
}

func newConnectProvider(contacts contactAPI, participants participantAPI, flowID, instanceID string) *ConnectProvider {
	return &ConnectProvider{
		contacts:     contacts,
		participants: participants,
		flowID:       flowID,
		instanceID:   instanceID,
	}
}

var _ Provider = (*ConnectProvider)(nil)

// StartChatContact creates a new chat contact in the configured flow.
func (p *ConnectProvider) StartChatContact(ctx context.Context, displayName string) (string, error) {
	out, err := p.contacts.StartChatContact(ctx, &connect.StartChatContactInput{
		ContactFlowId: aws.String(p.flowID),
		InstanceId:    aws.String(p.instanceID),
		ParticipantDetails: &connecttypes.ParticipantDetails{
			DisplayName: aws.String(displayName),
		},
	})
	if err != nil {
		return "", err
	}

	token := aws.ToString(out.ParticipantToken)
	if token == "" {
		return "", errors.New("start chat contact returned no participant token")
	}
	return token, nil
}

// CreateParticipantConnection requests both a websocket and connection credentials.
func (p *ConnectProvider) CreateParticipantConnection(ctx context.Context, participantToken string) (ParticipantConnection, error) {
	out, err := p.participants.CreateParticipantConnection(ctx, &connectparticipant.CreateParticipantConnectionInput{
		ParticipantToken: aws.String(participantToken),
		Type: []participanttypes.ConnectionType{
			participanttypes.ConnectionTypeWebsocket,
			participanttypes.ConnectionTypeConnectionCredentials,
		},
	})
	if err != nil {
		return ParticipantConnection{}, err
	}
	if out.Websocket == nil || out.ConnectionCredentials == nil {
		return ParticipantConnection{}, errors.New("participant connection missing websocket or credentials")
	}

	expiry, err := time.Parse(time.RFC3339Nano, aws.ToString(out.Websocket.ConnectionExpiry))
	if err != nil {
		return ParticipantConnection{}, errors.Wrap(err, "parse websocket expiry")
	}

	return ParticipantConnection{
		ConnectionToken: aws.ToString(out.ConnectionCredentials.ConnectionToken),
		StreamURL:       aws.ToString(out.Websocket.Url),
		ExpiresAt:       expiry,
	}, nil
}

// SendMessage posts content to the conversation.
func (p *ConnectProvider) SendMessage(ctx context.Context, connectionToken, contentType, content string) error {
	_, err := p.participants.SendMessage(ctx, &connectparticipant.SendMessageInput{
		ConnectionToken: aws.String(connectionToken),
		ContentType:     aws.String(contentType),
		Content:         aws.String(content),
		ClientToken:     aws.String(uuid.NewString()),
	})
	return err
}

// DisconnectParticipant removes the participant from the conversation.
func (p *ConnectProvider) DisconnectParticipant(ctx context.Context, connectionToken string) error {
	_, err := p.participants.DisconnectParticipant(ctx, &connectparticipant.DisconnectParticipantInput{
		ConnectionToken: aws.String(connectionToken),
		ClientToken:     aws.String(uuid.NewString()),
	})
	return err
}
