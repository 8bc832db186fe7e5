package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/zhouzirui/connect-chat/backend/internal/model/chat"
)

const maxErrorBody = 64 << 10

// HTTPClient calls a relay over its HTTP routing contract.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a client for the relay mounted at baseURL, e.g.
// "https://example.com/connectChat".
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

var _ API = (*HTTPClient)(nil)

// CreateOrResumeSession issues POST {base}.
func (c *HTTPClient) CreateOrResumeSession(ctx context.Context, displayName, participantToken string) (chat.Connection, error) {
	var out chat.Connection
	err := c.do(ctx, opCreate, http.MethodPost, c.baseURL, chat.ConnectRequest{
		DisplayName:      displayName,
		ParticipantToken: participantToken,
	}, &out)
	return out, err
}

// PostMessage issues POST {base}/send.
func (c *HTTPClient) PostMessage(ctx context.Context, connectionToken, content string) (chat.Ack, error) {
	var out chat.Ack
	err := c.do(ctx, opPost, http.MethodPost, c.baseURL+"/send", chat.SendRequest{
		ConnectionToken: connectionToken,
		Content:         content,
	}, &out)
	return out, err
}

// EndSession issues DELETE {base}.
func (c *HTTPClient) EndSession(ctx context.Context, connectionToken string) (chat.Ack, error) {
	var out chat.Ack
	err := c.do(ctx, opEnd, http.MethodDelete, c.baseURL, chat.EndRequest{ConnectionToken: connectionToken}, &out)
	return out, err
}

func (c *HTTPClient) do(ctx context.Context, op, method, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return &chat.ProviderError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &chat.ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return decodeErrorBody(op, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &chat.ProviderError{Op: op, Err: errors.Wrap(err, "decode response")}
	}
	return nil
}

func decodeErrorBody(op string, status int, body []byte) error {
	var eb chat.ErrorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Error == "" {
		return &chat.ProviderError{
			Op:      op,
			Code:    http.StatusText(status),
			Message: fmt.Sprintf("relay returned %d: %s", status, strings.TrimSpace(string(body))),
		}
	}
	return &chat.ProviderError{Op: op, Code: eb.Code, Message: eb.Error}
}
