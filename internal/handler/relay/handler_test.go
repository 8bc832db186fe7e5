package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/connect-chat/backend/internal/model/chat"
)

type fakeRelay struct {
	displayName      string
	participantToken string
	sent             []string
	ended            []string
	err              error
}

func (f *fakeRelay) CreateOrResumeSession(_ context.Context, displayName, participantToken string) (chat.Connection, error) {
	f.displayName = displayName
	f.participantToken = participantToken
	if f.err != nil {
		return chat.Connection{}, f.err
	}
	return chat.Connection{
		ParticipantToken: "PT1",
		ConnectionToken:  "CT1",
		StreamEndpoint:   "wss://x",
		ExpiresAt:        time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeRelay) PostMessage(_ context.Context, connectionToken, content string) (chat.Ack, error) {
	if f.err != nil {
		return chat.Ack{}, f.err
	}
	f.sent = append(f.sent, connectionToken+"|"+content)
	return chat.Ack{Status: chat.AckMessageSent}, nil
}

func (f *fakeRelay) EndSession(_ context.Context, connectionToken string) (chat.Ack, error) {
	if f.err != nil {
		return chat.Ack{}, f.err
	}
	f.ended = append(f.ended, connectionToken)
	return chat.Ack{Status: chat.AckDisconnected}, nil
}

func setupRouter() (*chi.Mux, *fakeRelay) {
	relay := &fakeRelay{}
	r := chi.NewRouter()
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)
	New(relay).RegisterRoutes(r)
	return r, relay
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestConnectReturnsConnection(t *testing.T) {
	r, relay := setupRouter()

	rr := do(r, http.MethodPost, "/connectChat", `{"displayName":"Ann Lee"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	var conn chat.Connection
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &conn))
	require.Equal(t, "CT1", conn.ConnectionToken)
	require.Equal(t, "wss://x", conn.StreamEndpoint)
	require.Equal(t, "Ann Lee", relay.displayName)
	require.Empty(t, relay.participantToken)
}

func TestConnectAcceptsPascalCaseBody(t *testing.T) {
	r, relay := setupRouter()

	rr := do(r, http.MethodPost, "/connectChat", `{"DisplayName":"Ann Lee","ParticipantToken":"PT1"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "PT1", relay.participantToken)
}

func TestSendAndEnd(t *testing.T) {
	r, relay := setupRouter()

	rr := do(r, http.MethodPost, "/connectChat/send", `{"connectionToken":"CT1","content":"hi"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{"CT1|hi"}, relay.sent)

	rr = do(r, http.MethodDelete, "/connectChat", `{"connectionToken":"CT1"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{"CT1"}, relay.ended)

	var ack chat.Ack
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ack))
	require.Equal(t, chat.AckDisconnected, ack.Status)
}

func TestUnsupportedRoutes(t *testing.T) {
	r, _ := setupRouter()

	cases := []struct {
		method, path, detail string
	}{
		{http.MethodGet, "/connectChat", "HTTP method GET not supported for path /connectChat"},
		{http.MethodDelete, "/connectChat/send", "HTTP method DELETE not supported for path /connectChat/send"},
		{http.MethodPost, "/elsewhere", "Path /elsewhere not supported"},
		{http.MethodPost, "/connectChat/other", "Path /connectChat/other not supported"},
	}

	for _, tc := range cases {
		rr := do(r, tc.method, tc.path, `{}`)
		require.Equal(t, http.StatusBadRequest, rr.Code, "%s %s", tc.method, tc.path)

		var body chat.ErrorBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, tc.detail, body.Error)
	}
}

func TestProviderErrorMapsToBadRequest(t *testing.T) {
	r, relay := setupRouter()
	relay.err = &chat.ProviderError{Op: "PostMessage", Code: "AccessDeniedException", Message: "token expired"}

	rr := do(r, http.MethodPost, "/connectChat/send", `{"connectionToken":"CT1","content":"hi"}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body chat.ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "token expired", body.Error)
	require.Equal(t, "AccessDeniedException", body.Code)
	require.Equal(t, "PostMessage", body.Operation)
}

func TestInvalidBody(t *testing.T) {
	r, _ := setupRouter()

	rr := do(r, http.MethodPost, "/connectChat", `{`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
