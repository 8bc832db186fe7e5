package relay

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/connect-chat/backend/internal/model/chat"
	relayService "github.com/zhouzirui/connect-chat/backend/internal/service/relay"
	"github.com/zhouzirui/connect-chat/backend/pkg/utils"
)

// Handler 中继服务的HTTP处理器
type Handler struct {
	relay relayService.API
}

// New 创建中继处理器
func New(relay relayService.API) *Handler {
	return &Handler{relay: relay}
}

// RegisterRoutes 注册 /connectChat 相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/connectChat", func(cr chi.Router) {
		cr.NotFound(NotFound)
		cr.MethodNotAllowed(MethodNotAllowed)

		cr.Post("/", h.handleConnect)
		cr.Delete("/", h.handleEnd)
		cr.Post("/send", h.handleSend)
	})
}

// handleConnect 创建或恢复会话
func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	var payload chat.ConnectRequest
	if !decode(w, r, &payload) {
		return
	}

	conn, err := h.relay.CreateOrResumeSession(r.Context(), payload.DisplayName, payload.ParticipantToken)
	if err != nil {
		fail(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, conn)
}

// handleEnd 结束会话
func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	var payload chat.EndRequest
	if !decode(w, r, &payload) {
		return
	}

	ack, err := h.relay.EndSession(r.Context(), payload.ConnectionToken)
	if err != nil {
		fail(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, ack)
}

// handleSend 发送消息
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload chat.SendRequest
	if !decode(w, r, &payload) {
		return
	}

	ack, err := h.relay.PostMessage(r.Context(), payload.ConnectionToken, payload.Content)
	if err != nil {
		fail(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, ack)
}

// NotFound reports an unsupported path.
func NotFound(w http.ResponseWriter, r *http.Request) {
	utils.RespondError(w, http.StatusBadRequest, fmt.Sprintf("Path %s not supported", r.URL.Path))
}

// MethodNotAllowed reports an unsupported method on a known path.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	utils.RespondError(w, http.StatusBadRequest,
		fmt.Sprintf("HTTP method %s not supported for path %s", r.Method, r.URL.Path))
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	log.Warn().Err(err).Str("component", "relay").Str("path", r.URL.Path).Msg("relay operation failed")
	utils.RespondErr(w, http.StatusBadRequest, err)
}
