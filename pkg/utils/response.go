package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/connect-chat/backend/internal/model/chat"
)

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Str("component", "http").Msg("failed to encode response")
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, chat.ErrorBody{Error: message})
}

// RespondErr 将错误序列化到响应体中，provider 错误保留其错误码。
func RespondErr(w http.ResponseWriter, status int, err error) {
	body := chat.ErrorBody{Error: err.Error()}

	var pe *chat.ProviderError
	if errors.As(err, &pe) {
		body.Code = pe.Code
		body.Operation = pe.Op
		if pe.Message != "" {
			body.Error = pe.Message
		}
	}
	RespondJSON(w, status, body)
}
