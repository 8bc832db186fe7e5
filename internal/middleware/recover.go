package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/connect-chat/backend/pkg/utils"
)

// Recover 捕获 handler 中的 panic，并以 400 返回错误详情，保证异常不会逃逸。
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Error().
				Str("component", "http").
				Str("path", r.URL.Path).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
			utils.RespondError(w, http.StatusBadRequest, fmt.Sprint(rec))
		}()

		next.ServeHTTP(w, r)
	})
}
