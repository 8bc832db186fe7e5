package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/connect-chat/backend/internal/handler/relay"
	middlewarePkg "github.com/zhouzirui/connect-chat/backend/internal/middleware"
	relayService "github.com/zhouzirui/connect-chat/backend/internal/service/relay"
)

// NewRouter wires HTTP routes to the relay service.
func NewRouter(relaySvc relayService.API) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger)
	r.Use(middlewarePkg.Recover)
	r.Use(middlewarePkg.CORS)

	r.NotFound(relay.NotFound)
	r.MethodNotAllowed(relay.MethodNotAllowed)

	relay.New(relaySvc).RegisterRoutes(r)

	return r
}
