// Package api exposes the assistant over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/MazarSayed/stock-platform/agent/assistant"
	"github.com/MazarSayed/stock-platform/agent/session"
	"github.com/MazarSayed/stock-platform/pkg/metrics"
)

const (
	ServiceName    = "Stock Trading Platform Assistant API"
	ServiceVersion = "1.0.0"

	defaultRequestTimeout = 120 * time.Second
	maxRequestBodySize    = 1 << 20
)

type ChatService interface {
	Chat(ctx context.Context, req assistant.ChatRequest) (assistant.ChatResponse, error)
	History(ctx context.Context, sessionID string) ([]session.Message, error)
}

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter builds the HTTP handler tree.
func NewRouter(chat ChatService, opts Options) http.Handler {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	h := &handler{chat: chat}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(accessLog)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors(opts.AllowedOrigins))

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(opts.RequestTimeout))
		r.Get("/", h.root)
		r.Post("/chat", h.postChat)
		r.Get("/chat/{session_id}", h.getHistory)
	})

	return r
}
