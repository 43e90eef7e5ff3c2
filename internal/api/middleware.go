package api

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

const requestIDHeader = "X-Request-ID"

type middleware func(http.Handler) http.Handler

// chainMiddleware wraps h so the first middleware listed runs first.
func chainMiddleware(h http.Handler, m ...middleware) http.Handler {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// loggerContextHandler gives every request its own copy of the global logger.
func loggerContextHandler(next http.Handler) http.Handler {
	return hlog.NewHandler(log.Logger)(next)
}

// requestIDHandler reuses the caller's X-Request-ID or mints a uuid, echoes
// it back and tags the request logger with it.
func requestIDHandler(next http.Handler) http.Handler {
	tag := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chimw.GetReqID(r.Context())
		w.Header().Set(requestIDHeader, id)
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("request_id", id)
		})
		next.ServeHTTP(w, r)
	})
	withID := chimw.RequestID(tag)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(chimw.RequestIDHeader) == "" {
			r.Header.Set(chimw.RequestIDHeader, uuid.NewString())
		}
		withID.ServeHTTP(w, r)
	})
}

func recoverHandler(next http.Handler) http.Handler {
	return chimw.Recoverer(next)
}

// realIPHandler resolves the client address from proxy headers and adds it
// to the request logger.
func realIPHandler(next http.Handler) http.Handler {
	return chimw.RealIP(hlog.RemoteAddrHandler("ip")(next))
}

// loggerHandler logs one line per request unless skip says otherwise.
func loggerHandler(skip func(r *http.Request) bool) middleware {
	return hlog.AccessHandler(func(r *http.Request, status, size int, took time.Duration) {
		if skip != nil && skip(r) {
			return
		}
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("took", took).
			Msg("request")
	})
}

var corsHandler = cors.Handler(cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
	ExposedHeaders: []string{requestIDHeader},
	MaxAge:         300,
})
