package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"scanq/internal/domain"
	"scanq/internal/ports"
	"scanq/internal/queue"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const maxScanBytes = 64 << 10

type clearReq struct {
	IDs []int64 `json:"ids"`
}

type Server struct {
	router *chi.Mux
	queue  *queue.Service
	send   ports.SendFunc
}

// NewServer mounts the scan queue endpoints. send is used by POST /scans/flush.
func NewServer(q *queue.Service, send ports.SendFunc) *Server {
	s := &Server{router: chi.NewRouter(), queue: q, send: send}

	s.router.Route("/scans", func(r chi.Router) {
		r.Post("/", s.handleQueue)
		r.Get("/", s.handleList)
		r.Delete("/", s.handleClear)
		r.Get("/count", s.handleCount)
		r.Post("/flush", s.handleFlush)
	})
	return s
}

// Handler returns the router wrapped in the standard middleware chain.
func (s *Server) Handler() http.Handler {
	return chainMiddleware(
		s.router,
		loggerContextHandler,
		requestIDHandler,
		realIPHandler,
		loggerHandler(func(r *http.Request) bool { return r.URL.Path == "/scans/count" }),
		recoverHandler,
		corsHandler,
	)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxScanBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if len(body) > maxScanBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "scan payload too large"})
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "scan payload must be json"})
		return
	}

	rec, err := s.queue.QueueScan(r.Context(), body)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyPayload) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("queue scan failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": rec.ID, "createdAt": rec.CreatedAt})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.queue.GetQueuedScans(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("list queued scans failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if recs == nil {
		recs = []domain.QueuedScan{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req clearReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.queue.ClearQueued(r.Context(), req.IDs); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("clear queued scans failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.queue.GetQueueCount(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("count queued scans failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if s.send == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no delivery sink configured"})
		return
	}

	res, err := s.queue.FlushQueue(r.Context(), s.send)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("flush failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":     err.Error(),
			"processed": res.Processed,
			"remaining": res.Remaining,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Run method of the Server struct runs the HTTP server on the specified port
// until SIGINT or SIGTERM.
func (s *Server) Run(port int) {
	addr := fmt.Sprintf(":%d", port)

	httpServer := http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute, // a flush can sit through several backoff waits
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Fatal().Err(err).Msg("Server forced to shutdown")
		}

		close(done)
	}()

	log.Info().Msgf("server serving on port %d", port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Failed to listen and serve")
	}

	<-done
	log.Info().Msg("Server stopped")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
