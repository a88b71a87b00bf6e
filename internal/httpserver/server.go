package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/devfeeds/bsky-keyword-feed/internal/config"
	"github.com/devfeeds/bsky-keyword-feed/internal/domain"
)

const (
	wellKnownPath = "/.well-known/did.json"
	skeletonPath  = "/xrpc/app.bsky.feed.getFeedSkeleton"
	describePath  = "/xrpc/app.bsky.feed.describeFeedGenerator"
)

// Server is the HTTP server that serves the feed generator endpoints.
type Server struct {
	cfg         *config.Config
	feedService *domain.FeedService
	logger      *slog.Logger
	httpServer  *http.Server
}

// NewServer creates a new HTTP server with the given feed service.
func NewServer(cfg *config.Config, feedService *domain.FeedService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:         cfg,
		feedService: feedService,
		logger:      logger,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, s.Handler()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the route handler. Unrecognized paths and skeleton requests
// for unknown feeds fall through to the default response rather than a 404.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+wellKnownPath, s.handleDIDDoc)
	mux.HandleFunc("GET "+describePath, s.handleDescribeFeedGenerator)
	mux.HandleFunc("GET "+skeletonPath, s.handleGetFeedSkeleton)
	mux.HandleFunc("/", s.handleDefault)
	return mux
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleDIDDoc serves the did:web identity document for whatever hostname the
// request arrived on.
func (s *Server) handleDIDDoc(w http.ResponseWriter, r *http.Request) {
	host := requestHostname(r)
	doc := map[string]any{
		"@context": []string{"https://www.w3.org/ns/did/v1"},
		"id":       "did:web:" + host,
		"service": []map[string]any{
			{
				"id":              "#bsky_fg",
				"type":            "BskyFeedGenerator",
				"serviceEndpoint": "https://" + host,
			},
		},
	}
	writeJSON(w, http.StatusOK, doc)
}

// requestHostname returns the request's host with any port stripped.
func requestHostname(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.Host); err == nil {
		return host
	}
	return r.Host
}

func (s *Server) handleDescribeFeedGenerator(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"did": s.cfg.ServiceDID(),
		"feeds": []map[string]string{
			{"uri": s.feedService.FeedURI()},
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetFeedSkeleton(w http.ResponseWriter, r *http.Request) {
	feedURI := r.URL.Query().Get("feed")
	if feedURI != s.feedService.FeedURI() {
		// Unknown feed is not an error: same behavior as any other path.
		s.handleDefault(w, r)
		return
	}

	limit := s.cfg.PageLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = clamp(parsed, 1, s.cfg.FeedLimit)
		}
	}

	posts, err := s.feedService.GetFeedSkeleton(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to get feed skeleton", "feed", feedURI, "limit", limit, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, skeletonResponse(posts))
}

// handleDefault serves every unmatched route: the most recent posts on GET,
// a plain liveness line otherwise.
func (s *Server) handleDefault(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "Firehose connection active")
		return
	}

	posts, err := s.feedService.GetFeedSkeleton(r.Context(), s.cfg.PageLimit)
	if err != nil {
		s.logger.Error("failed to get recent posts", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, skeletonResponse(posts))
}

func skeletonResponse(posts []domain.SkeletonPost) map[string]any {
	if posts == nil {
		posts = []domain.SkeletonPost{}
	}
	return map[string]any{"feed": posts}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
