package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/creceideas/muralla/internal/config"
	"github.com/creceideas/muralla/internal/domain"
	"github.com/creceideas/muralla/internal/hub"
	"github.com/creceideas/muralla/internal/intake"
)

// Server is the HTTP server exposing the submission API, the moderation
// API, the static uploads, and the websocket endpoint display clients
// subscribe to.
type Server struct {
	cfg        *config.Config
	gallery    *domain.GalleryService
	hub        *hub.Hub
	normalizer *intake.Normalizer
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// NewServer creates a new HTTP server wired to the given gallery service
// and broadcast hub.
func NewServer(cfg *config.Config, gallery *domain.GalleryService, h *hub.Hub, normalizer *intake.Normalizer, logger *slog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		gallery:    gallery,
		hub:        h,
		normalizer: normalizer,
		logger:     logger,
		upgrader: websocket.Upgrader{
			// Display clients live on other origins (the static frontend);
			// the CORS allow-list is enforced by the middleware instead.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/images", s.handleListImages)
	mux.HandleFunc("GET /api/images/count", s.handleImageCount)
	mux.HandleFunc("PUT /api/images/{uid}/status", s.handleUpdateStatus)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     withLogging(logger, withCORS(cfg.AllowedOrigins, mux)),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// uploadRequest is the JSON body used by the bot relay path. The form
// upload path carries the same fields as multipart values plus the image
// file itself.
type uploadRequest struct {
	Nombre   string `json:"nombre"`
	Telefono string `json:"telefono"`
	Texto    string `json:"texto"`
	Foto     string `json:"foto"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var (
		req      uploadRequest
		mediaURL string
		err      error
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		req.Nombre = r.FormValue("nombre")
		req.Telefono = r.FormValue("telefono")
		req.Texto = r.FormValue("texto")

		file, _, ferr := r.FormFile("imagen")
		if ferr != nil {
			writeError(w, http.StatusBadRequest, "no image provided")
			return
		}
		defer file.Close()
		mediaURL, err = s.normalizer.FromUpload(file)
	} else {
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Foto == "" {
			writeError(w, http.StatusBadRequest, "no image provided")
			return
		}
		mediaURL, err = s.normalizer.Normalize(r.Context(), req.Foto)
	}

	if err != nil {
		s.logger.Warn("media normalization failed", "error", err)
		s.writeDomainError(w, err, "failed to process the image")
		return
	}

	sub, err := s.gallery.Submit(r.Context(), domain.NewSubmission{
		SenderName:    req.Nombre,
		SenderContact: req.Telefono,
		Caption:       req.Texto,
		MediaURL:      mediaURL,
	})
	if err != nil {
		s.writeDomainError(w, err, "failed to save the image")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "image uploaded",
		"data":    sub,
	})
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	var (
		subs []domain.Submission
		err  error
	)
	if r.URL.Query().Get("all") == "true" {
		subs, err = s.gallery.ListAll(r.Context())
	} else {
		subs, err = s.gallery.ListVisible(r.Context())
	}
	if err != nil {
		s.logger.Error("failed to list images", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch images")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    subs,
		"total":   len(subs),
	})
}

func (s *Server) handleImageCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.gallery.CountVisible(r.Context())
	if err != nil {
		s.logger.Error("failed to count images", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count images")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   count,
	})
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")

	var body struct {
		Estado *int `json:"estado"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Estado == nil {
		writeError(w, http.StatusBadRequest, "estado is required")
		return
	}

	if err := s.gallery.SetVisibility(r.Context(), uid, *body.Estado != 0); err != nil {
		s.writeDomainError(w, err, "failed to update status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "status updated",
	})
}

// handleWebSocket upgrades the connection and streams broadcast events to
// the display client until either side goes away. The server never expects
// client messages; the read loop exists only to observe the close.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := s.hub.Register()
	if client == nil {
		conn.Close()
		return
	}

	go func() {
		defer s.hub.Unregister(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for payload := range client.Send() {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
			break
		}
	}

	s.hub.Unregister(client)
	conn.Close()
}

// writeDomainError maps domain errors onto HTTP statuses: validation
// failures are 400s, unknown ids 404s, anything else a 500 with a generic
// message.
func (s *Server) writeDomainError(w http.ResponseWriter, err error, fallback string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "image not found")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

func withCORS(allowedOrigins []string, next http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Accept")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
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

// Hijack passes through to the underlying writer so the websocket upgrade
// works behind the logging middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}
