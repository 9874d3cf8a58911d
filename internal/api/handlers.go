package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"confess.share/internal/logger"
	"confess.share/internal/models"
	"confess.share/internal/service"
	"confess.share/web"
)

const (
	maxBodyBytes = 1 << 20
	readyTimeout = 2 * time.Second

	resourceConfession = "confession"
	resourceSecret     = "message"
)

// Pinger is implemented by the document store and the cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	confessions *service.ConfessionService
	secrets     *service.SecretService
	checks      map[string]Pinger
	logger      *logger.Logger
}

func NewHandler(confessions *service.ConfessionService, secrets *service.SecretService, checks map[string]Pinger, log *logger.Logger) *Handler {
	return &Handler{
		confessions: confessions,
		secrets:     secrets,
		checks:      checks,
		logger:      log.WithComponent("api"),
	}
}

type MessageRequest struct {
	Message string `json:"message"`
}

type CreateSecretRequest struct {
	Message  string `json:"message"`
	Password string `json:"password,omitempty"`
}

type CreateSecretResponse struct {
	Message       string    `json:"message"`
	ShareableLink string    `json:"shareableLink"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

type SecretResponse struct {
	Message string `json:"message"`
}

type StatusResponse struct {
	Message string `json:"message"`
}

type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready pings every backend. It reports 503 if any of them fails.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := ReadyResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK

	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.WithContext(r.Context()).Warn("readiness check failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp)
}

func (h *Handler) CreateConfession(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.confessions.Create(r.Context(), req.Message)
	if err != nil {
		h.handleError(w, r, err, resourceConfession)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) ListConfessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.confessions.List(r.Context())
	if err != nil {
		h.handleError(w, r, err, resourceConfession)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) UpdateConfession(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.confessions.Update(r.Context(), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		h.handleError(w, r, err, resourceConfession)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteConfession(w http.ResponseWriter, r *http.Request) {
	if err := h.confessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleError(w, r, err, resourceConfession)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Message: "Confession deleted successfully"})
}

func (h *Handler) CreateSecret(w http.ResponseWriter, r *http.Request) {
	var req CreateSecretRequest
	if !h.decode(w, r, &req) {
		return
	}

	created, err := h.secrets.Create(r.Context(), req.Message, req.Password)
	if err != nil {
		h.handleError(w, r, err, resourceSecret)
		return
	}

	writeJSON(w, http.StatusCreated, CreateSecretResponse{
		Message:       "Secret message created successfully",
		ShareableLink: created.ShareableLink,
		ExpiresAt:     created.ExpiresAt,
	})
}

func (h *Handler) RetrieveSecret(w http.ResponseWriter, r *http.Request) {
	msg, err := h.secrets.Retrieve(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("password"))
	if err != nil {
		h.handleError(w, r, err, resourceSecret)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, SecretResponse{Message: msg})
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, "index.html")
}

func (h *Handler) SecretPage(w http.ResponseWriter, r *http.Request) {
	if !models.ValidID(chi.URLParam(r, "id")) {
		http.NotFound(w, r)
		return
	}
	h.serveFile(w, r, "secret.html")
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, filename string) {
	content, err := web.GetFile(filename)
	if err != nil {
		h.logger.WithContext(r.Context()).Error("embedded page missing", "file", filename, "error", err)
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(content)
}

// decode reads a JSON body of at most maxBodyBytes into dst. It writes the
// error response itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, CodeTooLarge, "Request body too large")
			return false
		}
		writeError(w, r, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
