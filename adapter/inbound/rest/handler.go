package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/ajkula/GoNotify/config"
	"github.com/ajkula/GoNotify/domain/model"
	"github.com/ajkula/GoNotify/domain/port/inbound"
	"github.com/ajkula/GoNotify/domain/port/outbound"
)

// Handler serves the control API of the watcher
type Handler struct {
	watcher inbound.Watcher
	config  *config.Config
	logger  outbound.Logger
	started time.Time
}

// NewHandler creates the REST handler. cfg may be nil, in which case the
// settings route is not registered.
func NewHandler(watcher inbound.Watcher, cfg *config.Config, logger outbound.Logger) *Handler {
	if logger == nil {
		logger = outbound.NopLogger{}
	}
	return &Handler{
		watcher: watcher,
		config:  cfg,
		logger:  logger,
		started: time.Now(),
	}
}

// SetupRoutes registers the REST routes on router
func (h *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.healthCheck).Methods("GET")

	router.HandleFunc("/api/watches", h.listWatches).Methods("GET")
	router.HandleFunc("/api/watches", h.addWatch).Methods("POST")
	router.HandleFunc("/api/watches", h.removeWatch).Methods("DELETE")

	router.HandleFunc("/api/config", h.configure).Methods("POST")
	if h.config != nil {
		router.HandleFunc("/api/config", h.getSettings).Methods("GET")
	}
}

type watchRequest struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

type configureRequest struct {
	PreciseEvents *bool   `json:"preciseEvents,omitempty"`
	NoticeEvents  *bool   `json:"noticeEvents,omitempty"`
	OngoingEvents *string `json:"ongoingEvents,omitempty"`
}

type configureResponse struct {
	Accepted bool            `json:"accepted"`
	Options  map[string]bool `json:"options"`
}

// healthCheck reports liveness and a short watcher summary
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"watches": len(h.watcher.WatchedPaths()),
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *Handler) listWatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"watches": h.watcher.WatchedPaths(),
	})
}

func (h *Handler) addWatch(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}

	mode := model.NonRecursive
	if req.Recursive {
		mode = model.Recursive
	}

	if err := h.watcher.Watch(req.Path, mode); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("Watch added via API", "path", req.Path, "mode", mode.String())
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) removeWatch(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "path query parameter is required", http.StatusBadRequest)
		return
	}

	if err := h.watcher.Unwatch(path); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("Watch removed via API", "path", path)
	w.WriteHeader(http.StatusNoContent)
}

// configure applies every option present in the body; the request is
// accepted only if each option was
func (h *Handler) configure(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	options, err := req.options()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := configureResponse{Accepted: true, Options: make(map[string]bool, len(options))}
	for _, opt := range options {
		accepted, err := h.watcher.Configure(opt)
		if err != nil {
			h.writeError(w, err)
			return
		}
		resp.Options[opt.String()] = accepted
		resp.Accepted = resp.Accepted && accepted
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.config.ToPublic())
}

func (req configureRequest) options() ([]model.Config, error) {
	var options []model.Config
	if req.PreciseEvents != nil {
		options = append(options, model.PreciseEvents(*req.PreciseEvents))
	}
	if req.NoticeEvents != nil {
		options = append(options, model.NoticeEvents(*req.NoticeEvents))
	}
	if req.OngoingEvents != nil {
		d, err := time.ParseDuration(*req.OngoingEvents)
		if err != nil {
			return nil, fmt.Errorf("invalid ongoingEvents: %w", err)
		}
		options = append(options, model.OngoingEvents(d))
	}
	if len(options) == 0 {
		return nil, errors.New("no option given")
	}
	return options, nil
}

// statusFor maps watcher errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrPathNotFound), errors.Is(err, model.ErrWatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrWatchLimitReached):
		return http.StatusInsufficientStorage
	case errors.Is(err, model.ErrChannelClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Watcher request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
