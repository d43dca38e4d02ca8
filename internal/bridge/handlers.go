package bridge

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kingrea/releasedesk/internal/activity"
	"github.com/kingrea/releasedesk/internal/order"
	"github.com/kingrea/releasedesk/internal/release"
)

const defaultLogTail = 100

type healthResponse struct {
	Status        string `json:"status"`
	Version       int    `json:"version"`
	RunState      string `json:"run_state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type ordersResponse struct {
	Orders   []order.Order `json:"orders"`
	Selected []string      `json:"selected"`
	Counts   order.Counts  `json:"counts"`
}

type logsResponse struct {
	Entries []activity.Entry `json:"entries"`
	Total   int              `json:"total"`
}

type releaseRequest struct {
	Mode string `json:"mode"`
}

type releaseResponse struct {
	Status  string       `json:"status"`
	RunID   string       `json:"run_id"`
	Mode    release.Mode `json:"mode"`
	Targets int          `json:"targets"`
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        string(s.Status()),
		Version:       ProtocolVersion,
		RunState:      s.deps.Releaser.State(),
		UptimeSeconds: s.uptimeSeconds(),
	})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	orders := s.deps.Store.Snapshot()
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, ordersResponse{
		Orders:   orders,
		Selected: s.deps.Selection.IDs(),
		Counts:   s.deps.Store.Counts(),
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	tail := defaultLogTail
	if raw := strings.TrimSpace(r.URL.Query().Get("tail")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tail must be a positive integer"})
			return
		}
		tail = n
	}
	entries := s.deps.Log.Tail(tail)
	if entries == nil {
		entries = []activity.Entry{}
	}
	writeJSON(w, http.StatusOK, logsResponse{Entries: entries, Total: s.deps.Log.Len()})
}

func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	summary, ok := s.deps.Releaser.LastRun()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run has finished yet"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	user, pass, ok := r.BasicAuth()
	if !ok || !s.deps.Auth.Verify(user, pass) {
		w.Header().Set("WWW-Authenticate", `Basic realm="releasedesk"`)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	var body releaseRequest
	if r.Body != nil {
		reader := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
		defer reader.Close()
		raw, err := io.ReadAll(reader)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload exceeds limit"})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unable to read body"})
			return
		}
		if len(strings.TrimSpace(string(raw))) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
				return
			}
		}
	}
	mode := s.deps.Mode()
	if strings.TrimSpace(body.Mode) != "" {
		parsed, err := release.ParseMode(body.Mode)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		mode = parsed
	}
	handle, err := s.deps.Releaser.Start(s.runContext(), release.Request{Mode: mode})
	if errors.Is(err, release.ErrRunInProgress) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a release run is already in progress"})
		return
	}
	if err != nil {
		s.logger.Printf("bridge: start release: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "release could not start"})
		return
	}
	s.logger.Printf("bridge: release %s started by %s (%d targets)", handle.RunID, user, handle.Targets)
	writeJSON(w, http.StatusAccepted, releaseResponse{
		Status:  "accepted",
		RunID:   handle.RunID,
		Mode:    mode,
		Targets: handle.Targets,
	})
}
