package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/fieldsync/fieldsync/internal/core/ratelimit"
	"github.com/fieldsync/fieldsync/internal/output"
	servermw "github.com/fieldsync/fieldsync/internal/server/middleware"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

type versionResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Version:   s.deps.Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{
		Name:      "fieldsync",
		Version:   s.deps.Version,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := output.Status{}

	if s.deps.Queue != nil {
		summary, err := s.deps.Queue.Summary(r.Context())
		if err != nil {
			s.logger.Error("queue summary failed", zap.Error(err))
			servermw.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read queue state")
			return
		}
		status.Queue = summary
	}
	if s.deps.Limiter != nil {
		status.Limiter = s.deps.Limiter.Snapshot()
	} else {
		status.Limiter = ratelimit.Snapshot{}
	}
	if s.deps.Cache != nil {
		status.CacheEntries = s.deps.Cache.Len(r.Context())
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.deps.Queue == nil {
		servermw.WriteError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "queue is not configured")
		return
	}

	report, err := s.deps.Queue.Sync(r.Context())
	if err != nil {
		s.logger.Error("manual sync failed", zap.Error(err))
		servermw.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "sync pass failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
