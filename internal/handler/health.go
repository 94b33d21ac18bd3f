// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/chapel-cms/internal/middleware"
	"github.com/olegiv/chapel-cms/internal/model"
	"github.com/olegiv/chapel-cms/internal/render"
	"github.com/olegiv/chapel-cms/internal/store"
	"github.com/olegiv/chapel-cms/internal/version"
)

// probeTimeout bounds each dependency check.
const probeTimeout = 3 * time.Second

// Probe checks one external dependency.
type Probe func(ctx context.Context) error

// HealthUsers resolves both session and bearer identities.
type HealthUsers interface {
	middleware.UserLoader
	middleware.TokenVerifier
}

// HealthConfig configures a HealthHandler.
type HealthConfig struct {
	DB       *sql.DB
	Sessions *scs.SessionManager
	Users    HealthUsers
	// UploadsDir is checked for free space; empty when media lives in S3.
	UploadsDir string
	// Probes are extra named checks such as "mongodb" or "redis".
	Probes map[string]Probe
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db         *sql.DB
	sm         *scs.SessionManager
	users      HealthUsers
	uploadsDir string
	probes     map[string]Probe
	startTime  time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(cfg HealthConfig) *HealthHandler {
	return &HealthHandler{
		db:         cfg.DB,
		sm:         cfg.Sessions,
		users:      cfg.Users,
		uploadsDir: cfg.UploadsDir,
		probes:     cfg.Probes,
		startTime:  time.Now(),
	}
}

// StartTime returns when the handler (and application) was started.
func (h *HealthHandler) StartTime() time.Time {
	return h.startTime
}

// HealthStatusPublic is the minimal health response for unauthenticated callers.
type HealthStatusPublic struct {
	Status string `json:"status"`
}

// HealthStatus is the detailed health response for signed-in callers.
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   version.Info     `json:"version"`
	Checks    map[string]Check `json:"checks,omitempty"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemInfo contains system-level information.
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutines"`
	NumCPU       int    `json:"num_cpus"`
	MemAlloc     string `json:"mem_alloc"`
	MemSys       string `json:"mem_sys"`
}

// Health handles GET /health. Anonymous callers get only the overall
// status; signed-in users also see uptime and version, and admins the
// individual checks (plus runtime info with ?verbose=true).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := h.runChecks(r.Context())

	overallStatus := "healthy"
	for _, c := range checks {
		if c.Status != "healthy" {
			overallStatus = "degraded"
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if overallStatus != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	user := h.caller(r)
	if user == nil {
		_ = json.NewEncoder(w).Encode(HealthStatusPublic{Status: overallStatus})
		return
	}

	status := HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   version.Get(),
	}
	if user.Role == model.RoleAdmin {
		status.Checks = checks
		if r.URL.Query().Get("verbose") == "true" {
			status.System = h.getSystemInfo()
		}
	}
	_ = json.NewEncoder(w).Encode(status)
}

// Liveness handles GET /health/live.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// Readiness handles GET /health/ready. Only the databases decide readiness.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	failed := ""
	if c := h.checkDatabase(r.Context()); c.Status != "healthy" {
		failed = c.Message
	}
	if probe, ok := h.probes["mongodb"]; ok && failed == "" {
		if c := runProbe(r.Context(), probe); c.Status != "healthy" {
			failed = c.Message
		}
	}

	if failed == "" {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	resp := map[string]string{"status": "not_ready"}
	if h.caller(r) != nil {
		resp["message"] = failed
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *HealthHandler) runChecks(ctx context.Context) map[string]Check {
	checks := map[string]Check{"database": h.checkDatabase(ctx)}
	if h.uploadsDir != "" {
		checks["disk"] = h.checkDiskSpace()
	}
	for name, probe := range h.probes {
		checks[name] = runProbe(ctx, probe)
	}
	return checks
}

// caller returns the signed-in user from the admin session or a bearer
// token, or nil.
func (h *HealthHandler) caller(r *http.Request) *store.User {
	if h.users == nil {
		return nil
	}
	if h.sm != nil {
		if id := h.sessionUserID(r); id != "" {
			if u, err := h.users.ActiveUser(r.Context(), id); err == nil {
				return &u
			}
		}
	}

	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "bearer") && token != "" {
		if u, err := h.users.UserFromToken(r.Context(), token); err == nil {
			return &u
		}
	}
	return nil
}

// sessionUserID reads the session user id.
// SCS panics if session data is not loaded into context, so recover gracefully.
func (h *HealthHandler) sessionUserID(r *http.Request) (id string) {
	defer func() {
		if rec := recover(); rec != nil {
			id = ""
		}
	}()
	return h.sm.GetString(r.Context(), middleware.SessionKeyUserID)
}

// checkDatabase verifies database connectivity.
func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	return runProbe(ctx, h.db.PingContext)
}

func runProbe(ctx context.Context, probe Probe) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := probe(ctx)
	latency := time.Since(start)

	if err != nil {
		return Check{Status: "unhealthy", Message: err.Error(), Latency: latency.String()}
	}
	return Check{Status: "healthy", Message: "Connected", Latency: latency.String()}
}

// checkDiskSpace checks available disk space in the uploads directory.
func (h *HealthHandler) checkDiskSpace() Check {
	if _, err := os.Stat(h.uploadsDir); os.IsNotExist(err) {
		return Check{Status: "healthy", Message: "Uploads directory does not exist yet"}
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(h.uploadsDir, &stat); err != nil {
		return Check{Status: "unhealthy", Message: "Failed to check disk space: " + err.Error()}
	}

	availableBytes := int64(stat.Bavail) * int64(stat.Bsize)
	available := render.FormatBytes(availableBytes)

	const minSpace = 100 << 20
	if availableBytes < minSpace {
		return Check{Status: "degraded", Message: "Low disk space: " + available + " available"}
	}
	return Check{Status: "healthy", Message: available + " available"}
}

// getSystemInfo returns system-level metrics.
func (h *HealthHandler) getSystemInfo() *SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     render.FormatBytes(int64(m.Alloc)),
		MemSys:       render.FormatBytes(int64(m.Sys)),
	}
}
