// Package health serves the agent's liveness/readiness endpoints over
// go-chi/chi, mirroring the teacher's control-plane API routing idiom.
package health

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/marmos91/edgelogd/internal/logger"
	"github.com/marmos91/edgelogd/internal/model"
)

// Thresholds for the filesystem endpoint's free-disk-space criterion,
// mirroring the Retention Manager's own disk-pressure check
// (internal/retention's lowFreeRatio): below degradedFreeRatio the disk is
// close enough to full that emergency cleanup may already be running;
// below unhealthyFreeRatio it is critical.
const (
	degradedFreeRatio  = 0.20
	unhealthyFreeRatio = 0.05

	connectProbeTimeout = 5 * time.Second
)

// response is the standard envelope for every health endpoint.
type response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.Error("health: failed to encode response", logger.Err(err))
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func healthy(data interface{}) response {
	return response{Status: "healthy", Timestamp: time.Now().UTC(), Data: data}
}

func degraded(data interface{}) response {
	return response{Status: "degraded", Timestamp: time.Now().UTC(), Data: data}
}

func unhealthyResponse(data interface{}) response {
	return response{Status: "unhealthy", Timestamp: time.Now().UTC(), Data: data}
}

func unhealthy(errMsg string) response {
	return response{Status: "unhealthy", Timestamp: time.Now().UTC(), Error: errMsg}
}

// tier is the three-way health verdict a single check contributes; the
// endpoint's overall status is the worst tier seen across its checks.
type tier int

const (
	tierHealthy tier = iota
	tierDegraded
	tierUnhealthy
)

func (t tier) String() string {
	switch t {
	case tierHealthy:
		return "healthy"
	case tierDegraded:
		return "degraded"
	default:
		return "unhealthy"
	}
}

func worst(a, b tier) tier {
	if b > a {
		return b
	}
	return a
}

func statusFor(t tier, data interface{}) (int, response) {
	switch t {
	case tierHealthy:
		return http.StatusOK, healthy(data)
	case tierDegraded:
		return http.StatusOK, degraded(data)
	default:
		return http.StatusServiceUnavailable, unhealthyResponse(data)
	}
}

// ConnStater reports the current Upload Client connection state and can
// attempt an on-demand reconnect, without the health package needing to
// import the upload package's full surface.
type ConnStater interface {
	ConnectionState() model.ConnState
	Connect(ctx context.Context) error
}

// Handler serves /healthz/* routes.
type Handler struct {
	Directories []string
	Uploader    ConnStater
}

// Routes mounts the handler's endpoints onto r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz/live", h.Liveness)
	r.Get("/healthz/filesystem", h.Filesystem)
	r.Get("/healthz/iothub", h.IoTHub)
}

// Liveness always returns 200 while the process is up; used for a
// container orchestrator's liveness probe.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthy(map[string]string{"service": "edgelogd"}))
}

type dirStatus struct {
	Path      string  `json:"path"`
	Status    string  `json:"status"`
	FreeRatio float64 `json:"free_ratio,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Filesystem reports, per watched directory, whether it is still present,
// has adequate free disk space, and accepts writes - the three criteria
// spec §6 names for this endpoint. The overall status is the worst tier
// seen across every directory.
func (h *Handler) Filesystem(w http.ResponseWriter, r *http.Request) {
	statuses := make([]dirStatus, 0, len(h.Directories))
	overall := tierHealthy

	for _, dir := range h.Directories {
		st, t := checkDirectory(dir)
		statuses = append(statuses, st)
		overall = worst(overall, t)
	}

	code, resp := statusFor(overall, statuses)
	writeJSON(w, code, resp)
}

func checkDirectory(dir string) (dirStatus, tier) {
	info, err := os.Stat(dir)
	if err != nil {
		return dirStatus{Path: dir, Status: tierUnhealthy.String(), Error: err.Error()}, tierUnhealthy
	}
	if !info.IsDir() {
		return dirStatus{Path: dir, Status: tierUnhealthy.String(), Error: "not a directory"}, tierUnhealthy
	}

	t := tierHealthy
	var errMsg string
	var ratio float64

	usage, err := disk.Usage(dir)
	switch {
	case err != nil:
		t = worst(t, tierDegraded)
		errMsg = "free disk space unknown: " + err.Error()
	case usage.Total == 0:
		ratio = 1
	default:
		ratio = float64(usage.Free) / float64(usage.Total)
		switch {
		case ratio < unhealthyFreeRatio:
			t = worst(t, tierUnhealthy)
			errMsg = "free disk critically low"
		case ratio < degradedFreeRatio:
			t = worst(t, tierDegraded)
			errMsg = "free disk low"
		}
	}

	if probeErr := writeProbe(dir); probeErr != nil {
		t = worst(t, tierUnhealthy)
		if errMsg != "" {
			errMsg += "; "
		}
		errMsg += "write probe failed: " + probeErr.Error()
	}

	return dirStatus{Path: dir, Status: t.String(), FreeRatio: ratio, Error: errMsg}, t
}

// writeProbe attempts to create and remove a small temporary file in dir,
// catching the case where the directory is present but mounted read-only
// or otherwise unwritable by the agent's user.
func writeProbe(dir string) error {
	f, err := os.CreateTemp(dir, ".edgelogd-healthprobe-*")
	if err != nil {
		return err
	}
	path := f.Name()
	_ = f.Close()
	return os.Remove(path)
}

// IoTHub reports the Upload Client's current connection state: healthy
// only when Connected, degraded while Connecting, and unhealthy
// otherwise. When the client isn't already connected or connecting, this
// triggers a bounded on-demand connect attempt before reporting (spec
// §6), so a transient drop self-heals without waiting on the orchestrator's
// own upload-triggered reconnects.
func (h *Handler) IoTHub(w http.ResponseWriter, r *http.Request) {
	if h.Uploader == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthy("upload client not initialized"))
		return
	}

	state := h.Uploader.ConnectionState()
	if state != model.ConnConnected && state != model.ConnConnecting {
		ctx, cancel := context.WithTimeout(r.Context(), connectProbeTimeout)
		if err := h.Uploader.Connect(ctx); err != nil {
			logger.Debug("health: on-demand iothub connect attempt failed", logger.Err(err))
		}
		cancel()
		state = h.Uploader.ConnectionState()
	}

	data := map[string]string{"connection_state": string(state)}

	var t tier
	switch state {
	case model.ConnConnected:
		t = tierHealthy
	case model.ConnConnecting:
		t = tierDegraded
	default:
		t = tierUnhealthy
	}

	code, resp := statusFor(t, data)
	writeJSON(w, code, resp)
}

// Serve starts an HTTP server exposing the health routes and blocks until
// ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h *Handler) error {
	router := chi.NewRouter()
	h.Routes(router)

	srv := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
