package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/edgelogd/internal/model"
)

type stubUploader struct {
	state     model.ConnState
	connErr   error
	connState model.ConnState // state to report after Connect is called, if non-empty
}

func (s stubUploader) ConnectionState() model.ConnState { return s.state }

func (s *stubUploader) Connect(ctx context.Context) error {
	if s.connState != "" {
		s.state = s.connState
	}
	return s.connErr
}

func newRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func TestFilesystem_ReturnsOKWhenAllDirectoriesExist(t *testing.T) {
	h := &Handler{Directories: []string{t.TempDir(), t.TempDir()}}
	req := httptest.NewRequest(http.MethodGet, "/healthz/filesystem", nil)
	rec := httptest.NewRecorder()

	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFilesystem_ReturnsUnavailableWhenDirectoryMissing(t *testing.T) {
	h := &Handler{Directories: []string{t.TempDir() + "/does-not-exist"}}
	req := httptest.NewRequest(http.MethodGet, "/healthz/filesystem", nil)
	rec := httptest.NewRecorder()

	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestIoTHub_ReturnsUnavailableWhenDisconnected(t *testing.T) {
	h := &Handler{Uploader: &stubUploader{state: model.ConnDisconnected}}
	req := httptest.NewRequest(http.MethodGet, "/healthz/iothub", nil)
	rec := httptest.NewRecorder()

	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestIoTHub_ReturnsUnavailableWhenConnectAttemptDoesNotRecover(t *testing.T) {
	h := &Handler{Uploader: &stubUploader{state: model.ConnError, connErr: context.DeadlineExceeded}}
	req := httptest.NewRequest(http.MethodGet, "/healthz/iothub", nil)
	rec := httptest.NewRecorder()

	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestIoTHub_ReturnsOKWhenConnected(t *testing.T) {
	h := &Handler{Uploader: &stubUploader{state: model.ConnConnected}}
	req := httptest.NewRequest(http.MethodGet, "/healthz/iothub", nil)
	rec := httptest.NewRecorder()

	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestIoTHub_ReturnsDegradedWhenConnecting(t *testing.T) {
	h := &Handler{Uploader: &stubUploader{state: model.ConnConnecting}}
	req := httptest.NewRequest(http.MethodGet, "/healthz/iothub", nil)
	rec := httptest.NewRecorder()

	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for a degraded-but-OK response, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"degraded"`) {
		t.Errorf("expected degraded status in body, got %s", rec.Body.String())
	}
}

func TestIoTHub_OnDemandConnectRecoversState(t *testing.T) {
	h := &Handler{Uploader: &stubUploader{state: model.ConnDisconnected, connState: model.ConnConnected}}
	req := httptest.NewRequest(http.MethodGet, "/healthz/iothub", nil)
	rec := httptest.NewRecorder()

	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected the on-demand connect attempt to recover the connection, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFilesystem_ReturnsUnavailableWhenDirectoryNotWritable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("write-probe permission check is meaningless when running as root")
	}

	dir := t.TempDir()
	if err := os.Chmod(dir, 0555); err != nil {
		t.Skipf("cannot make directory read-only in this environment: %v", err)
	}
	defer os.Chmod(dir, 0755)

	h := &Handler{Directories: []string{dir}}
	req := httptest.NewRequest(http.MethodGet, "/healthz/filesystem", nil)
	rec := httptest.NewRecorder()

	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for an unwritable directory, got %d: %s", rec.Code, rec.Body.String())
	}
}
