package http_test

import (
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/bravo68web/githttpgw/internal/driver"
	"github.com/bravo68web/githttpgw/internal/gateway"
	"github.com/bravo68web/githttpgw/internal/transport/http/router"
	"github.com/stretchr/testify/require"
)

// newBareRepo creates a bare repository at <originDir>/acme/demo.git and
// returns originDir, ready to back a driver.Local.
func newBareRepo(t *testing.T) (originDir string) {
	t.Helper()
	originDir = t.TempDir()
	full := filepath.Join(originDir, "acme", "demo.git")
	require.NoError(t, exec.Command("git", "init", "--bare", full).Run())
	return originDir
}

func newTestEngine(t *testing.T) *gateway.Controller {
	t.Helper()
	originDir := newBareRepo(t)
	controller := gateway.NewController(&driver.Local{OriginDir: originDir})
	return controller
}

func TestInfoRefsAdvertisesUploadPack(t *testing.T) {
	controller := newTestEngine(t)
	engine := router.New(controller, []string{"*"})

	req := httptest.NewRequest("GET", "/acme/demo.git/info/refs?service=git-upload-pack", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Equal(t, "application/x-git-upload-pack-advertisement", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "# service=git-upload-pack")
}

func TestInfoRefsUnknownServiceRejected404(t *testing.T) {
	controller := newTestEngine(t)
	engine := router.New(controller, []string{"*"})

	req := httptest.NewRequest("GET", "/acme/demo.git/info/refs?service=git-not-a-real-service", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, 404, rec.Code)
}

func TestInfoRefsMissingRepoRejected404(t *testing.T) {
	controller := newTestEngine(t)
	engine := router.New(controller, []string{"*"})

	req := httptest.NewRequest("GET", "/acme/missing.git/info/refs?service=git-upload-pack", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, 404, rec.Code)
}

func TestUnmatchedRouteReturns404(t *testing.T) {
	controller := newTestEngine(t)
	engine := router.New(controller, []string{"*"})

	req := httptest.NewRequest("GET", "/not/a/git/route", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, 404, rec.Code)
}

func TestHealthRouteOK(t *testing.T) {
	controller := newTestEngine(t)
	engine := router.New(controller, []string{"*"})

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
}
