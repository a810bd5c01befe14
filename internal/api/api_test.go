package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AlexxIT/go2cam/internal/app"
	"github.com/AlexxIT/go2cam/pkg/yaml"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Response(w, "OK", MimeText)
	})
	handler := newHandler(ok, "*", "admin", "secret")

	r := httptest.NewRequest("GET", "/api", nil)
	r.RemoteAddr = "192.168.1.10:5000"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	r.SetBasicAuth("admin", "secret")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OK", w.Body.String())

	// localhost is trusted
	r = httptest.NewRequest("GET", "/api", nil)
	r.RemoteAddr = "127.0.0.1:5000"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestConfigHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go2cam.yaml")
	require.Nil(t, os.WriteFile(path, []byte("cameras:\n  front:\n    device: /dev/video0\n"), 0644))

	app.ConfigPath = path
	t.Cleanup(func() { app.ConfigPath = "" })

	w := httptest.NewRecorder()
	configHandler(w, httptest.NewRequest("GET", "/api/config", nil))
	require.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	require.Contains(t, w.Body.String(), "/dev/video0")

	body := strings.NewReader("cameras:\n  front:\n    width: 640\nlog:\n  session: trace\n")
	w = httptest.NewRecorder()
	configHandler(w, httptest.NewRequest("PATCH", "/api/config", body))
	require.Equal(t, http.StatusOK, w.Code)

	data, err := os.ReadFile(path)
	require.Nil(t, err)

	var cfg struct {
		Cameras map[string]map[string]any `yaml:"cameras"`
		Log     map[string]string         `yaml:"log"`
	}
	require.Nil(t, yaml.Unmarshal(data, &cfg))
	require.Equal(t, "/dev/video0", cfg.Cameras["front"]["device"])
	require.Equal(t, 640, cfg.Cameras["front"]["width"])
	require.Equal(t, "trace", cfg.Log["session"])

	w = httptest.NewRecorder()
	configHandler(w, httptest.NewRequest("POST", "/api/config", strings.NewReader("cameras: [")))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMerge(t *testing.T) {
	dst := map[string]any{"api": map[string]any{"listen": ":1985", "origin": "*"}, "log": "x"}
	src := map[string]any{"api": map[string]any{"listen": ":8080"}, "log": map[string]any{"level": "debug"}}

	require.Equal(t, map[string]any{
		"api": map[string]any{"listen": ":8080", "origin": "*"},
		"log": map[string]any{"level": "debug"},
	}, merge(dst, src))
}
