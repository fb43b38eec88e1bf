package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulse_relay/internal/config"
)

func failingOpener(path string) (io.ReadCloser, error) {
	return nil, errors.New("no such file or directory")
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestApplyOverrides(t *testing.T) {
	tests := []struct {
		name    string
		o       overrides
		addr    string
		static  string
		level   string
		wantErr bool
	}{
		{"no overrides", overrides{}, ":3000", "public", "info", false},
		{"all overrides", overrides{addr: ":8081", staticDir: "web", logLevel: "debug"}, ":8081", "web", "debug", false},
		{"bad level", overrides{logLevel: "verbose"}, ":3000", "public", "verbose", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			err := applyOverrides(cfg, tt.o)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.addr, cfg.Server.Addr)
			assert.Equal(t, tt.static, cfg.Server.StaticDir)
			assert.Equal(t, tt.level, cfg.Log.Level)
		})
	}
}

func TestNewApp_Routes(t *testing.T) {
	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>pulse</h1>"), 0o600))

	cfg := config.Default()
	cfg.Server.StaticDir = static
	cfg.Serial.Patterns = []string{filepath.Join(t.TempDir(), "ttyUSB*")}

	a := newApp(cfg, zap.NewNop().Sugar(), prometheus.NewRegistry(), failingOpener)
	t.Cleanup(func() { a.session.Close() })
	server := httptest.NewServer(a.mux)
	defer server.Close()

	code, body := get(t, server.URL+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)

	code, body = get(t, server.URL+"/api/ports")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "[]\n", body)

	code, body = get(t, server.URL+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "<h1>pulse</h1>")

	resp, err := http.Post(server.URL+"/api/connect", "application/json", strings.NewReader(`{"port":"/dev/ttyGONE"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	code, body = get(t, server.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `pulse_relay_connect_requests_total{outcome="failed"} 1`)
}

func TestNewApp_MetricsDisabled(t *testing.T) {
	cfg := config.Default()
	disabled := false
	cfg.Metrics.Enabled = &disabled
	cfg.Server.StaticDir = filepath.Join(t.TempDir(), "missing")

	a := newApp(cfg, zap.NewNop().Sugar(), prometheus.NewRegistry(), failingOpener)
	server := httptest.NewServer(a.mux)
	defer server.Close()

	code, _ := get(t, server.URL+"/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHTTPServer_ShutdownEndsSubscriberStreams(t *testing.T) {
	cfg := config.Default()
	cfg.Server.StaticDir = filepath.Join(t.TempDir(), "missing")
	a := newApp(cfg, zap.NewNop().Sugar(), prometheus.NewRegistry(), failingOpener)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := newHTTPServer(ln.Addr().String(), a.mux)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Eventually(t, func() bool { return a.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	assert.ErrorIs(t, <-served, http.ErrServerClosed)
	assert.Equal(t, 0, a.hub.ClientCount())
}
