package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pulse_relay/internal/api"
	"pulse_relay/internal/config"
	"pulse_relay/internal/logger"
	"pulse_relay/internal/metrics"
	"pulse_relay/internal/ports"
	"pulse_relay/internal/relay"
	"pulse_relay/internal/stream"
)

const shutdownTimeout = 5 * time.Second

// overrides holds command-line values that take precedence over the config file.
type overrides struct {
	addr      string
	staticDir string
	logLevel  string
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	var o overrides
	flag.StringVar(&o.addr, "addr", "", "listen address (overrides server.addr)")
	flag.StringVar(&o.staticDir, "static-dir", "", "directory with frontend assets (overrides server.static_dir)")
	flag.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := applyOverrides(cfg, o); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	sugar, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer sugar.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := newApp(cfg, sugar, reg, relay.SerialOpener(cfg.Serial.BaudRate))

	srv := newHTTPServer(cfg.Server.Addr, app.mux)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		sugar.Infow("Server running", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("Server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("HTTP shutdown incomplete", "error", err)
	}
	if err := app.session.Close(); err != nil {
		sugar.Warnw("Closing device failed", "error", err)
	}
}

// newHTTPServer returns a server whose request contexts are cancelled when
// Shutdown starts, so open subscriber streams end instead of holding shutdown
// until its deadline.
func newHTTPServer(addr string, h http.Handler) *http.Server {
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(cancel)
	return srv
}

func applyOverrides(cfg *config.Config, o overrides) error {
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	if o.staticDir != "" {
		cfg.Server.StaticDir = o.staticDir
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg.Validate()
}

type app struct {
	mux     *http.ServeMux
	session *relay.Session
	hub     *stream.Hub
}

// newApp wires the relay session, the subscriber hub and all routes.
func newApp(cfg *config.Config, sugar *zap.SugaredLogger, reg *prometheus.Registry, open relay.OpenerFunc) *app {
	var m *metrics.Metrics
	if cfg.MetricsEnabled() {
		m = metrics.New(reg)
	}

	hub := stream.NewHub(cfg.Relay.ClientBuffer, sugar.Named("hub"), m)
	session := relay.New(relay.Config{
		BatchSize:        cfg.Relay.BatchSize,
		Delimiter:        cfg.Serial.Delimiter,
		SettleDelay:      cfg.Relay.SettleDelay,
		SimulationMarker: cfg.Relay.SimulationMarker,
	}, open, stream.NewBridge(hub, m), sugar.Named("relay"), m)

	handler := api.NewHandler(ports.NewLister(cfg.Serial.Patterns...), session, hub, sugar.Named("api"))

	mux := http.NewServeMux()
	handler.Routes(mux)
	mux.Handle("GET /api/stream", stream.NewSSEHandler(hub, sugar.Named("sse")))
	mux.Handle("GET /ws", stream.NewWSHandler(hub, sugar.Named("ws")))
	if m != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	if _, err := os.Stat(cfg.Server.StaticDir); err == nil {
		sugar.Infow("Serving frontend", "dir", cfg.Server.StaticDir)
		mux.Handle("/", http.FileServer(http.Dir(cfg.Server.StaticDir)))
	}

	return &app{mux: mux, session: session, hub: hub}
}
