// Package service wires configuration into the running gateway: registry,
// interception stages, proxy core, and the two stdio adapters.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chughtapan/wags-gate/internal/adapter/inbound/stdio"
	"github.com/chughtapan/wags-gate/internal/adapter/outbound/mcpclient"
	"github.com/chughtapan/wags-gate/internal/config"
	"github.com/chughtapan/wags-gate/internal/domain/elicit"
	"github.com/chughtapan/wags-gate/internal/domain/groups"
	"github.com/chughtapan/wags-gate/internal/domain/proxy"
	"github.com/chughtapan/wags-gate/internal/domain/roots"
	"github.com/chughtapan/wags-gate/internal/metrics"
	"github.com/chughtapan/wags-gate/internal/port/inbound"
	"github.com/chughtapan/wags-gate/pkg/mcp"
)

// Gateway is the assembled gateway service. One Gateway serves one client
// session over stdio and one upstream subprocess.
type Gateway struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	promReg *prometheus.Registry

	backend *mcpclient.Client
	proxy   *proxy.Proxy

	mu         sync.Mutex
	server     *stdio.Server
	metricsSrv *http.Server
}

var _ inbound.GatewayService = (*Gateway)(nil)

// NewGateway builds the full stage chain from the configuration. Stage
// order is fixed: access control, then elicitation, then capability
// disclosure; the capability stage is only installed when groups are
// declared.
func NewGateway(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	registry, err := BuildRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("build handler registry: %w", err)
	}

	promReg := prometheus.NewRegistry()
	m := metrics.NewMetrics(promReg)

	g := &Gateway{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		promReg: promReg,
	}

	g.backend = mcpclient.New(
		cfg.Upstream.Command,
		cfg.Upstream.Args,
		g.relayUpstreamNotification,
		logger.With("component", "upstream"),
	)

	stages := []proxy.Stage{
		roots.NewStage(registry, m, logger.With("component", "roots")),
		elicit.NewStage(registry, m, logger.With("component", "elicit")),
	}
	if defs := GroupDefinitions(cfg); len(defs) > 0 {
		groupsStage, err := groups.NewStage(
			defs,
			cfg.Policy.InitialGroups,
			cfg.Policy.MaxTools,
			registry,
			m,
			logger.With("component", "groups"),
		)
		if err != nil {
			return nil, fmt.Errorf("build groups stage: %w", err)
		}
		stages = append(stages, groupsStage)
	}

	g.proxy = proxy.NewProxy(g.backend, stages, logger.With("component", "proxy"))
	return g, nil
}

// Run serves the client on stdin/stdout until EOF or cancellation.
func (g *Gateway) Run(ctx context.Context) error {
	return g.RunIO(ctx, os.Stdin, os.Stdout)
}

// RunIO serves the client on the given reader/writer pair. It starts the
// upstream subprocess, the optional metrics listener, and blocks on the
// client read loop.
func (g *Gateway) RunIO(ctx context.Context, in io.Reader, out io.Writer) error {
	g.startMetricsListener()

	server := stdio.New(g.proxy, g.backend, uuid.NewString(), in, out, g.metrics, g.logger.With("component", "client"))
	g.mu.Lock()
	g.server = server
	g.mu.Unlock()

	if err := g.backend.Start(ctx); err != nil {
		return fmt.Errorf("start upstream: %w", err)
	}
	defer func() { _ = g.backend.Close() }()

	return server.Run(ctx)
}

// Close shuts down the upstream connection and the metrics listener.
func (g *Gateway) Close() error {
	var errs []error

	g.mu.Lock()
	server := g.server
	metricsSrv := g.metricsSrv
	g.mu.Unlock()

	if server != nil {
		if err := server.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := g.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// relayUpstreamNotification forwards upstream notifications to the client.
// The client session is attached before the upstream starts, so a nil
// server only happens during teardown.
func (g *Gateway) relayUpstreamNotification(method string, params json.RawMessage) {
	g.mu.Lock()
	server := g.server
	g.mu.Unlock()
	if server == nil {
		return
	}

	if method == mcp.NotificationToolListChanged {
		if err := server.Session().NotifyToolListChanged(context.Background()); err != nil {
			g.logger.Warn("relay tool list change failed", "error", err)
		}
		return
	}
	if err := server.RelayNotification(method, params); err != nil {
		g.logger.Warn("relay upstream notification failed", "method", method, "error", err)
	}
}

// startMetricsListener exposes /metrics when an address is configured.
func (g *Gateway) startMetricsListener() {
	addr := g.cfg.Server.MetricsAddr
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g.promReg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	g.mu.Lock()
	g.metricsSrv = srv
	g.mu.Unlock()

	go func() {
		g.logger.Info("metrics listener started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("metrics listener failed", "error", err)
		}
	}()
}
