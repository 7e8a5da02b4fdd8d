package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/hasifahmed52-lang/mecha-29-hub/config"
	httpx "github.com/hasifahmed52-lang/mecha-29-hub/internal/http"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Verifier ports.CredentialVerifier
	Logger   *slog.Logger
}

// NewHTTPServer builds the server and its router. Metrics are served only when enabled.
func NewHTTPServer(cfg HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	routerCfg := httpx.RouterConfig{AllowedOrigin: appCfg.HTTP.AllowedOrigin}
	if appCfg.Observability.Metrics.Enabled {
		routerCfg.MetricsPath = appCfg.Observability.Metrics.Path
	}

	addr := appCfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr: addr,
		Handler: httpx.NewRouter(httpx.RouterServices{
			Verifier: cfg.Verifier,
			Config:   routerCfg,
			Logger:   logger,
		}),
		ReadHeaderTimeout: appCfg.HTTP.ReadHeaderTimeout,
	}
}

// ServeHTTP serves on ln until ctx is done, then shuts the server down
// gracefully. A nil ln listens on server.Addr.
func ServeHTTP(ctx context.Context, server *http.Server, ln net.Listener, cfg config.HTTPConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", server.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", server.Addr, err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	<-errCh
	logger.Info("HTTP server stopped")
	return nil
}
