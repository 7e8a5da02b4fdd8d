package httpx

import (
	"log/slog"
	"net/http"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/observability/metrics"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

// VerifyPath is the credential verifier route.
const VerifyPath = "/verify-admin-login"

// RouterConfig holds HTTP-level settings.
type RouterConfig struct {
	AllowedOrigin string
	MetricsPath   string // empty disables /metrics
}

// RouterServices holds what the HTTP router needs.
type RouterServices struct {
	Verifier ports.CredentialVerifier
	Config   RouterConfig
	Logger   *slog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	verify := &VerifyHandlers{Verifier: services.Verifier, Logger: logger.With("component", "verify_handler")}
	mux.Handle(VerifyPath, CORS(services.Config.AllowedOrigin)(http.HandlerFunc(verify.Verify)))

	mux.HandleFunc("GET /healthz", healthHandler)
	if services.Config.MetricsPath != "" {
		mux.Handle("GET "+services.Config.MetricsPath, metrics.Handler())
	}

	return Chain(mux, Recover(logger), Logging(logger), Metrics())
}
