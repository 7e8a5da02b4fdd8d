package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	obserrors "github.com/hasifahmed52-lang/mecha-29-hub/internal/observability/errors"
)

const namespace = "mecha_hub"

// Result label values.
const (
	ResultValid   = "valid"
	ResultInvalid = "invalid"
	ResultMissing = "missing"
	ResultError   = "error"
	ResultSuccess = "success"
	ResultAdmin   = "admin"
	ResultDenied  = "not_admin"
)

var (
	CredentialChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credential_checks_total",
		Help:      "Admin credential verifications by outcome.",
	}, []string{"result"})

	AdminLoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admin_logins_total",
		Help:      "Admin login attempts by outcome (success or error kind).",
	}, []string{"result"})

	RoleLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_lookups_total",
		Help:      "Authoritative role lookups by outcome.",
	}, []string{"result", "error_class"})

	RoleLookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "role_lookup_duration_seconds",
		Help:      "Latency of role store lookups.",
		Buckets:   prometheus.DefBuckets,
	})

	StaleLookupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_lookups_discarded_total",
		Help:      "Role lookups whose result was dropped because the session changed.",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method, and status code.",
	}, []string{"route", "method", "code"})
)

// ObserveCredentialCheck counts a verifier outcome.
func ObserveCredentialCheck(result string) {
	CredentialChecksTotal.WithLabelValues(result).Inc()
}

// ObserveAdminLogin counts a login outcome. Pass ResultSuccess or the error kind.
func ObserveAdminLogin(result string) {
	AdminLoginsTotal.WithLabelValues(result).Inc()
}

// ObserveRoleLookup records one role store lookup.
func ObserveRoleLookup(d time.Duration, isAdmin bool, err error) {
	RoleLookupDuration.Observe(d.Seconds())
	switch {
	case err != nil:
		RoleLookupsTotal.WithLabelValues(ResultError, obserrors.Classify(err)).Inc()
	case isAdmin:
		RoleLookupsTotal.WithLabelValues(ResultAdmin, "").Inc()
	default:
		RoleLookupsTotal.WithLabelValues(ResultDenied, "").Inc()
	}
}

// ObserveStaleLookup counts a discarded lookup result.
func ObserveStaleLookup() {
	StaleLookupsTotal.Inc()
}
