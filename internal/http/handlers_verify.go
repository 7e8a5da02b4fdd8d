package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/service"
)

// Client-facing messages of the verify endpoint.
const (
	MsgMissingCredentials = "Missing username or password"
	MsgInvalidBody        = "Invalid request body"
	MsgVerifyFailed       = "Failed to verify credentials"
	MsgMisconfigured      = "Server misconfiguration"
	MsgMethodNotAllowed   = "Method not allowed"
)

type verifyRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// VerifyHandlers serves the admin credential check.
type VerifyHandlers struct {
	Verifier ports.CredentialVerifier // nil when no credential store is configured
	Logger   *slog.Logger
}

func (h *VerifyHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Verify answers whether the posted username/password is a valid admin credential.
func (h *VerifyHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", corsAllowMethods)
		WriteError(w, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
		return
	}
	if h.Verifier == nil {
		h.logger().ErrorContext(r.Context(), "credential verifier is not configured")
		WriteError(w, http.StatusInternalServerError, MsgMisconfigured)
		return
	}

	var req verifyRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteJSON(w, http.StatusBadRequest, verifyResponse{Error: MsgInvalidBody})
		return
	}

	valid, err := h.Verifier.Verify(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, verifyResponse{Valid: valid})
	case errors.Is(err, ports.ErrMissingCredentials):
		WriteJSON(w, http.StatusBadRequest, verifyResponse{Error: MsgMissingCredentials})
	case errors.Is(err, service.ErrVerifierMisconfigured):
		h.logger().ErrorContext(r.Context(), "credential verifier is not configured", "error", err)
		WriteError(w, http.StatusInternalServerError, MsgMisconfigured)
	default:
		h.logger().ErrorContext(r.Context(), "credential verification failed", "error", err)
		WriteJSON(w, http.StatusInternalServerError, verifyResponse{Error: MsgVerifyFailed})
	}
}
