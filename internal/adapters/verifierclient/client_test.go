package verifierclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

func TestClient_Verify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("apikey"))
		var in verifyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		switch {
		case in.Username == "" || in.Password == "":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"valid":false,"error":"Missing username or password"}`))
		case in.Username == "broken":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"valid":false,"error":"Failed to verify credentials"}`))
		case in.Username == "garbled":
			_, _ = w.Write([]byte(`{}`))
		default:
			_ = json.NewEncoder(w).Encode(map[string]bool{"valid": in.Username == "ops" && in.Password == "pass123"})
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, "key", nil)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := c.Verify(ctx, "ops", "pass123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Verify(ctx, "ops", "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Verify(ctx, "", "x")
	require.ErrorIs(t, err, ports.ErrMissingCredentials)

	_, err = c.Verify(ctx, "broken", "secret-pw")
	require.ErrorContains(t, err, "status 500")
	assert.NotContains(t, err.Error(), "secret-pw")

	_, err = c.Verify(ctx, "garbled", "x")
	require.Error(t, err)
}

func TestClient_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { <-block }))
	defer srv.Close()
	defer close(block)

	c, err := New(srv.URL, "", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Verify(ctx, "ops", "pass123")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New("", "", nil)
	require.Error(t, err)
}
