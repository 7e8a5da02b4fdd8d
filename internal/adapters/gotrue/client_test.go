package gotrue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

// fakeGoTrue implements the subset of the GoTrue API the client uses.
type fakeGoTrue struct {
	mu           sync.Mutex
	users        map[string]string // email -> password
	confirm      bool
	signupOff    bool
	expiresIn    int
	refreshes    int
	rejectRT     bool
	logouts      []string
	lastAPIKey   string
	lastMetadata map[string]any
}

func (f *fakeGoTrue) tokenBody(email string, n int) map[string]any {
	return map[string]any{
		"access_token":  "access-" + email + "-" + string(rune('a'+n)),
		"refresh_token": "refresh-" + email,
		"token_type":    "bearer",
		"expires_in":    f.expiresIn,
		"user": map[string]any{
			"id":            "uid-" + email,
			"email":         email,
			"user_metadata": map[string]any{"username": "ops", "age": 3},
		},
	}
}

func (f *fakeGoTrue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAPIKey = r.Header.Get("apikey")
	var in map[string]any
	_ = json.NewDecoder(r.Body).Decode(&in)
	email, _ := in["email"].(string)
	password, _ := in["password"].(string)

	write := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	switch {
	case r.URL.Path == "/token" && r.URL.Query().Get("grant_type") == "password":
		if pw, ok := f.users[email]; !ok || pw != password {
			write(http.StatusBadRequest, map[string]any{"code": 400, "error_code": "invalid_credentials", "msg": "Invalid login credentials"})
			return
		}
		write(http.StatusOK, f.tokenBody(email, 0))
	case r.URL.Path == "/token" && r.URL.Query().Get("grant_type") == "refresh_token":
		if f.rejectRT {
			write(http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Refresh Token Not Found"})
			return
		}
		f.refreshes++
		rt, _ := in["refresh_token"].(string)
		write(http.StatusOK, f.tokenBody(rt[len("refresh-"):], f.refreshes))
	case r.URL.Path == "/signup":
		if f.signupOff {
			write(http.StatusUnprocessableEntity, map[string]any{"error_code": "signup_disabled", "msg": "Signups not allowed for this instance"})
			return
		}
		if _, ok := f.users[email]; ok {
			write(http.StatusUnprocessableEntity, map[string]any{"error_code": "user_already_exists", "msg": "User already registered"})
			return
		}
		f.users[email] = password
		f.lastMetadata, _ = in["data"].(map[string]any)
		if f.confirm {
			write(http.StatusOK, map[string]any{"id": "uid-" + email, "email": email})
			return
		}
		write(http.StatusOK, f.tokenBody(email, 0))
	case r.URL.Path == "/logout":
		f.logouts = append(f.logouts, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeGoTrue) locked(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

func newTestClient(t *testing.T, fake *fakeGoTrue) *Client {
	t.Helper()
	if fake.users == nil {
		fake.users = map[string]string{}
	}
	if fake.expiresIn == 0 {
		fake.expiresIn = 3600
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{Config: Config{URL: srv.URL + "/", APIKey: "anon"}})
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Options{})
	require.Error(t, err)

	_, err = NewClient(Options{Config: Config{URL: "http://x", UserIDPath: "user.[id"}})
	require.ErrorContains(t, err, "invalid JMESPath")
}

func TestClient_SignUpThenSignIn(t *testing.T) {
	fake := &fakeGoTrue{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	var events []domainauth.SessionEvent
	c.Subscribe(func(ch domainauth.SessionChange) { events = append(events, ch.Event) })

	_, err := c.SignInWithPassword(ctx, "ops@aust-mecha.admin", "pass123")
	require.ErrorIs(t, err, ports.ErrInvalidLogin)

	sess, err := c.SignUpWithPassword(ctx, "ops@aust-mecha.admin", "pass123", map[string]string{"username": "ops"})
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "uid-ops@aust-mecha.admin", sess.Principal.ID)
	assert.Equal(t, map[string]string{"username": "ops"}, sess.Principal.Metadata)
	fake.locked(func() {
		assert.Equal(t, map[string]any{"username": "ops"}, fake.lastMetadata)
		assert.Equal(t, "anon", fake.lastAPIKey)
	})
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, time.Minute)

	_, err = c.SignUpWithPassword(ctx, "ops@aust-mecha.admin", "pass123", nil)
	require.ErrorIs(t, err, ports.ErrAlreadyRegistered)

	signed, err := c.SignInWithPassword(ctx, "ops@aust-mecha.admin", "pass123")
	require.NoError(t, err)
	assert.Equal(t, sess.Principal.ID, signed.Principal.ID)
	assert.Equal(t, signed.AccessToken, c.AccessToken())

	require.NoError(t, c.SignOut(ctx))
	assert.Empty(t, c.AccessToken())
	require.NoError(t, c.SignOut(ctx))
	fake.locked(func() { assert.Equal(t, []string{"Bearer " + signed.AccessToken}, fake.logouts) })

	got, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, []domainauth.SessionEvent{
		domainauth.EventSignedIn, domainauth.EventSignedIn, domainauth.EventSignedOut,
	}, events)
}

func TestClient_SignUpNeedsConfirmation(t *testing.T) {
	c := newTestClient(t, &fakeGoTrue{confirm: true})
	sess, err := c.SignUpWithPassword(context.Background(), "a@d.test", "pw", nil)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestClient_SignUpDisabled(t *testing.T) {
	c := newTestClient(t, &fakeGoTrue{signupOff: true})
	_, err := c.SignUpWithPassword(context.Background(), "a@d.test", "pw", nil)
	require.ErrorIs(t, err, ports.ErrSignUpUnsupported)
}

func TestClient_TransportError(t *testing.T) {
	c, err := NewClient(Options{Config: Config{URL: "http://127.0.0.1:1"}})
	require.NoError(t, err)
	_, err = c.SignInWithPassword(context.Background(), "a@d.test", "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrInvalidLogin)
}

func TestClient_RefreshAndReject(t *testing.T) {
	fake := &fakeGoTrue{users: map[string]string{"a@d.test": "pw"}}
	c := newTestClient(t, fake)
	ctx := context.Background()

	first, err := c.SignInWithPassword(ctx, "a@d.test", "pw")
	require.NoError(t, err)

	var last domainauth.SessionChange
	c.Subscribe(func(ch domainauth.SessionChange) { last = ch })

	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, domainauth.EventTokenRefreshed, last.Event)
	assert.NotEqual(t, first.AccessToken, last.Session.AccessToken)

	fake.locked(func() { fake.rejectRT = true })
	require.ErrorIs(t, c.Refresh(ctx), ErrSessionRejected)
	assert.Equal(t, domainauth.EventSignedOut, last.Event)
}

// gatedRefresh holds refresh_token requests until release is closed.
func gatedRefresh(next http.Handler, entered, release chan struct{}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("grant_type") == "refresh_token" {
			close(entered)
			<-release
		}
		next.ServeHTTP(w, r)
	})
}

func newGatedClient(t *testing.T, fake *fakeGoTrue) (*Client, chan struct{}, chan struct{}) {
	t.Helper()
	fake.expiresIn = 3600
	entered, release := make(chan struct{}), make(chan struct{})
	srv := httptest.NewServer(gatedRefresh(fake, entered, release))
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{Config: Config{URL: srv.URL, APIKey: "anon"}})
	require.NoError(t, err)
	return c, entered, release
}

func TestClient_RefreshDuringSignOutIsDiscarded(t *testing.T) {
	fake := &fakeGoTrue{users: map[string]string{"a@d.test": "pw"}}
	c, entered, release := newGatedClient(t, fake)
	ctx := context.Background()

	_, err := c.SignInWithPassword(ctx, "a@d.test", "pw")
	require.NoError(t, err)

	var mu sync.Mutex
	var events []domainauth.SessionEvent
	c.Subscribe(func(ch domainauth.SessionChange) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ch.Event)
	})

	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx) }()
	<-entered

	require.NoError(t, c.SignOut(ctx))
	close(release)
	require.NoError(t, <-done)

	got, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, c.AccessToken())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domainauth.SessionEvent{domainauth.EventSignedOut}, events)
}

func TestClient_RefreshDoesNotReplaceNewerSignIn(t *testing.T) {
	fake := &fakeGoTrue{users: map[string]string{"a@d.test": "pw", "b@d.test": "pw"}}
	c, entered, release := newGatedClient(t, fake)
	ctx := context.Background()

	_, err := c.SignInWithPassword(ctx, "a@d.test", "pw")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx) }()
	<-entered

	second, err := c.SignInWithPassword(ctx, "b@d.test", "pw")
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, second.AccessToken, c.AccessToken())
}

func TestClient_GetSessionRefreshesExpired(t *testing.T) {
	fake := &fakeGoTrue{users: map[string]string{"a@d.test": "pw"}}
	c := newTestClient(t, fake)
	ctx := context.Background()

	_, err := c.SignInWithPassword(ctx, "a@d.test", "pw")
	require.NoError(t, err)
	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	got, err := c.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	fake.locked(func() { assert.Equal(t, 1, fake.refreshes) })
}

func TestClient_RunRefreshesBeforeExpiry(t *testing.T) {
	fake := &fakeGoTrue{users: map[string]string{"a@d.test": "pw"}, expiresIn: 1}
	c := newTestClient(t, fake)
	c.cfg.RefreshMargin = 900 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	_, err := c.SignInWithPassword(ctx, "a@d.test", "pw")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return fake.refreshes >= 1
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
