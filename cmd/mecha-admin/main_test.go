package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasifahmed52-lang/mecha-29-hub/config"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/data/cryptoutil"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/migrate"
)

func devApp() *app {
	return &app{
		loadConfig: func() (config.AppConfig, error) {
			return config.AppConfig{
				IsDev: true,
				Auth: config.AuthConfig{
					IdentityBackend:  config.IdentityBackendMemory,
					RoleStore:        config.RoleStoreBackendMemory,
					AdminEmailDomain: "d.test",
					PasswordHash:     "argon2id",
					CallTimeout:      5 * time.Second,
					Dev:              config.DevAuthConfig{AdminUsername: "ops", AdminPassword: "correct horse"},
				},
			}, nil
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func execute(t *testing.T, a *app, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidateLoginForm(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"ok", "ops", "pw", nil},
		{"trimmed username empty", "   ", "pw", errUsernameLength},
		{"username too long", strings.Repeat("u", 51), "pw", errUsernameLength},
		{"username at limit", strings.Repeat("ü", 50), "pw", nil},
		{"blank password", "ops", " \t ", errPasswordLength},
		{"password too long", "ops", strings.Repeat("p", 101), errPasswordLength},
		{"password trimmed to limit", "ops", " " + strings.Repeat("p", 100) + " ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateLoginForm(tt.username, tt.password)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReadLine(t *testing.T) {
	got, err := readLine(strings.NewReader("s3cret pw\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret pw", got)

	_, err = readLine(strings.NewReader(""))
	require.Error(t, err)
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := execute(t, devApp(), "pass word\n", "hash-password", "--password-stdin", "--algorithm", "bcrypt")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	algo, err := cryptoutil.DetectAlgorithm(hash)
	require.NoError(t, err)
	assert.Equal(t, cryptoutil.AlgorithmBcrypt, algo)
	ok, err := cryptoutil.Compare(hash, "password")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPasswordCommand_Errors(t *testing.T) {
	_, err := execute(t, devApp(), "pw\n", "hash-password", "--password-stdin", "--algorithm", "md5")
	require.Error(t, err)

	_, err = execute(t, devApp(), "pw\n", "hash-password")
	require.ErrorContains(t, err, "--password-stdin")
}

func TestLoginCommand_MemoryBackend(t *testing.T) {
	out, err := execute(t, devApp(), "correct horse\n", "login", "--username", "ops", "--password-stdin")
	require.NoError(t, err)

	var report struct {
		Result struct {
			Success bool `json:"success"`
		} `json:"result"`
		Session struct {
			Phase   string `json:"phase"`
			Email   string `json:"email"`
			IsAdmin bool   `json:"is_admin"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.True(t, report.Result.Success)
	assert.True(t, report.Session.IsAdmin)
	assert.Equal(t, "authenticated", report.Session.Phase)
	assert.Equal(t, "ops@d.test", report.Session.Email)
	assert.NotContains(t, out, "access_token")
}

func TestLoginCommand_InvalidCredentials(t *testing.T) {
	out, err := execute(t, devApp(), "wrong\n", "login", "--username", "ops", "--password-stdin")
	require.ErrorContains(t, err, "login failed")
	assert.Contains(t, out, `"success": false`)
}

func TestLoginCommand_ValidatesForm(t *testing.T) {
	_, err := execute(t, devApp(), strings.Repeat("p", 101)+"\n", "login", "--username", "ops", "--password-stdin")
	require.ErrorIs(t, err, errPasswordLength)
}

func TestLocalOnlyCommands(t *testing.T) {
	_, err := execute(t, devApp(), "correct horse\n", "resync-identity", "--username", "ops", "--password-stdin")
	require.ErrorIs(t, err, errLocalBackendOnly)

	_, err = execute(t, devApp(), "", "revoke-sessions", "--username", "ops")
	require.ErrorIs(t, err, errLocalBackendOnly)
}

func TestPrintMigrationStatus(t *testing.T) {
	all := []migrate.Migration{{Version: "0001_a"}, {Version: "0002_b"}}
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, printMigrationStatus(cmd, all, all[1:]))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"0001_a", "applied"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"0002_b", "pending"}, strings.Fields(lines[2]))
}

func TestRunMain_UnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	code := runMain(context.Background(), []string{"nope"}, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "unknown command")
}
