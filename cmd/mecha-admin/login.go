package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/bootstrap"
	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/service"
)

type sessionView struct {
	Phase     domainauth.Phase `json:"phase"`
	UserID    string           `json:"user_id,omitempty"`
	Email     string           `json:"email,omitempty"`
	IsAdmin   bool             `json:"is_admin"`
	IsLoading bool             `json:"is_loading"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
}

// viewOf omits tokens.
func viewOf(s domainauth.Snapshot) sessionView {
	v := sessionView{Phase: s.Phase, IsAdmin: s.IsAdmin, IsLoading: s.IsLoading}
	if s.User != nil {
		v.UserID = s.User.ID
		v.Email = s.User.Email
	}
	if s.Session != nil && !s.Session.ExpiresAt.IsZero() {
		exp := s.Session.ExpiresAt.UTC()
		v.ExpiresAt = &exp
	}
	return v
}

type loginReport struct {
	Result  domainauth.LoginResult `json:"result"`
	Session sessionView            `json:"session"`
}

func newLoginCmd(a *app) *cobra.Command {
	var (
		username      string
		passwordStdin bool
		watch         time.Duration
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Run the admin login flow and print the resulting session state.",
		Long: "Verifies the credential, signs in (or signs up) the admin principal, ensures the admin " +
			"grant, and prints the session. With --watch the session is kept alive and the admin " +
			"grant re-checked at that interval until interrupted. The session is signed out on exit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd, passwordStdin, false)
			if err != nil {
				return err
			}
			if err := validateLoginForm(username, password); err != nil {
				return err
			}
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			infra, cleanup, err := bootstrap.OpenInfra(ctx, &cfg, false, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			comps, err := bootstrap.BuildAuth(ctx, bootstrap.AuthDeps{Config: &cfg, Infra: infra, Logger: logger})
			if err != nil {
				return err
			}
			return runLogin(ctx, loginRun{
				provider: bootstrap.NewAdminSession(cfg.Auth, comps, logger),
				runners:  comps.Runners,
				logger:   logger,
			}, loginInput{username: username, password: password, watch: watch}, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
	cmd.Flags().DurationVar(&watch, "watch", 0, "keep the session and re-check the admin grant at this interval")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

type loginRun struct {
	provider *service.AdminSessionProvider
	runners  []bootstrap.Runner
	logger   *slog.Logger
}

type loginInput struct {
	username string
	password string
	watch    time.Duration
}

func runLogin(ctx context.Context, run loginRun, in loginInput, out io.Writer) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	for _, r := range run.runners {
		g.Go(func() error { return r.Run(gctx) })
	}

	if err := run.provider.Start(ctx); err != nil {
		cancel()
		return errors.Join(err, g.Wait())
	}
	defer run.provider.Close()

	res := run.provider.AdminLogin(ctx, in.username, in.password)
	printErr := writeJSON(out, loginReport{Result: res, Session: viewOf(run.provider.Snapshot())})

	var loginErr error
	switch {
	case !res.Success:
		loginErr = fmt.Errorf("login failed: %s", res.Error)
	case printErr == nil && in.watch > 0:
		printErr = watchSession(ctx, run, in.watch, out)
	}

	run.provider.Logout(context.WithoutCancel(ctx))
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		run.logger.Warn("session refresh loop failed", "error", err)
	}
	return errors.Join(loginErr, printErr)
}

// watchSession re-checks the admin grant every interval until ctx is done.
func watchSession(ctx context.Context, run loginRun, interval time.Duration, out io.Writer) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := run.provider.RequireAdmin(ctx); err != nil && ctx.Err() == nil {
			run.logger.Warn("admin grant check failed", "error", err)
		}
		if err := writeJSON(out, viewOf(run.provider.Snapshot())); err != nil {
			return err
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
