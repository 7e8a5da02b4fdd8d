package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hasifahmed52-lang/mecha-29-hub/config"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/bootstrap"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/data"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/data/cryptoutil"
	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
)

var errLocalBackendOnly = errors.New("this command requires AUTH_IDENTITY_BACKEND=local")

// newResyncIdentityCmd repairs an account whose identity password no longer
// matches its admin credential, which otherwise fails login as desynced.
func newResyncIdentityCmd(a *app) *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "resync-identity",
		Short: "Set the local identity password of an admin to its current credential.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			if cfg.Auth.IdentityBackend != config.IdentityBackendLocal {
				return errLocalBackendOnly
			}
			password, err := readPassword(cmd, passwordStdin, false)
			if err != nil {
				return err
			}
			if err := validateLoginForm(username, password); err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := a.connectDB(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			deps := bootstrap.AuthDeps{Config: &cfg, Infra: bootstrap.Infra{DB: db}, Logger: logger}
			verifier, err := bootstrap.BuildVerifier(deps)
			if err != nil {
				return err
			}
			valid, err := verifier.Verify(ctx, username, password)
			if err != nil {
				return fmt.Errorf("verify admin credential: %w", err)
			}
			if !valid {
				return errors.New("password does not match the admin credential")
			}

			users := data.NewIdentityUserRepo(db)
			email := domainauth.SyntheticEmail(username, cfg.Auth.AdminEmailDomain)
			user, err := users.GetByEmail(ctx, email)
			if errors.Is(err, data.ErrIdentityNotFound) {
				cmd.Printf("no identity for %s yet; it is created on first login\n", email)
				return nil
			}
			if err != nil {
				return err
			}

			hasher, err := bootstrap.PasswordHasher(cfg.Auth)
			if err != nil {
				return err
			}
			hash, err := hasher.Hash(cryptoutil.CanonicalPassword(password))
			if err != nil {
				return err
			}
			if err := users.UpdatePassword(ctx, user.ID, hash); err != nil {
				return err
			}
			cmd.Printf("identity %s resynced\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newRevokeSessionsCmd(a *app) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "revoke-sessions",
		Short: "Delete every local session of an admin and notify running processes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			if cfg.Auth.IdentityBackend != config.IdentityBackendLocal {
				return errLocalBackendOnly
			}

			ctx := cmd.Context()
			infra, cleanup, err := bootstrap.OpenInfra(ctx, &cfg, true, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			comps, err := bootstrap.BuildAuth(ctx, bootstrap.AuthDeps{Config: &cfg, Infra: infra, Logger: logger})
			if err != nil {
				return err
			}
			email := domainauth.SyntheticEmail(username, cfg.Auth.AdminEmailDomain)
			user, err := data.NewIdentityUserRepo(infra.DB).GetByEmail(ctx, email)
			if err != nil {
				return fmt.Errorf("look up %s: %w", email, err)
			}
			n, err := comps.Local.RevokeAll(ctx, user.ID.String())
			if err != nil {
				return err
			}
			cmd.Printf("revoked %d session(s) for %s\n", n, email)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
