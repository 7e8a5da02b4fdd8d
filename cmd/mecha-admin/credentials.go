package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/bootstrap"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/data"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/data/cryptoutil"
	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
)

func newProvisionAdminCmd(a *app) *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "provision-admin",
		Short: "Create or replace an admin credential in admin_users.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd, passwordStdin, true)
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
			hasher, err := bootstrap.PasswordHasher(cfg.Auth)
			if err != nil {
				return err
			}
			cred, err := newCredential(hasher, username, password)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := a.connectDB(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := data.NewAdminCredentialRepo(db).Upsert(ctx, cred); err != nil {
				return err
			}
			cmd.Printf("provisioned admin credential: %s\n", cred.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username (1-50 characters)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// newCredential hashes the canonical (whitespace-free) password.
func newCredential(hasher cryptoutil.Hasher, username, password string) (domainauth.AdminCredential, error) {
	canonical := cryptoutil.CanonicalPassword(password)
	if canonical == "" {
		return domainauth.AdminCredential{}, errors.New("password has no non-whitespace characters")
	}
	hash, err := hasher.Hash(canonical)
	if err != nil {
		return domainauth.AdminCredential{}, err
	}
	return domainauth.AdminCredential{Username: strings.TrimSpace(username), PasswordHash: hash}, nil
}

func newHashPasswordCmd() *cobra.Command {
	var (
		algorithm     string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the stored hash for a password without touching the database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hasher, err := cryptoutil.NewHasher(cryptoutil.Algorithm(strings.ToLower(algorithm)))
			if err != nil {
				return err
			}
			password, err := readPassword(cmd, passwordStdin, true)
			if err != nil {
				return err
			}
			cred, err := newCredential(hasher, "-", password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cred.PasswordHash)
			return err
		},
	}
	cmd.Flags().StringVar(&algorithm, "algorithm", string(cryptoutil.AlgorithmArgon2id), "argon2id or bcrypt")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
	return cmd
}

func newListAdminsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-admins",
		Short: "List provisioned admin usernames.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := a.connectDB(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			names, err := data.NewAdminCredentialRepo(db).Usernames(ctx)
			if err != nil {
				return fmt.Errorf("list admin credentials: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, n := range names {
				if _, err := fmt.Fprintln(out, n); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
