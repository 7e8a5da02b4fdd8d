// Package postgrest is a role store that calls the has_role and
// assign_admin_role database functions through a PostgREST endpoint.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

var _ ports.RoleStore = (*RoleStore)(nil)

// ErrUnsupportedRole is returned when assigning a role that has no RPC.
var ErrUnsupportedRole = errors.New("postgrest: only the admin role can be assigned")

// Options configures NewRoleStore.
type Options struct {
	// URL is the REST base, e.g. https://xyz.supabase.co/rest/v1.
	URL    string
	APIKey string
	// Bearer returns the caller's access token so row-level security applies.
	// The API key is used when it is nil or returns "".
	Bearer func() string
}

// RoleStore implements ports.RoleStore over PostgREST RPC.
type RoleStore struct {
	opts Options
	http *http.Client
}

// NewRoleStore creates a RoleStore. A nil client uses a 30s-timeout client.
func NewRoleStore(opts Options, client *http.Client) (*RoleStore, error) {
	opts.URL = strings.TrimRight(opts.URL, "/")
	if opts.URL == "" {
		return nil, errors.New("postgrest URL is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RoleStore{opts: opts, http: client}, nil
}

func (s *RoleStore) HasRole(ctx context.Context, userID string, role domainauth.Role) (bool, error) {
	body, err := s.rpc(ctx, "has_role", map[string]string{"_user_id": userID, "_role": string(role)})
	if err != nil {
		return false, err
	}
	var ok bool
	if err := json.Unmarshal(body, &ok); err != nil {
		return false, fmt.Errorf("decode has_role result: %w", err)
	}
	return ok, nil
}

func (s *RoleStore) AssignRole(ctx context.Context, userID, username string, role domainauth.Role) error {
	if role != domainauth.RoleAdmin {
		return ErrUnsupportedRole
	}
	_, err := s.rpc(ctx, "assign_admin_role", map[string]string{"p_user_id": userID, "p_username": username})
	return err
}

func (s *RoleStore) rpc(ctx context.Context, fn string, args any) ([]byte, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal %s args: %w", fn, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.URL+"/rpc/"+fn, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", fn, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.opts.APIKey != "" {
		req.Header.Set("apikey", s.opts.APIKey)
	}
	if token := s.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", fn, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", fn, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("rpc %s: status %d: %s", fn, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (s *RoleStore) bearer() string {
	if s.opts.Bearer != nil {
		if t := s.opts.Bearer(); t != "" {
			return t
		}
	}
	return s.opts.APIKey
}
