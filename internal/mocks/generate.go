// Package mocks provides gomock implementations of the auth ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the port interfaces.
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	idp := mocks.NewMockIdentityProvider(ctrl)
//	idp.EXPECT().SignInWithPassword(gomock.Any(), "ops@aust-mecha.admin", "pw").Return(sess, nil)
package mocks

// Generate mocks for the identity provider, role store, credential verifier and credential store ports.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_provider_mock.go github.com/hasifahmed52-lang/mecha-29-hub/internal/ports IdentityProvider
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=role_store_mock.go github.com/hasifahmed52-lang/mecha-29-hub/internal/ports RoleStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_verifier_mock.go github.com/hasifahmed52-lang/mecha-29-hub/internal/ports CredentialVerifier
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_store_mock.go github.com/hasifahmed52-lang/mecha-29-hub/internal/ports CredentialStore
