package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_SortedAndEmbedded(t *testing.T) {
	ms, err := Migrations()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(ms), 3)

	assert.Equal(t, "0001_admin_auth", ms[0].Version)
	assert.Equal(t, "0002_role_functions", ms[1].Version)
	assert.Equal(t, "0003_admin_username_ci", ms[2].Version)
	for i := 1; i < len(ms); i++ {
		assert.Less(t, ms[i-1].Version, ms[i].Version)
	}
}

func TestMigrations_CreateAuthTables(t *testing.T) {
	body, err := migrationsFS.ReadFile("migrations/0001_admin_auth.sql")
	require.NoError(t, err)
	for _, table := range []string{"admin_users", "auth_users", "user_roles"} {
		assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, string(body), "UNIQUE (user_id, role)")
}

func TestMigrations_AdminUsernameCaseInsensitive(t *testing.T) {
	body, err := migrationsFS.ReadFile("migrations/0003_admin_username_ci.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE UNIQUE INDEX IF NOT EXISTS admin_users_username_lower_key ON admin_users (lower(username))")
}
