package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/sniper?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "sniper", User: "u", Password: "p"}))
	assert.Equal(t, "postgres://u:p@db:6543/sniper?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 6543, Database: "sniper", User: "u", Password: "p", SSLMode: "require"}))
	assert.Equal(t, "postgres://override", DSN(ClientConfig{DSN: "postgres://override", Host: "ignored"}))
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])

	data, err := migrationsFS.ReadFile("migrations/" + names[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS decisions")
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS audit_log")
}

func TestListQuery(t *testing.T) {
	q, args := listQuery("SELECT id FROM decisions", domain.ListOpts{})
	assert.Equal(t, "SELECT id FROM decisions ORDER BY created_at DESC", q)
	assert.Empty(t, args)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q, args = listQuery("\n\tSELECT id FROM decisions", domain.ListOpts{Since: &since, Limit: 10, Offset: 20})
	assert.True(t, strings.HasPrefix(q, "SELECT id FROM decisions WHERE created_at >= $1"))
	assert.True(t, strings.HasSuffix(q, "ORDER BY created_at DESC LIMIT $2 OFFSET $3"))
	assert.Equal(t, []any{since, 10, 20}, args)
}
