package database

import (
	"io/fs"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfs "github.com/trezcool/edugest/fs"
)

var (
	indexStmt = regexp.MustCompile(`(?is)CREATE\s+(UNIQUE\s+)?INDEX[^;]*;`)
	// a timestamptz column cast to date depends on the session time zone, Postgres refuses it in indexes
	zoneDependentCast = regexp.MustCompile(`(?i)\b[a-z_]+::date\b`)
)

func TestMigrations_indexExpressionsAreImmutable(t *testing.T) {
	files, err := fs.Glob(appfs.FS, migrationsDir+"/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	var indexes int
	for _, f := range files {
		content, err := fs.ReadFile(appfs.FS, f)
		require.NoError(t, err)
		for _, stmt := range indexStmt.FindAllString(string(content), -1) {
			indexes++
			assert.False(t, zoneDependentCast.MatchString(stmt), "%s: %s", f, stmt)
		}
	}
	assert.NotZero(t, indexes)
}

func TestMigrations_embedded(t *testing.T) {
	content, err := fs.ReadFile(appfs.FS, migrationsDir+"/00001_init.sql")
	require.NoError(t, err)
	assert.Contains(t, string(content), "-- +goose Up")
	assert.Contains(t, string(content), "-- +goose Down")
	assert.Contains(t, string(content), "((scheduled_at AT TIME ZONE 'UTC')::date)")
}
