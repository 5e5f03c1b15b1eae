package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/opbuilder/internal/types"
)

// openTestDB returns a migrated SQLite database in a temp directory.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, MigrateUp(ctx, db))
	return db
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url    string
		driver string
		dsn    string
	}{
		{"sqlite://data/x.db", "sqlite3", "data/x.db?_busy_timeout=5000&_foreign_keys=on"},
		{"sqlite:///tmp/x.db", "sqlite3", "/tmp/x.db?_busy_timeout=5000&_foreign_keys=on"},
		{"sqlite:///tmp/x.db?_foreign_keys=off", "sqlite3", "/tmp/x.db?_busy_timeout=5000&_foreign_keys=off"},
		{"postgres://ob@localhost/ob", "postgres", "postgres://ob@localhost/ob"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			driver, dsn, err := parseURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.driver, driver)
			assert.Equal(t, tt.dsn, dsn)
		})
	}

	for _, bad := range []string{"mysql://x", "sqlite://", "::"} {
		_, _, err := parseURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestMigrations(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	// Second run is a no-op
	require.NoError(t, MigrateUp(ctx, db))

	statuses, err := MigrateStatus(ctx, db)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		assert.True(t, s.Applied, s.ID)
		assert.NotNil(t, s.AppliedAt, s.ID)
	}

	_, err = db.Exec("UPDATE migrations SET checksum = 'tampered'")
	require.NoError(t, err)
	assert.ErrorContains(t, MigrateUp(ctx, db), "checksum mismatch")
}

func TestMigrateStatus_Pending(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "fresh.db"))
	require.NoError(t, err)
	defer db.Close()

	statuses, err := MigrateStatus(ctx, db)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	assert.False(t, statuses[0].Applied)
	assert.Nil(t, statuses[0].AppliedAt)
}

func TestSplitStatements(t *testing.T) {
	script := "-- header\nCREATE TABLE a (x INT);\n\n-- note\nCREATE TABLE b (y INT);\n"
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE TABLE b (y INT)"}, splitStatements(script))
}

func TestDefinitionStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewDefinitionStore(openTestDB(t))
	require.NoError(t, err)

	id, err := store.Save(ctx, "prod", map[string]any{
		"threshold": 10,
		"networks":  []any{"10.0.0.0/8"},
		"owner":     map[string]any{"team": "soc"},
	})
	require.NoError(t, err)
	_, err = types.ParseDefinitionSetID(string(id))
	require.NoError(t, err)

	m, err := store.Load(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, []string{"networks", "owner", "threshold"}, m.Names())

	v, err := m.Get("threshold")
	require.NoError(t, err)
	assert.Equal(t, float64(10), v, "values reload with JSON shapes")

	owner, err := m.Get("owner")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"team": "soc"}, owner)

	set, err := store.Get(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, id, set.ID)
	assert.False(t, set.Created().IsZero())
}

func TestDefinitionStore_Replace(t *testing.T) {
	ctx := context.Background()
	store, err := NewDefinitionStore(openTestDB(t))
	require.NoError(t, err)

	first, err := store.Save(ctx, "prod", map[string]any{"a": "1", "b": "2"})
	require.NoError(t, err)
	second, err := store.Save(ctx, "prod", map[string]any{"c": "3"})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	m, err := store.Load(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, m.Names())

	_, err = store.Save(ctx, "dev", nil)
	require.NoError(t, err)

	sets, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "dev", sets[0].Name)
	assert.Equal(t, 0, sets[0].Size)
	assert.Equal(t, "prod", sets[1].Name)
	assert.Equal(t, 1, sets[1].Size)
}

func TestDefinitionStore_Errors(t *testing.T) {
	ctx := context.Background()
	store, err := NewDefinitionStore(openTestDB(t))
	require.NoError(t, err)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrDefinitionSetNotFound)

	_, err = store.Save(ctx, " ", map[string]any{"a": 1})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = store.Save(ctx, "prod", map[string]any{"a.b": 1})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = store.Save(ctx, "prod", map[string]any{"ch": make(chan int)})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = store.Load(ctx, "prod")
	assert.ErrorIs(t, err, types.ErrDefinitionSetNotFound, "failed saves leave nothing behind")
}
