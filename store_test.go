package dashboard_test

import (
	"context"
	"database/sql"
	"io/fs"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	dashboard "github.com/prism-review/dashboard"
)

func setupStore(t *testing.T) (*dashboard.SessionStore, dashboard.Sessions) {
	t.Helper()

	sqlDB, err := sql.Open(sqliteshim.ShimName, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive for the test
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	db := bun.NewDB(sqlDB, sqlitedialect.New())

	migrations, err := fs.Sub(dashboard.GetMigrationsFS(), "data/sql/migrations")
	require.NoError(t, err)

	var files []string
	err = fs.WalkDir(migrations, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".up.sql") {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)

	for _, file := range files {
		raw, err := fs.ReadFile(migrations, file)
		require.NoError(t, err)
		_, err = db.ExecContext(context.Background(), string(raw))
		require.NoError(t, err)
	}

	sessions := dashboard.NewSessionsRepository(db)
	return dashboard.NewSessionStore(sessions), sessions
}

func TestSessionStoreSaveAndRead(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tok-1"))

	stored, err := store.Read(ctx, "tok-1")
	require.NoError(t, err)
	require.Equal(t, "tok-1", stored)

	missing, err := store.Read(ctx, "tok-unknown")
	require.NoError(t, err)
	require.Empty(t, missing)

	empty, err := store.Read(ctx, "")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestSessionStoreSaveEmptyToken(t *testing.T) {
	store, _ := setupStore(t)
	require.ErrorIs(t, store.Save(context.Background(), ""), dashboard.ErrNoCredential)
}

func TestSessionStoreSaveConvergesOnOneRow(t *testing.T) {
	store, sessions := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tok-dup"))
	require.NoError(t, store.Save(ctx, "tok-dup"))

	record, err := sessions.GetByToken(ctx, "tok-dup")
	require.NoError(t, err)

	want, err := dashboard.SessionRecordID("tok-dup")
	require.NoError(t, err)
	require.Equal(t, want, record.ID)
}

func TestSessionStoreClear(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tok-gone"))
	require.NoError(t, store.Clear(ctx, "tok-gone"))

	stored, err := store.Read(ctx, "tok-gone")
	require.NoError(t, err)
	require.Empty(t, stored)

	// clearing an absent token is not an error
	require.NoError(t, store.Clear(ctx, "tok-gone"))
	require.NoError(t, store.Clear(ctx, ""))
}

func TestSessionStoreCachedUserLifecycle(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, sessions := setupStore(t)
	store = dashboard.NewSessionStore(sessions,
		dashboard.WithStoreClock(func() time.Time { return fixed }))
	ctx := context.Background()

	user := &dashboard.User{ID: 9, Email: "ada@example.com", FullName: "Ada Lovelace"}
	require.NoError(t, store.SaveCachedUser(ctx, "tok-cache", user))

	got, err := store.ReadCachedUser(ctx, "tok-cache")
	require.NoError(t, err)
	require.Equal(t, user, got)

	record, err := sessions.GetByToken(ctx, "tok-cache")
	require.NoError(t, err)
	require.NotNil(t, record.LastValidatedAt)
	require.Equal(t, fixed.Unix(), record.LastValidatedAt.Unix())

	require.NoError(t, store.ClearCachedUser(ctx, "tok-cache"))

	got, err = store.ReadCachedUser(ctx, "tok-cache")
	require.NoError(t, err)
	require.Nil(t, got)

	// the token itself survives the snapshot drop
	stored, err := store.Read(ctx, "tok-cache")
	require.NoError(t, err)
	require.Equal(t, "tok-cache", stored)
}

func TestSessionStoreReadCachedUserMissingToken(t *testing.T) {
	store, _ := setupStore(t)

	got, err := store.ReadCachedUser(context.Background(), "tok-none")
	require.NoError(t, err)
	require.Nil(t, got)
}
