package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLock_Exclusive(t *testing.T) {
	lockPath := LockPath(t.TempDir(), "sdlc")

	require.NoError(t, AcquireLock(lockPath, "sdlc"))

	lock, err := ReadLock(lockPath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), lock.PID)
	assert.Equal(t, "sdlc", lock.Kit)

	err = AcquireLock(lockPath, "sdlc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, ReleaseLock(lockPath))
	require.NoError(t, AcquireLock(lockPath, "sdlc"))
	require.NoError(t, ReleaseLock(lockPath))
	require.NoError(t, ReleaseLock(lockPath), "releasing twice is harmless")
	require.NoError(t, ReleaseLock(""))
}

func TestAcquireLock_TakesOverStale(t *testing.T) {
	lockPath := LockPath(t.TempDir(), "sdlc")
	hostname, err := os.Hostname()
	require.NoError(t, err)

	stale := GenerationLock{Holder: "cpt-generate", PID: -1, Hostname: hostname, StartedAt: time.Now(), Kit: "sdlc"}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(lockPath), 0755))
	require.NoError(t, os.WriteFile(lockPath, data, 0644))

	require.NoError(t, AcquireLock(lockPath, "sdlc"))
	lock, err := ReadLock(lockPath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), lock.PID)
}

func TestAcquireLock_RemoteHostCountsAsAlive(t *testing.T) {
	lockPath := LockPath(t.TempDir(), "sdlc")
	remote := GenerationLock{PID: 1, Hostname: "some-other-host.invalid", Kit: "sdlc"}
	data, err := json.Marshal(remote)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(lockPath), 0755))
	require.NoError(t, os.WriteFile(lockPath, data, 0644))

	assert.ErrorIs(t, AcquireLock(lockPath, "sdlc"), ErrLocked)
}

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(context.Background(), filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestHistory_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	h := openTestHistory(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cov, gran := 82.5, 0.41
	runs := []*Run{
		{Command: "validate", Target: "cpt.yaml", StartedAt: base, CompletedAt: base.Add(time.Second), Passed: true},
		{Command: "coverage", Target: "src", StartedAt: base.Add(time.Minute), CompletedAt: base.Add(2 * time.Minute),
			Passed: false, Errors: 1, Coverage: &cov, Granularity: &gran},
		{Command: "validate", Target: "cpt.yaml", StartedAt: base.Add(time.Hour), CompletedAt: base.Add(time.Hour), Errors: 3, Warnings: 2},
	}
	for _, r := range runs {
		require.NoError(t, h.Record(ctx, r))
		assert.NotEmpty(t, r.ID)
	}

	all, err := h.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, runs[2].ID, all[0].ID, "newest first")
	assert.Equal(t, 3, all[0].Errors)
	assert.Equal(t, 2, all[0].Warnings)
	assert.Nil(t, all[0].Coverage)

	assert.Equal(t, "coverage", all[1].Command)
	require.NotNil(t, all[1].Coverage)
	assert.InDelta(t, 82.5, *all[1].Coverage, 1e-9)
	assert.InDelta(t, 0.41, *all[1].Granularity, 1e-9)
	assert.Equal(t, time.Minute, all[1].Duration())
	assert.True(t, all[2].StartedAt.Equal(base))
	assert.True(t, all[2].Passed)

	validates, err := h.Recent(ctx, "validate", 1)
	require.NoError(t, err)
	require.Len(t, validates, 1)
	assert.Equal(t, runs[2].ID, validates[0].ID)
}

func TestHistory_RecordRequiresCommand(t *testing.T) {
	h := openTestHistory(t)
	assert.Error(t, h.Record(context.Background(), &Run{}))
}

func TestHistory_Prune(t *testing.T) {
	ctx := context.Background()
	h := openTestHistory(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, h.Record(ctx, &Run{Command: "validate", StartedAt: at, CompletedAt: at}))
	}

	n, err := h.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = h.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	left, err := h.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.True(t, left[0].StartedAt.Equal(base.Add(4*time.Hour)))
}

func TestMigrator_ApplyAndRollback(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrator(
		Migration{Version: 2, Description: "second", Up: `CREATE TABLE b (id INTEGER)`, Down: `DROP TABLE b`},
		Migration{Version: 1, Description: "first", Up: `CREATE TABLE a (id INTEGER)`, Down: `DROP TABLE a`},
	)
	require.NoError(t, m.Apply(ctx, db))
	require.NoError(t, m.Apply(ctx, db), "re-applying is a no-op")

	v, err := SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	require.NoError(t, m.Rollback(ctx, db))
	v, err = SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	_, err = db.ExecContext(ctx, "INSERT INTO b (id) VALUES (1)")
	assert.Error(t, err, "table b was dropped")

	require.NoError(t, m.Rollback(ctx, db))
	assert.Error(t, m.Rollback(ctx, db))
}
