package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T, name string) *DB {
	t.Helper()
	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), name+".db"),
		Name: name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_DefaultsToStandardProfile(t *testing.T) {
	db := newDB(t, "universe")

	assert.Equal(t, ProfileStandard, db.Profile())
	assert.Equal(t, "universe", db.Name())
	assert.True(t, filepath.IsAbs(db.Path()))
	assert.NoError(t, db.QuickCheck(context.Background()))
}

func TestBuildConnectionString(t *testing.T) {
	s := buildConnectionString("/tmp/x.db", ProfileCache)
	assert.Contains(t, s, "/tmp/x.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, s, "synchronous(OFF)")

	s = buildConnectionString("file:mem?mode=memory", ProfileStandard)
	assert.Contains(t, s, "mode=memory&_pragma=journal_mode(WAL)")
	assert.Contains(t, s, "synchronous(NORMAL)")
}

func TestMigrate_AppliesEmbeddedSchemaIdempotently(t *testing.T) {
	db := newDB(t, NameUniverse)

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())

	var count int
	err := db.Conn().QueryRow("SELECT COUNT(*) FROM instruments").Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := newDB(t, "scratch")
	assert.NoError(t, db.Migrate())
}

func TestWithTransaction(t *testing.T) {
	db := newDB(t, NameCache)
	require.NoError(t, db.Migrate())

	_, err := db.Conn().Exec("CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO t (v) VALUES (1)")
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO t (v) VALUES (2)"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec("INSERT INTO t (v) VALUES (3)")
		panic("bad")
	})
	assert.Error(t, err)

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM t").Scan(&count))
	assert.Equal(t, 1, count, "only the committed row remains")

	assert.Error(t, WithTransaction(nil, func(*sql.Tx) error { return nil }))
}

func TestSnapshotAndStats(t *testing.T) {
	db := newDB(t, NameUniverse)
	require.NoError(t, db.Migrate())

	_, err := db.Conn().Exec("INSERT INTO instruments (cusip, class_2, ytm) VALUES ('X', 'FINANCIAL', 0.04)")
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "snap.db")
	require.NoError(t, db.Snapshot(context.Background(), target))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Positive(t, stats.PageCount)
	assert.Positive(t, stats.PageSize)

	assert.NoError(t, db.HealthCheck(context.Background()))
}
