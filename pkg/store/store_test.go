package store

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/railyard/pkg/catalog"
	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/geom"
	"github.com/chazu/railyard/pkg/layout"
)

var cat = catalog.New()

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "railyard.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestStore returns a store whose clock advances one second per call.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(openTestDB(t), nil)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func sampleLayout(t *testing.T) *layout.Layout {
	t.Helper()
	l := layout.New(cat, layout.DefaultOptions())
	a, err := l.PlacePiece("track.straight_168mm", geom.Identity)
	require.NoError(t, err)
	_, err = l.Extend(a.ID, catalog.ConnB, "track.switch_left", catalog.ConnCommon)
	require.NoError(t, err)
	return l
}

func encode(t *testing.T, doc layout.Document) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, layout.Encode(&buf, doc))
	return buf.String()
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db, nil))

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 2, n)

	var table int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='layouts'").Scan(&table))
	assert.Equal(t, 1, table)
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	l := sampleLayout(t)

	rec, err := s.SaveLayout(ctx, "yard", l)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "yard", rec.Name)
	assert.Equal(t, 1, rec.Version)
	assert.Equal(t, 2, rec.PieceCount)
	// Straight plus both switch routes.
	assert.Greater(t, rec.TotalLengthM, 0.168*2)

	for _, ref := range []string{rec.ID, "yard"} {
		doc, got, err := s.Load(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, rec, got)
		assert.JSONEq(t, encode(t, l.Export()), encode(t, doc))
	}
}

func TestLoadInto(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	l := sampleLayout(t)
	_, err := s.SaveLayout(ctx, "yard", l)
	require.NoError(t, err)

	fresh := layout.New(cat, layout.DefaultOptions())
	report, err := s.LoadInto(ctx, "yard", fresh)
	require.NoError(t, err)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, l.Stats(), fresh.Stats())
}

func TestSaveOverwritesByName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.SaveLayout(ctx, "yard", layout.New(cat, layout.DefaultOptions()))
	require.NoError(t, err)
	assert.Equal(t, 0, first.PieceCount)
	assert.Equal(t, 1, first.Version)

	second, err := s.SaveLayout(ctx, "yard", sampleLayout(t))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, 2, second.PieceCount)
	assert.Equal(t, 2, second.Version)

	third, err := s.SaveLayout(ctx, "yard", sampleLayout(t))
	require.NoError(t, err)
	assert.Equal(t, 3, third.Version)

	other, err := s.SaveLayout(ctx, "oval", sampleLayout(t))
	require.NoError(t, err)
	assert.Equal(t, 1, other.Version)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSaveRejectsEmptyName(t *testing.T) {
	_, err := newTestStore(t).Save(context.Background(), "", layout.Document{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, name := range []string{"a", "b", "c"} {
		_, err := s.SaveLayout(ctx, name, sampleLayout(t))
		require.NoError(t, err)
	}
	_, err := s.SaveLayout(ctx, "a", sampleLayout(t))
	require.NoError(t, err)

	all, err := s.List(ctx)
	require.NoError(t, err)
	names := make([]string, len(all))
	for i, r := range all {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"a", "c", "b"}, names)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	rec, err := s.SaveLayout(ctx, "yard", sampleLayout(t))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, rec.ID))

	_, _, err = s.Load(ctx, "yard")
	assert.True(t, errors.IsNotFound(err), "got %v", err)
	err = s.Delete(ctx, "yard")
	assert.True(t, errors.IsNotFound(err), "got %v", err)
}

func TestMissingLayout(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.True(t, errors.IsNotFound(err))
	_, err = s.LoadInto(context.Background(), "nope", layout.New(cat, layout.DefaultOptions()))
	assert.True(t, errors.IsNotFound(err))
}

func TestCorruptDocument(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	rec, err := s.SaveLayout(ctx, "yard", sampleLayout(t))
	require.NoError(t, err)

	_, err = s.db.Exec("UPDATE layouts SET document = '{not json' WHERE id = ?", rec.ID)
	require.NoError(t, err)

	_, _, err = s.Load(ctx, "yard")
	assert.True(t, errors.Is(err, layout.ErrCorruptDocument), "got %v", err)
}

func TestIsDatabaseClosed(t *testing.T) {
	assert.False(t, IsDatabaseClosed(nil))
	assert.True(t, IsDatabaseClosed(errors.Wrap(ErrDatabaseClosed, "query")))

	db := openTestDB(t)
	s := New(db, nil)
	require.NoError(t, db.Close())
	_, err := s.List(context.Background())
	assert.True(t, IsDatabaseClosed(err), "got %v", err)
}
