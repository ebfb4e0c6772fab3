package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE metadata (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func TestSetAndGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "last_run_id", []byte("r-1")))
	require.NoError(t, r.Set(ctx, "last_run_id", []byte("r-2")))

	v, err := r.Get(ctx, "last_run_id")
	require.NoError(t, err)
	assert.Equal(t, []byte("r-2"), v)
}

func TestGet_MissingKey(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestKeys_MatchesPrefixLiterally(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	for _, k := range []string{"run:b", "run:a", "last_run_id", "runx", "run_%"} {
		require.NoError(t, r.Set(ctx, k, []byte("v")))
	}

	keys, err := r.Keys(ctx, "run:")
	require.NoError(t, err)
	assert.Equal(t, []string{"run:a", "run:b"}, keys)

	keys, err = r.Keys(ctx, "run_")
	require.NoError(t, err)
	assert.Equal(t, []string{"run_%"}, keys)

	keys, err = r.Keys(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestDelete(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, r.Set(ctx, k, []byte{1}))
	}

	require.NoError(t, r.Delete(ctx))
	require.NoError(t, r.Delete(ctx, "a", "c", "missing"))

	keys, err := r.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}

func TestClosedDB_ErrorsAreWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := r.Get(ctx, "k")
	require.ErrorContains(t, err, `get metadata "k"`)

	require.ErrorContains(t, r.Set(ctx, "k", []byte("v")), `set metadata "k"`)
	require.ErrorContains(t, r.Delete(ctx, "k", "j"), "delete 2 metadata keys")

	_, err = r.Keys(ctx, "run:")
	require.ErrorContains(t, err, `list metadata keys "run:"`)
}

func TestJSONHelpers(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	type summary struct {
		Total  int      `json:"total"`
		Failed []string `json:"failed"`
	}

	var got summary
	ok, err := GetJSON(ctx, r, "run:x", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetJSON(ctx, r, "run:x", summary{Total: 3, Failed: []string{"https://a/1"}}))

	ok, err = GetJSON(ctx, r, "run:x", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, summary{Total: 3, Failed: []string{"https://a/1"}}, got)

	require.NoError(t, r.Set(ctx, "run:bad", []byte("{")))
	_, err = GetJSON(ctx, r, "run:bad", &got)
	require.ErrorContains(t, err, "decode metadata[run:bad]")
}
