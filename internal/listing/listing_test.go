package listing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/mediafetch/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const posts = `[
  {"id": "101", "user": "alice", "title": " First ", "published": "2024-05-01T10:00:00",
   "file": {"name": "a.jpg", "path": "/ab/cd/a.jpg"},
   "attachments": [{"name": "b.mp4", "path": "/ef/gh/b.mp4"}, {"name": "", "path": ""}]},
  {"id": 102, "title": "Second",
   "file": {},
   "attachments": [{"url": "https://n2.kemono.su/data/c.zip"}]}
]`

func TestDecode_Posts(t *testing.T) {
	got, err := Decode(strings.NewReader(posts), Options{Site: "coomer.st", UserID: "fallback"})
	require.NoError(t, err)

	want := []models.MediaItem{
		{URL: "https://coomer.st/ab/cd/a.jpg", UserID: "alice", PostID: "101", Title: "First", Published: "2024-05-01T10:00:00"},
		{URL: "https://coomer.st/ef/gh/b.mp4", UserID: "alice", PostID: "101", Title: "First", Published: "2024-05-01T10:00:00"},
		{URL: "https://n2.kemono.su/data/c.zip", UserID: "fallback", PostID: "102", Title: "Second"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_Envelope(t *testing.T) {
	got, err := Decode(strings.NewReader(`{"data":`+posts+`}`), Options{Site: "https://coomer.st/"})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestDecode_SelectAndLimit(t *testing.T) {
	got, err := Decode(strings.NewReader(posts), Options{Site: "coomer.st", PostIDs: []string{"102"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "102", got[0].PostID)

	got, err = Decode(strings.NewReader(posts), Options{Site: "coomer.st", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDecode_FlatItems(t *testing.T) {
	in := `[{"url": "/x/y.png", "user_id": 7, "post_id": "9", "attachment_index": 3},
	        {"url": ""},
	        {"url": "https://kemono.cr/z.gif", "post_id": 10}]`
	got, err := Decode(strings.NewReader(in), Options{Site: "kemono.cr", UserID: "bob"})
	require.NoError(t, err)

	want := []models.MediaItem{
		{URL: "https://kemono.cr/x/y.png", UserID: "7", PostID: "9", AttachmentIndex: 3},
		{URL: "https://kemono.cr/z.gif", UserID: "bob", PostID: "10"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(strings.NewReader(""), Options{})
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Decode(strings.NewReader(`{"posts": []}`), Options{})
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Decode(strings.NewReader(`"hello"`), Options{})
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Decode(strings.NewReader(`[{"id": "1", "file": {"path": "/a.jpg"}}]`), Options{})
	assert.ErrorContains(t, err, "needs a site")

	_, err = Decode(strings.NewReader(`[{"id": {}}]`), Options{})
	assert.Error(t, err)

	got, err := Decode(strings.NewReader(`[]`), Options{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		site, ref, want string
	}{
		{"coomer.st", "/a/b.jpg", "https://coomer.st/a/b.jpg"},
		{"coomer.st", "a/b.jpg", "https://coomer.st/a/b.jpg"},
		{"http://localhost:8080/", "/a.jpg", "http://localhost:8080/a.jpg"},
		{"", "https://x/y.jpg", "https://x/y.jpg"},
		{"coomer.st", "  ", ""},
	}
	for _, tt := range tests {
		got, err := Resolve(tt.site, tt.ref)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s + %s", tt.site, tt.ref)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	require.NoError(t, os.WriteFile(path, []byte(posts), 0o644))

	got, err := Load(path, Options{Site: "coomer.st"})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = Load(filepath.Join(t.TempDir(), "nope.json"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
