package transfer

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/mediafetch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a_b_c_d_e_f_g_h_i_", Sanitize(`a<b>c:d"e/f\g|h?i*`))
	assert.Equal(t, "title", Sanitize("  title  "))
	assert.Equal(t, "", Sanitize("   "))
}

func TestShortHash(t *testing.T) {
	h := ShortHash("https://a/b.jpg", 2)
	assert.Len(t, h, 4)
	assert.Equal(t, h, ShortHash("https://a/b.jpg", 2), "deterministic")
	assert.NotEqual(t, ShortHash("https://a/b.jpg", 8), ShortHash("https://a/c.jpg", 8))
	assert.Len(t, ShortHash("x", 64), 64, "capped at digest size")
}

func TestFileName(t *testing.T) {
	it := models.MediaItem{
		URL:       "https://n1.coomer.st/data/ab/cd/photo.jpg?f=x",
		PostID:    "123",
		Title:     "Hello: World",
		Published: "2024-05-01T10:00:00",
	}
	h := ShortHash(it.URL, 2)

	tests := []struct {
		mode NamingMode
		item models.MediaItem
		want string
	}{
		{NameOriginal, it, "photo_2.jpg"},
		{NameOriginal, models.MediaItem{URL: "https://h/.jpg"}, "file_2.jpg"},
		{NamePostHash, it, "Hello_ World_2_" + h + ".jpg"},
		{NamePostHash, models.MediaItem{URL: it.URL, PostID: "9"}, "post_9_2_" + h + ".jpg"},
		{NamePostHash, models.MediaItem{URL: it.URL}, "post_2_" + h + ".jpg"},
		{NamePostID, it, "Hello_ World - 123_2.jpg"},
		{NamePostID, models.MediaItem{URL: it.URL, Title: "t"}, "t_2.jpg"},
		{NameTimePostHash, it, "2024-05-01T10_00_00 - Hello_ World_2_" + h + ".jpg"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("mode%d/%s", tt.mode, tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, FileName(tt.item, 2, tt.mode))
		})
	}
}

func TestFolder(t *testing.T) {
	it := models.MediaItem{URL: "https://h/v.mp4", UserID: "alice", PostID: "42"}
	assert.Equal(t, filepath.Join("/dl", "alice", "videos"), Folder("/dl", it, LayoutDefault))
	assert.Equal(t, filepath.Join("/dl", "alice", "post_42", "videos"), Folder("/dl", it, LayoutPostNumber))

	it.PostID = ""
	assert.Equal(t, filepath.Join("/dl", "alice", "videos"), Folder("/dl", it, LayoutPostNumber))
	assert.Equal(t, filepath.Join("/dl", "unknown", "other"), Folder("/dl", models.MediaItem{URL: "https://h/x"}, LayoutDefault))

	for _, user := range []string{".", "..", " .. "} {
		got := Folder("/dl", models.MediaItem{URL: "https://h/x.jpg", UserID: user}, LayoutDefault)
		assert.Equal(t, filepath.Join("/dl", "unknown", "images"), got, "user %q", user)
	}
}

func TestPlanner_AssignsIndexesPerPost(t *testing.T) {
	p := NewPlanner("/dl", LayoutDefault, NameOriginal)

	a, ok := p.Plan(models.MediaItem{URL: "https://h/a.jpg", UserID: "u", PostID: "1"})
	require.True(t, ok)
	b, _ := p.Plan(models.MediaItem{URL: "https://h/b.jpg", UserID: "u", PostID: "1"})
	c, _ := p.Plan(models.MediaItem{URL: "https://h/c.jpg", UserID: "u", PostID: "2"})
	d, _ := p.Plan(models.MediaItem{URL: "https://h/d.jpg", UserID: "u", PostID: "2", AttachmentIndex: 7})

	assert.Equal(t, 1, a.Index)
	assert.Equal(t, 2, b.Index)
	assert.Equal(t, 1, c.Index)
	assert.Equal(t, 7, d.Index)
	assert.Equal(t, filepath.Join("/dl", "u", "images", "a_1.jpg"), a.FinalPath)
	assert.Equal(t, a.FinalPath+".tmp", a.TempPath)
}

func TestPlanner_DuplicateURL(t *testing.T) {
	p := NewPlanner("/dl", LayoutDefault, NameOriginal)
	it := models.MediaItem{URL: "https://h/a.jpg", UserID: "u", PostID: "1"}

	first, ok := p.Plan(it)
	require.True(t, ok)
	second, ok := p.Plan(it)
	assert.False(t, ok)
	assert.Equal(t, first, second)
}

func TestPlanner_CollisionGetsHashSuffix(t *testing.T) {
	p := NewPlanner("/dl", LayoutDefault, NameOriginal)

	a, _ := p.Plan(models.MediaItem{URL: "https://h/p1/photo.jpg", UserID: "u", PostID: "1"})
	b, _ := p.Plan(models.MediaItem{URL: "https://h/p2/photo.jpg", UserID: "u", PostID: "2"})

	assert.Equal(t, filepath.Join("/dl", "u", "images", "photo_1.jpg"), a.FinalPath)
	want := filepath.Join("/dl", "u", "images", "photo_1_"+ShortHash("https://h/p2/photo.jpg", 4)+".jpg")
	assert.Equal(t, want, b.FinalPath)
}

func TestPlanner_CaseInsensitiveCollision(t *testing.T) {
	p := NewPlanner("/dl", LayoutDefault, NameOriginal)

	a, _ := p.Plan(models.MediaItem{URL: "https://h/x/Photo.jpg", UserID: "u"})
	b, _ := p.Plan(models.MediaItem{URL: "https://h/y/photo.jpg", UserID: "u"})
	assert.NotEqual(t, strings.ToLower(a.TempPath), strings.ToLower(b.TempPath))
}

// Randomized batches with tiny alphabets force many name clashes; every
// distinct URL must still get its own temp path.
func TestPlanner_TempPathsUniqueAcrossRandomBatches(t *testing.T) {
	rng := rand.New(rand.NewSource(20261019))
	exts := []string{".jpg", ".mp4", ".zip", ".pdf", "", ".JPG"}
	titles := []string{"", "t", "T", "a:b", "a_b"}

	for batch := 0; batch < 200; batch++ {
		mode := NamingMode(rng.Intn(4))
		layout := LayoutDefault
		if rng.Intn(2) == 0 {
			layout = LayoutPostNumber
		}
		p := NewPlanner("/dl", layout, mode)

		seen := make(map[string]string)
		n := 1 + rng.Intn(60)
		for i := 0; i < n; i++ {
			it := models.MediaItem{
				URL:             fmt.Sprintf("https://h%d/%d/f%d%s", rng.Intn(2), rng.Intn(4), rng.Intn(3), exts[rng.Intn(len(exts))]),
				UserID:          fmt.Sprintf("u%d", rng.Intn(2)),
				PostID:          []string{"", "1", "2"}[rng.Intn(3)],
				Title:           titles[rng.Intn(len(titles))],
				Published:       "2024",
				AttachmentIndex: rng.Intn(3),
			}
			plan, fresh := p.Plan(it)
			if !fresh {
				continue
			}
			k := strings.ToLower(plan.TempPath)
			if owner, dup := seen[k]; dup {
				t.Fatalf("batch %d: %s and %s share temp path %s", batch, owner, it.URL, plan.TempPath)
			}
			seen[k] = it.URL
			seen[strings.ToLower(plan.FinalPath)] = it.URL
		}
	}
}
