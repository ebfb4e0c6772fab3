// Package listing turns post listings into media items.
//
// Three JSON shapes are accepted: an array of posts, an object whose
// "data" field is that array, and an array of already flat items. Post
// file and attachment paths are resolved against the site.
package listing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/dmitrijs2005/mediafetch/internal/models"
)

var ErrUnknownFormat = errors.New("unrecognized listing format")

// Options narrow and complete what is decoded.
type Options struct {
	// Site is the host used for relative paths, e.g. "coomer.st".
	Site string
	// UserID is used for posts that do not name their user.
	UserID string
	// PostIDs, when set, keeps only these posts.
	PostIDs []string
	// Limit keeps the first Limit posts; 0 keeps all.
	Limit int
}

// ID accepts both JSON strings and numbers.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

type File struct {
	Name string `json:"name"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

func (f File) ref() string {
	switch {
	case f.Path != "":
		return f.Path
	case f.URL != "":
		return f.URL
	default:
		return f.Name
	}
}

type Post struct {
	ID          ID     `json:"id"`
	User        ID     `json:"user"`
	Service     string `json:"service"`
	Title       string `json:"title"`
	Published   string `json:"published"`
	File        *File  `json:"file"`
	Attachments []File `json:"attachments"`
}

// Item is the flat form, one object per media URL.
type Item struct {
	URL             string `json:"url"`
	UserID          ID     `json:"user_id"`
	PostID          ID     `json:"post_id"`
	Title           string `json:"title"`
	Published       string `json:"published"`
	AttachmentIndex int    `json:"attachment_index"`
}

// Resolve makes ref absolute against site. Absolute URLs pass through.
func Resolve(site, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref, nil
	}
	if site == "" {
		return "", fmt.Errorf("relative path %q needs a site", ref)
	}
	base := site
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	b, err := url.Parse(strings.TrimRight(base, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("site %q: %w", site, err)
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("path %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

// Items expands a post into its media items: the main file first, then
// attachments, in listing order.
func (p Post) Items(site, fallbackUser string) ([]models.MediaItem, error) {
	user := string(p.User)
	if user == "" {
		user = fallbackUser
	}
	post := string(p.ID)
	if post == "" {
		post = "unknown_id"
	}

	files := p.Attachments
	if p.File != nil {
		files = append([]File{*p.File}, files...)
	}

	var out []models.MediaItem
	for _, f := range files {
		u, err := Resolve(site, f.ref())
		if err != nil {
			return nil, fmt.Errorf("post %s: %w", post, err)
		}
		if u == "" {
			continue
		}
		out = append(out, models.MediaItem{
			URL:       u,
			UserID:    user,
			PostID:    post,
			Title:     strings.TrimSpace(p.Title),
			Published: p.Published,
		})
	}
	return out, nil
}

// Decode reads a listing from r.
func Decode(r io.Reader, opts Options) ([]models.MediaItem, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrUnknownFormat
	}

	if raw[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}
		if len(env.Data) == 0 {
			return nil, ErrUnknownFormat
		}
		raw = bytes.TrimSpace(env.Data)
	}
	if len(raw) == 0 || raw[0] != '[' {
		return nil, ErrUnknownFormat
	}

	var elems []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	if len(elems) == 0 {
		return nil, nil
	}
	if isFlat(elems[0]) {
		return decodeItems(raw, opts)
	}
	return decodePosts(raw, opts)
}

// Load reads the listing file at path.
func Load(path string, opts Options) ([]models.MediaItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, opts)
}

func isFlat(elem map[string]json.RawMessage) bool {
	_, hasURL := elem["url"]
	_, hasFile := elem["file"]
	_, hasAtt := elem["attachments"]
	return hasURL && !hasFile && !hasAtt
}

func decodePosts(raw []byte, opts Options) ([]models.MediaItem, error) {
	var posts []Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}

	if len(opts.PostIDs) > 0 {
		posts = slices.DeleteFunc(posts, func(p Post) bool {
			return !slices.Contains(opts.PostIDs, string(p.ID))
		})
	}
	if opts.Limit > 0 && len(posts) > opts.Limit {
		posts = posts[:opts.Limit]
	}

	var out []models.MediaItem
	for _, p := range posts {
		items, err := p.Items(opts.Site, opts.UserID)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

func decodeItems(raw []byte, opts Options) ([]models.MediaItem, error) {
	var flat []Item
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}

	out := make([]models.MediaItem, 0, len(flat))
	for i, it := range flat {
		u, err := Resolve(opts.Site, it.URL)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if u == "" {
			continue
		}
		if len(opts.PostIDs) > 0 && !slices.Contains(opts.PostIDs, string(it.PostID)) {
			continue
		}
		user := string(it.UserID)
		if user == "" {
			user = opts.UserID
		}
		out = append(out, models.MediaItem{
			URL:             u,
			UserID:          user,
			PostID:          string(it.PostID),
			Title:           strings.TrimSpace(it.Title),
			Published:       it.Published,
			AttachmentIndex: max(it.AttachmentIndex, 0),
		})
	}
	return out, nil
}
