package transfer

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/mediafetch/internal/models"
	"golang.org/x/crypto/blake2b"
)

// NamingMode selects how final file names are derived.
type NamingMode int

const (
	// NameOriginal is "<basename>_<index><ext>".
	NameOriginal NamingMode = iota
	// NamePostHash is "<title>_<index>_<hash><ext>".
	NamePostHash
	// NamePostID is "<title> - <post id>_<index><ext>".
	NamePostID
	// NameTimePostHash is "<published> - <title>_<index>_<hash><ext>".
	NameTimePostHash
)

// Valid reports whether m is a known mode.
func (m NamingMode) Valid() bool {
	return m >= NameOriginal && m <= NameTimePostHash
}

// Layout selects the folder structure under the download root.
type Layout string

const (
	// LayoutDefault is <root>/<user>/<kind>.
	LayoutDefault Layout = "default"
	// LayoutPostNumber is <root>/<user>/post_<post>/<kind>.
	LayoutPostNumber Layout = "post_number"
)

func (l Layout) Valid() bool {
	return l == LayoutDefault || l == LayoutPostNumber
}

var unsafeChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// Sanitize replaces characters that are invalid in file names and trims
// surrounding spaces.
func Sanitize(name string) string {
	return strings.TrimSpace(unsafeChars.ReplaceAllString(name, "_"))
}

// ShortHash returns the first n bytes of the BLAKE2b-256 digest of s in hex.
func ShortHash(s string, n int) string {
	sum := blake2b.Sum256([]byte(s))
	if n > len(sum) {
		n = len(sum)
	}
	return hex.EncodeToString(sum[:n])
}

func postLabel(it models.MediaItem) string {
	if t := Sanitize(it.Title); t != "" {
		return t
	}
	if it.PostID != "" {
		return "post_" + it.PostID
	}
	return "post"
}

// FileName derives the final file name of it for the given attachment index.
func FileName(it models.MediaItem, index int, mode NamingMode) string {
	ext := it.Ext()
	switch mode {
	case NamePostHash:
		return fmt.Sprintf("%s_%d_%s%s", postLabel(it), index, ShortHash(it.URL, 2), ext)
	case NamePostID:
		if it.PostID != "" {
			return fmt.Sprintf("%s - %s_%d%s", postLabel(it), Sanitize(it.PostID), index, ext)
		}
		return fmt.Sprintf("%s_%d%s", postLabel(it), index, ext)
	case NameTimePostHash:
		return fmt.Sprintf("%s - %s_%d_%s%s", Sanitize(it.Published), postLabel(it), index, ShortHash(it.URL, 2), ext)
	default:
		base := Sanitize(it.BaseName())
		if base == "" {
			base = "file"
		}
		return fmt.Sprintf("%s_%d%s", base, index, ext)
	}
}

// Folder returns the destination directory of it.
func Folder(root string, it models.MediaItem, layout Layout) string {
	user := Sanitize(it.UserID)
	switch user {
	case "", ".", "..":
		user = "unknown"
	}
	kind := it.Kind().Folder()
	if layout == LayoutPostNumber && it.PostID != "" {
		return filepath.Join(root, user, "post_"+Sanitize(it.PostID), kind)
	}
	return filepath.Join(root, user, kind)
}
