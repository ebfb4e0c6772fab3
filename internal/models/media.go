// Package models holds the data types shared by the download engine.
package models

import (
	"net/url"
	"path"
	"strings"
	"time"
)

// MediaItem is one remote file discovered by a listing source. It is
// immutable once submitted.
//
// Title and Published are optional; the zero value means absent.
// AttachmentIndex 0 asks the planner to number the item within its post.
type MediaItem struct {
	URL             string
	UserID          string
	PostID          string
	Title           string
	Published       string
	AttachmentIndex int
}

// Ext returns the lowercased extension of the URL path, including the dot.
func (m MediaItem) Ext() string {
	return strings.ToLower(path.Ext(m.urlPath()))
}

// Kind classifies the item by its extension.
func (m MediaItem) Kind() MediaKind {
	return KindFromExt(m.Ext())
}

// BaseName is the last path element without its extension.
func (m MediaItem) BaseName() string {
	base := path.Base(m.urlPath())
	if base == "/" || base == "." {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

func (m MediaItem) urlPath() string {
	u, err := url.Parse(m.URL)
	if err != nil {
		return ""
	}
	p, err := url.PathUnescape(u.Path)
	if err != nil {
		return u.Path
	}
	return p
}

// MediaKind groups files into destination folders.
type MediaKind int

const (
	KindOther MediaKind = iota
	KindImage
	KindVideo
	KindDocument
	KindArchive
)

var kindByExt = map[string]MediaKind{
	".mp4": KindVideo, ".mkv": KindVideo, ".webm": KindVideo, ".mov": KindVideo,
	".avi": KindVideo, ".flv": KindVideo, ".wmv": KindVideo, ".m4v": KindVideo,

	".jpg": KindImage, ".jpeg": KindImage, ".png": KindImage, ".gif": KindImage,
	".bmp": KindImage, ".tiff": KindImage,

	".pdf": KindDocument, ".doc": KindDocument, ".docx": KindDocument, ".xls": KindDocument,
	".xlsx": KindDocument, ".ppt": KindDocument, ".pptx": KindDocument,

	".zip": KindArchive, ".rar": KindArchive, ".7z": KindArchive, ".tar": KindArchive,
	".gz": KindArchive,
}

// KindFromExt maps a lowercased extension (with dot) to a MediaKind.
func KindFromExt(ext string) MediaKind {
	if k, ok := kindByExt[ext]; ok {
		return k
	}
	return KindOther
}

// Folder is the directory name used for files of this kind.
func (k MediaKind) Folder() string {
	switch k {
	case KindImage:
		return "images"
	case KindVideo:
		return "videos"
	case KindDocument:
		return "documents"
	case KindArchive:
		return "compressed"
	default:
		return "other"
	}
}

func (k MediaKind) String() string {
	return k.Folder()
}

// CompletedRecord marks a URL as fully downloaded to Path.
type CompletedRecord struct {
	URL         string
	Path        string
	Size        int64
	UserID      string
	PostID      string
	CompletedAt time.Time
}

// PartialRecord tracks an interrupted transfer. Total is nil when the server
// never declared a length.
type PartialRecord struct {
	URL        string
	TempPath   string
	Downloaded int64
	Total      *int64
	UserID     string
	PostID     string
	UpdatedAt  time.Time
}

// TotalOrZero returns the declared total, or 0 when unknown.
func (p PartialRecord) TotalOrZero() int64 {
	if p.Total == nil {
		return 0
	}
	return *p.Total
}
