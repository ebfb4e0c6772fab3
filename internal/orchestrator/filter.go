package orchestrator

import "github.com/dmitrijs2005/mediafetch/internal/models"

// MediaFilter holds the per-type download toggles. Documents and other
// kinds are always allowed.
type MediaFilter struct {
	Images   bool
	Videos   bool
	Archives bool
}

func AllMedia() MediaFilter {
	return MediaFilter{Images: true, Videos: true, Archives: true}
}

func (f MediaFilter) Allows(it models.MediaItem) bool {
	switch it.Kind() {
	case models.KindImage:
		return f.Images
	case models.KindVideo:
		return f.Videos
	case models.KindArchive:
		return f.Archives
	default:
		return true
	}
}

// Apply returns the items allowed by f, keeping their order.
func (f MediaFilter) Apply(items []models.MediaItem) []models.MediaItem {
	out := make([]models.MediaItem, 0, len(items))
	for _, it := range items {
		if f.Allows(it) {
			out = append(out, it)
		}
	}
	return out
}
