package models

import "time"

// RunSummary is what a finished run reports and persists.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Skipped    []string  `json:"skipped"`
	Failed     []string  `json:"failed"`
	Cancelled  []string  `json:"cancelled"`
}

// Clone returns a copy that shares no slices with s.
func (s RunSummary) Clone() RunSummary {
	c := s
	c.Skipped = append([]string(nil), s.Skipped...)
	c.Failed = append([]string(nil), s.Failed...)
	c.Cancelled = append([]string(nil), s.Cancelled...)
	return c
}
