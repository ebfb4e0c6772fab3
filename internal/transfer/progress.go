package transfer

import "time"

// Progress is a snapshot of one item's transfer.
type Progress struct {
	ItemID     string
	TempPath   string
	Downloaded int64
	Total      int64
	// Speed is bytes per second over the current attempt.
	Speed  float64
	ETA    time.Duration
	Status string
}

// ProgressFunc receives progress snapshots. It is called from worker
// goroutines and must not block for long.
type ProgressFunc func(Progress)

func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Downloaded) * 100 / float64(p.Total)
}

func speedAndETA(done, attemptStart, total int64, elapsed time.Duration) (float64, time.Duration) {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0, 0
	}
	speed := float64(done-attemptStart) / secs
	remaining := total - done
	if speed <= 0 || total <= 0 || remaining <= 0 {
		return speed, 0
	}
	return speed, time.Duration(float64(remaining) / speed * float64(time.Second))
}
