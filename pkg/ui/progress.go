package ui

import (
	"fmt"
	"strings"
	"time"

	"douyindl/pkg/douyin"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// StatusTracker keeps track of listing progress while pages stream in
type StatusTracker struct {
	Pages     int
	Posts     int
	Declared  int
	StartTime time.Time
	now       func() time.Time
}

// NewStatusTracker creates a tracker. declared is the profile's post count,
// zero when unknown.
func NewStatusTracker(declared int) *StatusTracker {
	return &StatusTracker{
		Declared:  declared,
		StartTime: time.Now(),
		now:       time.Now,
	}
}

// Observe records a fetched page
func (st *StatusTracker) Observe(info douyin.PageInfo) {
	st.Pages = info.Page
	st.Posts = info.Total
	if st.Declared > 0 && st.Posts > st.Declared {
		st.Declared = st.Posts
	}
}

// GetFetchProgress returns a progress bar against the declared post count,
// or a plain counter when the count is unknown
func (st *StatusTracker) GetFetchProgress() string {
	if st.Declared <= 0 {
		return fmt.Sprintf("%d posts", st.Posts)
	}

	const width = 20
	filled := st.Posts * width / st.Declared
	if filled > width {
		filled = width
	}

	bar := strings.Repeat(ProgressBar, filled) +
		strings.Repeat(ProgressEmpty, width-filled)

	return fmt.Sprintf("[%s] %d/%d", bar, st.Posts, st.Declared)
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return st.now().Sub(st.StartTime)
}

// GetPostRate returns posts listed per second
func (st *StatusTracker) GetPostRate() float64 {
	elapsed := st.GetElapsedTime().Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(st.Posts) / elapsed
}

// Line formats the status for a single terminal line
func (st *StatusTracker) Line() string {
	return fmt.Sprintf("%s page %d %s", Magenta("[LISTING]"), st.Pages, Yellow(st.GetFetchProgress()))
}
