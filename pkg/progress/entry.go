package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Entry is the externally visible progress of one target.
//
// Elapsed, Bytes and Percent describe the current (or the last) session;
// TotalElapsed and TotalBytes accumulate over all sessions of the target.
type Entry struct {
	Name         string
	Status       string
	State        State
	Elapsed      time.Duration
	Bytes        uint64
	Percent      float64
	Resolution   string
	Sessions     int
	OutputPath   string
	TotalElapsed time.Duration
	TotalBytes   uint64
	UpdatedAt    time.Time
}

func (e Entry) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%s: %s", e.Name, e.Status))
	if e.Elapsed > 0 || e.Bytes > 0 {
		parts = append(parts, FormatDuration(e.Elapsed), humanize.Bytes(e.Bytes))
	}
	if e.Percent > 0 {
		parts = append(parts, fmt.Sprintf("%.0f%%", e.Percent))
	}
	if e.Resolution != "" {
		parts = append(parts, e.Resolution)
	}
	return strings.Join(parts, " | ")
}

// Percent returns the share of limit that elapsed covers, capped at 100.
// It returns zero if there is no limit.
func Percent(elapsed, limit time.Duration) float64 {
	if limit <= 0 {
		return 0
	}
	p := float64(elapsed) / float64(limit) * 100
	if p > 100 {
		return 100
	}
	return p
}

func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
