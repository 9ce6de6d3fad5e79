package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

type Summary struct {
	Total         int
	Completed     int
	TotalDuration time.Duration
	TotalBytes    uint64
	Entries       []Entry
}

func Summarize(entries []Entry) Summary {
	s := Summary{
		Total:   len(entries),
		Entries: entries,
	}
	for _, e := range entries {
		if e.State == StateCompleted {
			s.Completed++
		}
		s.TotalDuration += e.TotalElapsed
		s.TotalBytes += e.TotalBytes
	}
	return s
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Completed streams: %d / %d\n", s.Completed, s.Total)
	fmt.Fprintf(&b, "Total duration: %s\n", FormatDuration(s.TotalDuration))
	fmt.Fprintf(&b, "Total size: %s\n", humanize.Bytes(s.TotalBytes))
	for _, e := range s.Entries {
		fmt.Fprintf(&b, "  • %s: %s (%s, %s, %d session(s))\n",
			e.Name, e.Status,
			FormatDuration(e.TotalElapsed), humanize.Bytes(e.TotalBytes),
			e.Sessions,
		)
	}
	return b.String()
}
