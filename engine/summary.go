package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Summary counts what one run did. Every non-fatal problem lands in one of
// the error counters and in the log.
type Summary struct {
	Scanned    int
	Skipped    int
	Duplicates int
	Candidates int

	Batches       int
	DoneBatches   int
	FailedBatches int

	Rewritten    int
	BytesWritten int64
	ItemErrors   int
	Anomalies    int
	FileErrors   int

	Aborted bool
	Elapsed time.Duration
	started time.Time
}

func (s *Summary) finish() *Summary {
	s.Elapsed = time.Since(s.started)
	return s
}

// OK reports whether every candidate was rewritten.
func (s *Summary) OK() bool {
	return !s.Aborted && s.Rewritten == s.Candidates && s.FileErrors == 0
}

func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s torrents scanned, %s to convert in %s batches",
		humanize.Comma(int64(s.Scanned)), humanize.Comma(int64(s.Candidates)), humanize.Comma(int64(s.Batches)))
	if s.FailedBatches > 0 {
		fmt.Fprintf(&b, " (%d abandoned)", s.FailedBatches)
	}
	fmt.Fprintf(&b, "; %s rewritten (%s)", humanize.Comma(int64(s.Rewritten)), humanize.Bytes(uint64(s.BytesWritten)))
	for _, c := range []struct {
		n    int
		what string
	}{
		{s.ItemErrors, "lookup errors"},
		{s.FileErrors, "file errors"},
		{s.Anomalies, "anomalies"},
		{s.Skipped, "skipped"},
		{s.Duplicates, "duplicates"},
	} {
		if c.n > 0 {
			fmt.Fprintf(&b, ", %d %s", c.n, c.what)
		}
	}
	if s.Aborted {
		b.WriteString(", ABORTED")
	}
	fmt.Fprintf(&b, " in %s", s.Elapsed.Round(time.Millisecond))
	return b.String()
}
