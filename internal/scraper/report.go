package scraper

import (
	"fmt"
	"io"
	"time"

	"orderscraper/internal/extract"
	"orderscraper/internal/orders"
	"orderscraper/internal/scroll"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Report aggregates everything that happened during a run, including the local
// failures that did not stop it.
type Report struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Since      time.Time

	Restored         bool
	SessionPersisted bool

	Entries          int
	ScrollIterations int
	// ScrollStalls counts scroll steps that timed out without new entries.
	ScrollStalls int
	StopReason   scroll.StopReason

	Extracted      int
	Skipped        []extract.Skip
	DetailFailures int
	// DetailCacheHits counts detail pages read from the page cache.
	DetailCacheHits int
	Merge           orders.MergeStats
	Exported        int

	// Snapshot is the debug file written when the run failed.
	Snapshot string
}

// SkippedEntries counts the cards that could not be parsed at all.
func (r Report) SkippedEntries() int {
	return extract.Report{Skipped: r.Skipped}.SkippedEntries()
}

func (r Report) SkippedItems() int {
	return len(r.Skipped) - r.SkippedEntries()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func (r Report) Render(out io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Run", r.RunID.String()})

	t.AppendRow(table.Row{"Since", r.Since.Format(time.DateOnly)})
	t.AppendRow(table.Row{"Session restored", yesNo(r.Restored)})
	t.AppendRow(table.Row{"Session saved", yesNo(r.SessionPersisted)})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Scroll iterations", fmt.Sprintf("%d (%s)", r.ScrollIterations, r.StopReason)})
	t.AppendRow(table.Row{"Scroll stalls", r.ScrollStalls})
	t.AppendRow(table.Row{"Rendered cards", r.Entries})
	t.AppendRow(table.Row{"Extracted", r.Extracted})
	t.AppendRow(table.Row{"Skipped cards", r.SkippedEntries()})
	t.AppendRow(table.Row{"Skipped items", r.SkippedItems()})
	t.AppendRow(table.Row{"Detail failures", r.DetailFailures})
	t.AppendRow(table.Row{"Detail cache hits", r.DetailCacheHits})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Excluded status", r.Merge.Excluded})
	t.AppendRow(table.Row{"Too old", r.Merge.TooOld})
	t.AppendRow(table.Row{"Duplicates", r.Merge.Duplicate})
	t.AppendRow(table.Row{"Invalid", r.Merge.Invalid})
	t.AppendRow(table.Row{"Exported", r.Exported})
	if r.Snapshot != "" {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Debug snapshot", r.Snapshot})
	}
	if !r.FinishedAt.IsZero() {
		t.AppendRow(table.Row{"Took", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}
