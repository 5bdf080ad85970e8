// -----------------------------------------------------------------------
// Activity Synthesizer - derives feed entries from snapshot diffs
// -----------------------------------------------------------------------

package activity

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/internal/models"
)

// Synthesize diffs two consecutive snapshots of the same job and returns
// zero or more human-readable activity entries, newest rule last. It is a
// pure function: the caller supplies the wall-clock timestamp so entries
// never depend on ambient time.
//
// Each rule triggers independently, so a single diff can produce several
// entries. Callers must never pass snapshots of different jobs.
func Synthesize(prev, incoming *models.JobSnapshot, now time.Time) []models.ActivityEntry {
	if incoming == nil {
		return nil
	}

	var entries []models.ActivityEntry

	if prev == nil {
		return append(entries, newEntry("start", models.ActivityKindStatus, "Job started", now))
	}

	if prev.Status != incoming.Status {
		kind := models.ActivityKindStatus
		if incoming.Status == models.JobStatusFailed {
			kind = models.ActivityKindError
		}
		message := fmt.Sprintf("Status changed from %s to %s", prev.Status, incoming.Status)
		entries = append(entries, newEntry("status", kind, message, now))
	}

	if delta := incoming.Saved - prev.Saved; delta > 0 {
		message := fmt.Sprintf("Saved %s documents", humanize.Comma(int64(delta)))
		entries = append(entries, newEntry("saved", models.ActivityKindInfo, message, now))
	}

	if delta := incoming.Fetched - prev.Fetched; delta > 0 {
		message := fmt.Sprintf("Fetched %s pages", humanize.Comma(int64(delta)))
		entries = append(entries, newEntry("fetched", models.ActivityKindInfo, message, now))
	}

	if delta := incoming.ExtractedCount() - prev.ExtractedCount(); delta > 0 {
		message := fmt.Sprintf("Extracted %s items", humanize.Comma(int64(delta)))
		entries = append(entries, newEntry("extracted", models.ActivityKindInfo, message, now))
	}

	if delta := incoming.FailedItems - prev.FailedItems; delta > 0 {
		message := fmt.Sprintf("%s items failed", humanize.Comma(int64(delta)))
		entries = append(entries, newEntry("failed", models.ActivityKindError, message, now))
	}

	if incoming.LastURL != "" && incoming.LastURL != prev.LastURL {
		message := fmt.Sprintf("Crawling %s", incoming.LastURL)
		entries = append(entries, newEntry("url", models.ActivityKindInfo, message, now))
	}

	if incoming.LastError != "" && incoming.LastError != prev.LastError {
		entries = append(entries, newEntry("error", models.ActivityKindError, incoming.LastError, now))
	}

	return entries
}

func newEntry(prefix string, kind models.ActivityKind, message string, now time.Time) models.ActivityEntry {
	return models.ActivityEntry{
		ID:        common.NewActivityID(prefix, now),
		Kind:      kind,
		Message:   message,
		Timestamp: now,
	}
}
