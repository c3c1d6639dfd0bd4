package handlers

import (
	"errors"
	"time"

	"github.com/benovo-app/benovo-api/models"
)

// errCampaignFull is returned when every candidate payout month is taken.
// The caller maps it to a 409.
var errCampaignFull = errors.New("no free payout month left in this campaign")

// truncateToMonth normalizes a date to the first of its calendar month in UTC.
// Allocated months are only ever compared at this granularity.
func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// nextFreeMonth picks the payout month for a newly accepted member: candidate
// months are start + i months in ascending i, and the first one not already
// held by an existing member wins. With maxMembers set the scan is bounded by
// it; unbounded campaigns scan one slot past the current roster size, which
// always contains a free month. When every candidate is taken the campaign is
// full, which is an explicit error here rather than a silent collision.
func nextFreeMonth(start time.Time, maxMembers int, existing []models.CampaignMember) (time.Time, error) {
	taken := make(map[time.Time]struct{}, len(existing))
	for _, m := range existing {
		if m.AllocatedMonth != nil {
			taken[truncateToMonth(*m.AllocatedMonth)] = struct{}{}
		}
	}

	base := truncateToMonth(start)
	limit := maxMembers
	if limit <= 0 {
		limit = len(existing) + 1
	}
	for i := 0; i < limit; i++ {
		candidate := base.AddDate(0, i, 0)
		if _, ok := taken[candidate]; !ok {
			return candidate, nil
		}
	}
	return time.Time{}, errCampaignFull
}

// monthBounds returns the [start, end) window of t's calendar month in UTC
func monthBounds(t time.Time) (time.Time, time.Time) {
	start := truncateToMonth(t)
	return start, start.AddDate(0, 1, 0)
}

// sameMonth reports whether two dates fall in the same calendar month
func sameMonth(a, b time.Time) bool {
	return truncateToMonth(a).Equal(truncateToMonth(b))
}

// payoutComplete is the completion rule for a recipient's allocated month:
// one contribution row per other member. Rows are counted raw, so repeat
// payments from the same contributor also move the tally.
func payoutComplete(contributionCount, memberCount int64) bool {
	return contributionCount >= memberCount-1
}
