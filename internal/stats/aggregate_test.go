package stats

import (
	"testing"
	"time"
)

func recordAt(ts time.Time) CommitRecord {
	return CommitRecord{AuthoredAt: ts.UTC().Format(time.RFC3339)}
}

func TestAggregateActivityWindows(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	// Window boundaries are inclusive: a commit exactly N days old still
	// counts toward the N-day window.
	records := []CommitRecord{
		recordAt(now),
		recordAt(now.AddDate(0, 0, -7)),
		recordAt(now.AddDate(0, 0, -7).Add(-time.Second)),
		recordAt(now.AddDate(0, 0, -30)),
		recordAt(now.AddDate(0, 0, -31)),
		recordAt(now.AddDate(0, 0, -365)),
		recordAt(now.AddDate(0, 0, -366)),
	}

	activity := aggregateActivity(records, now)

	if activity.ValidRecords != 7 {
		t.Fatalf("ValidRecords = %d, want 7", activity.ValidRecords)
	}
	if activity.Pattern.LastWeek != 2 {
		t.Fatalf("LastWeek = %d, want 2", activity.Pattern.LastWeek)
	}
	if activity.Pattern.LastMonth != 4 {
		t.Fatalf("LastMonth = %d, want 4", activity.Pattern.LastMonth)
	}
	if activity.Pattern.LastYear != 6 {
		t.Fatalf("LastYear = %d, want 6", activity.Pattern.LastYear)
	}
}

func TestAggregateActivityHistogramShape(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 23, 59, 0, 0, time.UTC)
	records := []CommitRecord{
		recordAt(now.Add(-time.Hour)),
		recordAt(now.Add(-time.Hour)),
		recordAt(now.AddDate(0, 0, -29)),
		// Outside the histogram window but inside the year window.
		recordAt(now.AddDate(0, 0, -40)),
	}

	activity := aggregateActivity(records, now)

	if len(activity.Recent) != 30 {
		t.Fatalf("len(Recent) = %d, want exactly 30 buckets", len(activity.Recent))
	}
	for i := 1; i < len(activity.Recent); i++ {
		if activity.Recent[i].Date <= activity.Recent[i-1].Date {
			t.Fatalf("Recent dates not strictly ascending at %d: %q <= %q",
				i, activity.Recent[i].Date, activity.Recent[i-1].Date)
		}
	}
	if first := activity.Recent[0].Date; first != "2026-08-02" {
		t.Fatalf("first bucket = %q, want 2026-08-02", first)
	}
	if last := activity.Recent[29].Date; last != "2026-08-31" {
		t.Fatalf("last bucket = %q, want 2026-08-31", last)
	}

	if activity.Recent[29].CommitCount != 2 {
		t.Fatalf("today's bucket = %d, want 2", activity.Recent[29].CommitCount)
	}
	if activity.Recent[0].CommitCount != 1 {
		t.Fatalf("oldest bucket = %d, want 1", activity.Recent[0].CommitCount)
	}

	total := 0
	for _, day := range activity.Recent {
		total += day.CommitCount
	}
	if total != 3 {
		t.Fatalf("histogram total = %d, want 3 (out-of-window commit excluded)", total)
	}
}

func TestAggregateActivityExcludesBadTimestamps(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	records := []CommitRecord{
		recordAt(now.Add(-time.Hour)),
		{AuthoredAt: "not-a-timestamp"},
		{AuthoredAt: ""},
		{AuthoredAt: "2026-13-45T99:00:00Z"},
		recordAt(now.Add(time.Hour)),
		recordAt(now.AddDate(0, 0, 2)),
	}

	activity := aggregateActivity(records, now)

	if activity.ValidRecords != 1 {
		t.Fatalf("ValidRecords = %d, want 1", activity.ValidRecords)
	}
	if activity.Pattern.LastWeek != 1 || activity.Pattern.LastYear != 1 {
		t.Fatalf("Pattern = %+v, want exactly one counted commit", activity.Pattern)
	}
}

func TestAggregateActivityEmptyInput(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	activity := aggregateActivity(nil, now)

	if activity.ValidRecords != 0 {
		t.Fatalf("ValidRecords = %d, want 0", activity.ValidRecords)
	}
	if activity.Pattern != (CommitPattern{}) {
		t.Fatalf("Pattern = %+v, want zeros", activity.Pattern)
	}
	if len(activity.Recent) != 30 {
		t.Fatalf("len(Recent) = %d, want 30 zero buckets", len(activity.Recent))
	}
	for _, day := range activity.Recent {
		if day.CommitCount != 0 {
			t.Fatalf("bucket %q = %d, want 0", day.Date, day.CommitCount)
		}
	}
}

func TestLanguageHistogram(t *testing.T) {
	t.Parallel()

	repos := []RepositoryRef{
		{FullName: "a/one", PrimaryLanguage: "Go"},
		{FullName: "a/two", PrimaryLanguage: "Go"},
		{FullName: "a/three", PrimaryLanguage: "Rust"},
		{FullName: "a/four"},
	}

	got := languageHistogram(repos)
	if len(got) != 2 {
		t.Fatalf("len(languages) = %d, want 2", len(got))
	}
	if got["Go"] != 2 || got["Rust"] != 1 {
		t.Fatalf("languages = %v, want Go:2 Rust:1", got)
	}
	if _, exists := got[""]; exists {
		t.Fatalf("languages contains empty key: %v", got)
	}
}
