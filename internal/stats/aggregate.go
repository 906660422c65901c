package stats

import "time"

const dayFormat = "2006-01-02"

// Activity is the time-windowed view of the collected commit records.
type Activity struct {
	Pattern      CommitPattern
	Recent       []DayActivity
	ValidRecords int
}

// aggregateActivity buckets the collected commits into rolling windows and a
// 30-day daily histogram, both anchored at now in UTC. Records with
// unparseable or future timestamps are excluded everywhere.
func aggregateActivity(records []CommitRecord, now time.Time) Activity {
	now = now.UTC()
	weekCutoff := now.AddDate(0, 0, -7)
	monthCutoff := now.AddDate(0, 0, -30)
	yearCutoff := now.AddDate(0, 0, -365)
	histogramStart := now.AddDate(0, 0, -29)

	byDay := make(map[string]int, 30)
	activity := Activity{}

	for _, record := range records {
		ts, err := time.Parse(time.RFC3339, record.AuthoredAt)
		if err != nil || ts.IsZero() {
			continue
		}
		ts = ts.UTC()
		if ts.After(now) {
			continue
		}
		activity.ValidRecords++

		if !ts.Before(weekCutoff) {
			activity.Pattern.LastWeek++
		}
		if !ts.Before(monthCutoff) {
			activity.Pattern.LastMonth++
		}
		if !ts.Before(yearCutoff) {
			activity.Pattern.LastYear++
		}
		byDay[ts.Format(dayFormat)]++
	}

	activity.Recent = make([]DayActivity, 0, 30)
	for i := 0; i < 30; i++ {
		day := histogramStart.AddDate(0, 0, i).Format(dayFormat)
		activity.Recent = append(activity.Recent, DayActivity{
			Date:        day,
			CommitCount: byDay[day],
		})
	}
	return activity
}

// languageHistogram counts repositories per primary language; repositories
// without one are skipped.
func languageHistogram(repos []RepositoryRef) map[string]int {
	languages := make(map[string]int)
	for _, repo := range repos {
		if repo.PrimaryLanguage == "" {
			continue
		}
		languages[repo.PrimaryLanguage]++
	}
	return languages
}
