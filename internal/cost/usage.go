package cost

import (
	"time"

	"demand-foresight/internal/model"
)

// MonthsInSeries is the length of the trailing monthly series.
const MonthsInSeries = 12

type MonthlyCost struct {
	// Month is the first instant of the calendar month, in the location of now.
	Month time.Time `json:"month"`
	Cost  float64   `json:"cost"`
}

type Usage struct {
	Total   float64       `json:"total"`
	Monthly []MonthlyCost `json:"monthly"`
}

// Summarize aggregates records into an all-time total and a trailing
// twelve-month series ending with the month of now. Every month is present,
// zero when nothing was charged, ordered oldest to newest. An empty username
// aggregates every user.
func Summarize(records []model.CostRecord, username string, now time.Time) Usage {
	loc := now.Location()
	current := monthStart(now)
	first := current.AddDate(0, -(MonthsInSeries - 1), 0)

	series := make([]MonthlyCost, MonthsInSeries)
	index := make(map[time.Time]int, MonthsInSeries)
	for i := range series {
		m := first.AddDate(0, i, 0)
		series[i] = MonthlyCost{Month: m}
		index[m] = i
	}

	var total float64
	for _, r := range records {
		if username != "" && r.Username != username {
			continue
		}
		total += r.Cost
		if i, ok := index[monthStart(r.Timestamp.In(loc))]; ok {
			series[i].Cost += r.Cost
		}
	}
	return Usage{Total: total, Monthly: series}
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
