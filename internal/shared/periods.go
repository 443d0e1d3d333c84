package shared

import (
	"errors"
	"time"
)

// Period identifies a dashboard rollup window anchored at "now".
type Period string

// Dashboard periods.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// ErrInvalidPeriod indicates an unknown period label.
var ErrInvalidPeriod = errors.New("period invalid")

// DashboardPeriods lists the periods computed for dashboards, in display order.
func DashboardPeriods() []Period {
	return []Period{PeriodDay, PeriodMonth, PeriodYear}
}

// ParsePeriod validates a period label.
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(raw); p {
	case PeriodDay, PeriodMonth, PeriodYear:
		return p, nil
	}
	return "", ErrInvalidPeriod
}

// Start returns the first instant of the period containing now, in loc.
func (p Period) Start(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	switch p {
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	case PeriodYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	}
}
