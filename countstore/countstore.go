// Package countstore tracks moderation counters (suppressions by reason
// kind, actions by outcome, daily action quotas) bucketed by time period.
package countstore

import (
	"context"
	"fmt"
	"time"
)

const (
	PeriodTotal = "total"
	PeriodDay   = "day"
	PeriodHour  = "hour"
)

type CountStore interface {
	GetCount(ctx context.Context, name, val, period string) (int, error)
	// Increment bumps the counter for all time periods.
	Increment(ctx context.Context, name, val string) error
}

var allPeriods = []string{PeriodTotal, PeriodDay, PeriodHour}

func periodBucket(name, val, period string) string {
	switch period {
	case PeriodDay:
		return fmt.Sprintf("%s/%s/%s", name, val, time.Now().UTC().Format(time.DateOnly))
	case PeriodHour:
		return fmt.Sprintf("%s/%s/%s", name, val, time.Now().UTC().Format(time.RFC3339)[0:13])
	default:
		return fmt.Sprintf("%s/%s", name, val)
	}
}
