package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Parser accepts standard five-field expressions, an optional leading
// seconds field and descriptors such as "@daily".
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse validates cronExpr with Parser.
func Parse(cronExpr string) (cron.Schedule, error) {
	schedule, err := Parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

type TriggerInfo struct {
	Next       time.Time
	Last       time.Time
	Expression string

	TimeSinceLast time.Duration
	TimeUntilNext time.Duration
}

// GetTriggerInfo returns the next trigger after refTime and the latest one
// at or before it, searching back at most a year.
func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := Parse(cronExpr)
	if err != nil {
		return nil, err
	}

	nextTime := schedule.Next(refTime)

	var prevTime time.Time
	searchStart := refTime.Add(-time.Minute)

	for i := range 366 * 24 {
		checkTime := searchStart.Add(-time.Duration(i) * time.Hour)
		candidateNext := schedule.Next(checkTime)

		if candidateNext.Before(refTime) ||
			candidateNext.Equal(refTime) {
			prevTime = candidateNext
			break
		}
	}

	info := &TriggerInfo{
		Expression: cronExpr,
		Next:       nextTime,
		Last:       prevTime,
	}

	if !prevTime.IsZero() {
		info.TimeSinceLast = refTime.Sub(prevTime)
	}

	info.TimeUntilNext = nextTime.Sub(refTime)

	return info, nil
}
