package refresh

import (
	"time"

	"challenge-tracker/internal/domain"
	"challenge-tracker/internal/timeutil"
)

// DayWindow computes the calendar dates a heartbeat-observed UTC range maps
// to for one participation: the heartbeat days in the participant's local
// timezone, intersected with the challenge's own day range. Late heartbeats
// for a past day resynchronize that day as long as it is inside both ranges.
func DayWindow(p domain.Participation, heartbeatsStart, heartbeatsEnd time.Time) ([]string, error) {
	if p.Challenge.StartedTime == nil {
		return nil, nil
	}
	tz := p.Participant.Timezone

	heartbeatStartDay, err := timeutil.LocalDate(heartbeatsStart, tz)
	if err != nil {
		return nil, err
	}
	heartbeatEndDay, err := timeutil.LocalDate(heartbeatsEnd, tz)
	if err != nil {
		return nil, err
	}

	challengeStartDay, err := timeutil.LocalDate(*p.Challenge.StartedTime, tz)
	if err != nil {
		return nil, err
	}
	// An open-ended challenge is bounded by the newest heartbeat.
	challengeEndDay := heartbeatEndDay
	if p.Challenge.EndedTime != nil {
		challengeEndDay, err = timeutil.LocalDate(*p.Challenge.EndedTime, tz)
		if err != nil {
			return nil, err
		}
	}

	// YYYY-MM-DD strings order lexicographically, so min/max work directly.
	start := heartbeatStartDay
	if challengeStartDay > start {
		start = challengeStartDay
	}
	end := heartbeatEndDay
	if challengeEndDay < end {
		end = challengeEndDay
	}

	return timeutil.DateRange(start, end)
}
