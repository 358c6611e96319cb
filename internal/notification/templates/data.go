package templates

import "strconv"

// Keys every routine notification can reference.
const (
	KeyRoutineName   = "routineName"
	KeyMinutesBefore = "minutesBefore"
	KeyStartTime     = "startTime"
	KeyEndTime       = "endTime"
)

// StandardKeys lists the variables supplied for every routine notification.
var StandardKeys = []string{KeyRoutineName, KeyMinutesBefore, KeyStartTime, KeyEndTime}

// RoutineVars holds the standard variables derived from a routine and a lead time.
type RoutineVars struct {
	RoutineName   string
	StartTime     string
	EndTime       string
	MinutesBefore int
}

// Vars renders the standard variables as a substitution map.
func (r RoutineVars) Vars() Vars {
	return Vars{
		KeyRoutineName:   r.RoutineName,
		KeyMinutesBefore: strconv.Itoa(r.MinutesBefore),
		KeyStartTime:     r.StartTime,
		KeyEndTime:       r.EndTime,
	}
}

// Merge returns the standard variables overlaid with extra. Extra values win.
func (r RoutineVars) Merge(extra map[string]string) Vars {
	out := r.Vars()
	for k, v := range extra {
		out[k] = v
	}
	return out
}
