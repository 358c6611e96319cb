package routine

import (
	"errors"
	"time"

	"github.com/delordemm1/routine-notifier/internal/schedule"
)

// ErrNotFound is returned when no routine has the requested id.
var ErrNotFound = errors.New("routine not found")

// Routine is a named daily time block. NotifyBefore holds the comma separated
// lead minutes at which reminders fire.
type Routine struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	StartTime    string    `db:"start_time" json:"startTime"`
	EndTime      string    `db:"end_time" json:"endTime"`
	Strict       bool      `db:"strict" json:"strict"`
	NotifyBefore string    `db:"notify_before" json:"notifyBefore"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// StartClock parses StartTime.
func (r *Routine) StartClock() (schedule.Clock, error) {
	return schedule.ParseClock(r.StartTime)
}

// LeadMinutes parses NotifyBefore, dropping invalid entries.
func (r *Routine) LeadMinutes() []int {
	return schedule.ParseLeadMinutes(r.NotifyBefore)
}

// FirstLead returns the first configured lead time, or 0 when there is none.
func (r *Routine) FirstLead() int {
	if leads := r.LeadMinutes(); len(leads) > 0 {
		return leads[0]
	}
	return 0
}
