package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/delordemm1/routine-notifier/internal/contextx"
	"github.com/delordemm1/routine-notifier/internal/metrics"
	"github.com/delordemm1/routine-notifier/internal/modules/routine"
	"github.com/delordemm1/routine-notifier/internal/schedule"
)

// ScanLock excludes concurrent scans across processes.
type ScanLock interface {
	Acquire(ctx context.Context) (release func(), acquired bool, err error)
}

// Scanner runs the periodic check that fires due routine reminders.
type Scanner struct {
	repo       Repository
	routines   routine.Repository
	dispatcher *Dispatcher
	publisher  Publisher
	ledger     schedule.Ledger
	lock       ScanLock
	loc        *time.Location
	logger     *slog.Logger
	now        func() time.Time

	mu sync.Mutex
}

// ScannerConfig holds the dependencies for a Scanner. Ledger and Lock are
// optional; Location defaults to time.Local.
type ScannerConfig struct {
	Repo       Repository
	Routines   routine.Repository
	Dispatcher *Dispatcher
	Publisher  Publisher
	Ledger     schedule.Ledger
	Lock       ScanLock
	Location   *time.Location
	Logger     *slog.Logger
	Now        func() time.Time
}

func NewScanner(cfg *ScannerConfig) *Scanner {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scanner{
		repo:       cfg.Repo,
		routines:   cfg.Routines,
		dispatcher: cfg.Dispatcher,
		publisher:  cfg.Publisher,
		ledger:     cfg.Ledger,
		lock:       cfg.Lock,
		loc:        loc,
		logger:     cfg.Logger,
		now:        now,
	}
}

// ScanResult summarises one scan. TriggeredCount counts published notifications.
type ScanResult struct {
	Checked        int `json:"checked"`
	Due            int `json:"due"`
	Duplicates     int `json:"duplicates"`
	TriggeredCount int `json:"triggeredCount"`
}

// Scan fires every reminder due at the current time. It returns
// ErrScanInProgress when another scan holds the lock, and otherwise fails only
// when routines or preferences cannot be read.
func (s *Scanner) Scan(ctx context.Context) (res *ScanResult, err error) {
	if !s.mu.TryLock() {
		metrics.ScansTotal.WithLabelValues("skipped").Inc()
		return nil, ErrScanInProgress
	}
	defer s.mu.Unlock()

	// A scan runs to completion once started so no log row is left pending.
	ctx = context.WithoutCancel(ctx)

	if s.lock != nil {
		release, ok, lerr := s.lock.Acquire(ctx)
		switch {
		case lerr != nil:
			s.logger.Warn("scan lock unavailable, continuing without it", "error", lerr)
		case !ok:
			metrics.ScansTotal.WithLabelValues("skipped").Inc()
			return nil, ErrScanInProgress
		default:
			defer release()
		}
	}

	start := time.Now()
	defer func() {
		metrics.ScanDuration.Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.ScansTotal.WithLabelValues(outcome).Inc()
	}()

	ctx = contextx.WithCorrelationID(ctx, uuid.NewString())
	now := s.now().In(s.loc)
	log := s.logger.With("correlation_id", contextx.CorrelationID(ctx))

	if cerr := s.publisher.Connect(ctx); cerr != nil {
		log.Warn("queue producer unavailable, notifications will be marked failed", "error", cerr)
	}

	prefs, err := s.repo.ListPreferences(ctx, PreferenceFilter{EnabledOnly: true})
	if err != nil {
		return nil, err
	}
	if err := attachTemplates(ctx, s.repo, prefs); err != nil {
		return nil, err
	}
	byRoutine := make(map[int64][]Preference)
	var ids []int64
	for _, p := range prefs {
		if _, seen := byRoutine[p.RoutineID]; !seen {
			ids = append(ids, p.RoutineID)
		}
		byRoutine[p.RoutineID] = append(byRoutine[p.RoutineID], p)
	}

	routines, err := s.routines.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	res = &ScanResult{}
	byID := make(map[int64]*routine.Routine, len(routines))
	entries := make([]schedule.Entry, 0, len(routines))
	for i := range routines {
		rt := &routines[i]
		leads := rt.LeadMinutes()
		if len(leads) == 0 {
			continue
		}
		clock, cerr := rt.StartClock()
		if cerr != nil {
			log.Warn("routine has an invalid start time, skipping", "routine_id", rt.ID, "start_time", rt.StartTime)
			continue
		}
		byID[rt.ID] = rt
		entries = append(entries, schedule.Entry{RoutineID: rt.ID, Start: clock, LeadMinutes: leads})
	}
	res.Checked = len(entries)

	for _, due := range schedule.Match(now, entries) {
		res.Due++
		rt := byID[due.RoutineID]
		if !s.claim(ctx, log, due) {
			res.Duplicates++
			continue
		}
		log.Info("routine reminder due", "routine_id", rt.ID, "routine", rt.Name, "lead", due.LeadMinutes)
		res.TriggeredCount += s.dispatcher.DispatchDue(ctx, rt, byRoutine[rt.ID], due.LeadMinutes)
	}

	log.Info("notification scan finished",
		"checked", res.Checked,
		"due", res.Due,
		"duplicates", res.Duplicates,
		"triggered", res.TriggeredCount,
	)
	return res, nil
}

// claim reports whether due should fire. A ledger failure lets it fire.
func (s *Scanner) claim(ctx context.Context, log *slog.Logger, due schedule.Due) bool {
	if s.ledger == nil {
		return true
	}
	ok, err := s.ledger.Claim(ctx, due.RoutineID, due.LeadMinutes, due.NotifyAt)
	if err != nil {
		log.Warn("fire ledger unavailable, dispatching anyway", "routine_id", due.RoutineID, "error", err)
		return true
	}
	return ok
}

// RoutineStats describes one routine in the schedule overview.
type RoutineStats struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Start              string `json:"start"`
	End                string `json:"end"`
	NotifyBefore       string `json:"notifyBefore"`
	EnabledPreferences int    `json:"enabledPreferences"`
}

// ScheduleStats is an overview of which routines can produce reminders.
type ScheduleStats struct {
	TotalRoutines             int            `json:"totalRoutines"`
	RoutinesWithNotifications int            `json:"routinesWithNotifications"`
	TotalPreferences          int            `json:"totalPreferences"`
	RoutineDetails            []RoutineStats `json:"routineDetails"`
}

// Stats counts routines and their enabled preferences.
func (s *Scanner) Stats(ctx context.Context) (*ScheduleStats, error) {
	routines, err := s.routines.List(ctx)
	if err != nil {
		return nil, err
	}
	prefs, err := s.repo.ListPreferences(ctx, PreferenceFilter{EnabledOnly: true})
	if err != nil {
		return nil, err
	}
	enabled := make(map[int64]int)
	for _, p := range prefs {
		enabled[p.RoutineID]++
	}

	st := &ScheduleStats{
		TotalRoutines:  len(routines),
		RoutineDetails: make([]RoutineStats, 0, len(routines)),
	}
	for _, rt := range routines {
		n := enabled[rt.ID]
		st.TotalPreferences += n
		if rt.NotifyBefore != "" && n > 0 {
			st.RoutinesWithNotifications++
		}
		st.RoutineDetails = append(st.RoutineDetails, RoutineStats{
			ID:                 rt.ID,
			Name:               rt.Name,
			Start:              rt.StartTime,
			End:                rt.EndTime,
			NotifyBefore:       rt.NotifyBefore,
			EnabledPreferences: n,
		})
	}
	return st, nil
}

