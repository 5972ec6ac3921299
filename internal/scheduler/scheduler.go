// Package scheduler decides when each dose is due, queues upcoming doses,
// and fires them through the dosing API inside the safety window.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/reeflab/reefdb/internal/alerts"
	"github.com/reeflab/reefdb/internal/audit"
	"github.com/reeflab/reefdb/internal/dosing"
	"github.com/reeflab/reefdb/internal/model"
)

// Store is the slice of the database store the scheduler depends on.
// db.Store satisfies it.
type Store interface {
	ListActiveSchedules() ([]model.ActiveSchedule, error)
	GetScheduleByID(id int) (model.Schedule, error)
	GetProductByID(id int) (model.Product, error)
	GetDoserByID(id int) (model.Doser, error)
	LastDoseTime(scheduleID int) (*time.Time, error)
	SetLastScheduledTime(scheduleID int, t time.Time) error
	SetDoseConfirmedAmount(doseID int, amount float64) error
	PendingMissedDoseExists(scheduleID int, missedTime time.Time) (bool, error)
	CreateMissedDoseRequest(scheduleID int, missedTime time.Time, hoursMissed float64) (model.MissedDoseRequest, error)
	GetMissedDoseRequest(id int) (model.MissedDoseRequest, error)
	ResolveMissedDoseRequest(id int, status model.MissedDoseStatus, decidedBy, notes string, now time.Time) error
	ExpirePendingMissedDoses(cutoff time.Time) (int, error)
	DeleteDecidedMissedDoses(cutoff time.Time) (int, error)
}

type Config struct {
	Location       *time.Location
	QueueSize      int
	Workers        int
	TriggerTimeout time.Duration
	ConfirmTimeout time.Duration
}

type doseJob struct {
	planned time.Time
	timer   *time.Timer
}

// Scheduler is the queue manager and dose executor. One periodic control
// loop ticks at the top of every minute; per-dose jobs fire on their own
// timers into a bounded worker pool.
type Scheduler struct {
	store   Store
	trigger dosing.TriggerAPI
	doser   dosing.DoserClient
	sink    audit.Sink
	alerts  *alerts.Publisher

	loc    *time.Location
	calc   *Calculator
	policy *PolicyEngine
	queue  *Queue

	triggerTimeout time.Duration
	confirmTimeout time.Duration

	cron *cron.Cron
	sem  chan struct{}
	wg   sync.WaitGroup

	mu          sync.Mutex
	running     bool
	stopCh      chan struct{}
	refreshCh   chan struct{}
	lastRefresh time.Time
	jobs        map[int]*doseJob
	skipNoted   map[int]time.Time

	now func() time.Time
}

func New(store Store, trigger dosing.TriggerAPI, doser dosing.DoserClient,
	sink audit.Sink, alertPub *alerts.Publisher, cfg Config) *Scheduler {

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	calc := NewCalculator(loc)
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	triggerTimeout := cfg.TriggerTimeout
	if triggerTimeout <= 0 {
		triggerTimeout = 30 * time.Second
	}
	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 30 * time.Second
	}

	return &Scheduler{
		store:          store,
		trigger:        trigger,
		doser:          doser,
		sink:           sink,
		alerts:         alertPub,
		loc:            loc,
		calc:           calc,
		policy:         NewPolicyEngine(store, calc),
		queue:          NewQueue(cfg.QueueSize),
		triggerTimeout: triggerTimeout,
		confirmTimeout: confirmTimeout,
		sem:            make(chan struct{}, workers),
		jobs:           make(map[int]*doseJob),
		skipNoted:      make(map[int]time.Time),
		now:            func() time.Time { return time.Now().In(loc) },
	}
}

// Start brings up the control loop and performs an initial refresh.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.refreshCh = make(chan struct{}, 1)
	cr := cron.New(
		cron.WithParser(cron.NewParser(
			cron.Second|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow,
		)),
		cron.WithLocation(s.loc),
	)
	s.cron = cr
	stopCh, refreshCh := s.stopCh, s.refreshCh
	s.mu.Unlock()

	// cr, stopCh and refreshCh are locals from here on: a concurrent Stop
	// may nil out s.cron at any point after the unlock
	if _, err := cr.AddFunc("0 * * * * *", func() { s.refresh(s.now()) }); err != nil {
		s.mu.Lock()
		s.running = false
		s.cron = nil
		s.mu.Unlock()
		return err
	}
	if _, err := cr.AddFunc("0 30 3 * * *", func() { s.cleanupRequests(s.now()) }); err != nil {
		s.mu.Lock()
		s.running = false
		s.cron = nil
		s.mu.Unlock()
		return err
	}
	cr.Start()

	go s.refreshLoop(stopCh, refreshCh)

	s.refresh(s.now())
	log.Info().Str("timezone", s.loc.String()).Msg("dose scheduler started")
	return nil
}

func (s *Scheduler) refreshLoop(stopCh, refreshCh chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		case <-refreshCh:
			s.refresh(s.now())
		}
	}
}

// Stop tears the scheduler down, awaiting in-flight dose jobs: a dose
// already signaled to hardware cannot be cancelled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	for id, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, id)
	}
	cr := s.cron
	s.cron = nil
	s.mu.Unlock()

	if cr != nil {
		<-cr.Stop().Done()
	}
	s.wg.Wait()
	log.Info().Msg("dose scheduler stopped")
}

// Restart stops and starts again; the queue and jobs are rebuilt from
// durable state by the initial refresh, never from in-memory leftovers.
func (s *Scheduler) Restart() error {
	s.Stop()
	return s.Start()
}

// Running reports whether the control loop is up.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ForceRefresh rebuilds the queue synchronously and records the refresh.
// Only operator-driven refreshes are audited; the per-minute tick and the
// post-dose refreshes would flood the log.
func (s *Scheduler) ForceRefresh() {
	eligible, queued := s.refresh(s.now())
	s.sink.Record(context.Background(), model.AuditEntry{
		Event:   model.AuditQueueRefreshed,
		Message: "dose queue refreshed on demand",
		Detail: model.JSONMap{
			"eligible": eligible,
			"queued":   queued,
		},
	})
}

// requestRefresh asks the control loop for an asynchronous refresh; used
// after a successful dose so the next occurrence is queued without waiting
// for the periodic tick.
func (s *Scheduler) requestRefresh() {
	s.mu.Lock()
	running, ch := s.running, s.refreshCh
	s.mu.Unlock()
	if !running {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

type UpcomingDose struct {
	ScheduleID    int       `json:"schedule_id"`
	TankID        int       `json:"tank_id"`
	ProductName   string    `json:"product_name"`
	Amount        float64   `json:"amount"`
	ScheduledTime time.Time `json:"scheduled_time"`
	SecondsUntil  float64   `json:"seconds_until"`
}

type Status struct {
	Running     bool           `json:"running"`
	Timezone    string         `json:"timezone"`
	QueueSize   int            `json:"queue_size"`
	LastRefresh *time.Time     `json:"last_refresh"`
	NextDoses   []UpcomingDose `json:"next_doses"`
}

func (s *Scheduler) Status() Status {
	now := s.now()

	s.mu.Lock()
	st := Status{Running: s.running, Timezone: s.loc.String()}
	if !s.lastRefresh.IsZero() {
		t := s.lastRefresh
		st.LastRefresh = &t
	}
	s.mu.Unlock()

	entries := s.queue.Snapshot()
	st.QueueSize = len(entries)
	st.NextDoses = make([]UpcomingDose, 0, len(entries))
	for _, e := range entries {
		st.NextDoses = append(st.NextDoses, UpcomingDose{
			ScheduleID:    e.ScheduleID,
			TankID:        e.TankID,
			ProductName:   e.ProductName,
			Amount:        e.Amount,
			ScheduledTime: e.PlannedTime,
			SecondsUntil:  e.PlannedTime.Sub(now).Seconds(),
		})
	}
	return st
}
