// Package scheduler fires planner jobs on independent per-(market, type) intervals.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/MM0819/vega-market-maker-sub000/internal/metrics"
	"github.com/MM0819/vega-market-maker-sub000/internal/model"
)

// Key identifies one job; at most one job is registered per key.
type Key struct {
	MarketID string
	Type     string
}

func (k Key) String() string { return k.Type + "/" + k.MarketID }

// Job is a periodic unit of work. A disabled job stays registered but never fires.
type Job struct {
	Key      Key
	Interval time.Duration
	Enabled  bool
	Run      func(ctx context.Context) error
}

type entry struct {
	job    Job
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns the job table and one goroutine per enabled job once started.
type Scheduler struct {
	log zerolog.Logger

	mu      sync.Mutex
	jobs    map[Key]*entry
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
}

// New returns an idle scheduler. Jobs registered before Start begin firing once it is called.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		log:  log.With().Str("component", "scheduler").Logger(),
		jobs: make(map[Key]*entry),
	}
}

// Register adds job, replacing and stopping any job already held under the same key. A replaced
// job's in-flight run finishes before the new one starts. Must not be called from a job's own Run.
func (s *Scheduler) Register(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %s: nil run func", job.Key)
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %s", job.Key, job.Interval)
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return errors.New("scheduler stopped")
	}
	e := &entry{job: job}
	if old, ok := s.jobs[job.Key]; ok {
		s.halt(old)
		e.done = old.done
	}
	s.jobs[job.Key] = e
	prev := e.done
	s.mu.Unlock()

	s.relaunch(e, prev)
	return nil
}

// Cancel stops and removes the job under key. It reports whether one was registered.
func (s *Scheduler) Cancel(key Key) bool {
	s.mu.Lock()
	e, ok := s.jobs[key]
	var done chan struct{}
	if ok {
		delete(s.jobs, key)
		s.halt(e)
		done = e.done
	}
	s.mu.Unlock()
	if done != nil {
		<-done
	}
	return ok
}

// Reschedule changes the interval of a registered job and restarts its timer once any in-flight run returns.
func (s *Scheduler) Reschedule(key Key, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %s", key, interval)
	}
	if err := s.restart(key, func(j *Job) { j.Interval = interval }); err != nil {
		return err
	}
	s.log.Info().Str("job", key.Type).Str("market", key.MarketID).Dur("interval", interval).Msg("job rescheduled")
	return nil
}

// SetEnabled toggles whether a registered job fires.
func (s *Scheduler) SetEnabled(key Key, enabled bool) error {
	return s.restart(key, func(j *Job) { j.Enabled = enabled })
}

// restart applies edit to the job under key, stops its loop, waits for the loop to exit and launches it again.
func (s *Scheduler) restart(key Key, edit func(*Job)) error {
	s.mu.Lock()
	e, ok := s.jobs[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: job %s", model.ErrNotFound, key)
	}
	edit(&e.job)
	s.halt(e)
	prev := e.done
	s.mu.Unlock()

	s.relaunch(e, prev)
	return nil
}

// relaunch waits for prev, the loop e last ran, to exit and then starts e again, unless e was
// removed or another caller already relaunched it in the meantime.
func (s *Scheduler) relaunch(e *entry, prev chan struct{}) {
	if prev != nil {
		<-prev
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobs[e.job.Key] != e || e.done != prev || e.cancel != nil {
		return
	}
	s.launch(e)
}

// Keys lists registered jobs in a stable order.
func (s *Scheduler) Keys() []Key {
	s.mu.Lock()
	keys := make([]Key, 0, len(s.jobs))
	for k := range s.jobs {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].MarketID != keys[j].MarketID {
			return keys[i].MarketID < keys[j].MarketID
		}
		return keys[i].Type < keys[j].Type
	})
	return keys
}

// Start begins firing every enabled job. Jobs live until ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil || s.stopped {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, e := range s.jobs {
		s.launch(e)
	}
	s.log.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
}

// Stop cancels every job and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	var pending []chan struct{}
	for _, e := range s.jobs {
		if e.done != nil {
			pending = append(pending, e.done)
		}
		e.cancel = nil
	}
	s.mu.Unlock()
	for _, done := range pending {
		<-done
	}
	s.log.Info().Msg("scheduler drained")
}

// launch starts e's loop when the scheduler is running and the job is enabled. Caller holds mu and
// must already have waited for e.done, the previous loop, to close.
func (s *Scheduler) launch(e *entry) {
	if s.ctx == nil || s.stopped || !e.job.Enabled {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	go s.loop(ctx, e.job, done)
}

// halt cancels e's loop without waiting; e.done stays set so callers can wait on it. Caller holds mu.
func (s *Scheduler) halt(e *entry) {
	if e.cancel != nil {
		e.cancel()
	}
	e.cancel = nil
}

func (s *Scheduler) loop(ctx context.Context, job Job, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.fire(ctx, job)
		}
	}
}

// fire runs one cycle, containing errors and panics so the next tick retries.
func (s *Scheduler) fire(ctx context.Context, job Job) {
	log := s.log.With().Str("job", job.Key.Type).Str("market", job.Key.MarketID).Logger()
	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			log.Error().Interface("panic", r).Msg("planner cycle panicked")
		}
		metrics.PlannerCycles.WithLabelValues(job.Key.Type, outcome).Inc()
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		if ctx.Err() != nil {
			outcome = "cancelled"
			log.Debug().Err(err).Msg("planner cycle interrupted by shutdown")
			return
		}
		outcome = "error"
		log.Error().Err(err).Bool("not_found", errors.Is(err, model.ErrNotFound)).Msg("planner cycle failed")
		return
	}
	log.Debug().Dur("took", time.Since(start)).Msg("planner cycle complete")
}
