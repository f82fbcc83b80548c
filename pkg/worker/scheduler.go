// Package worker runs the recurring background tasks: polling the
// download client, kicking off acquisition passes, and housekeeping. The
// scheduler is purpose-built for a handful of interval tasks, not a
// general cron.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robinjoseph08/golib/logger"
)

// tickInterval is the coarse scheduling resolution.
const tickInterval = time.Second

type TaskFunc func(ctx context.Context) error

type task struct {
	name       string
	fn         TaskFunc
	interval   time.Duration
	lastRun    *time.Time
	nextRun    time.Time
	lastStatus string
}

// TaskStatus is one task's slice of the status snapshot.
type TaskStatus struct {
	Interval   string     `json:"interval"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	NextRun    time.Time  `json:"next_run"`
	LastStatus string     `json:"last_status,omitempty"`
}

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	Running bool                  `json:"running"`
	Tasks   map[string]TaskStatus `json:"tasks"`
}

type Scheduler struct {
	log logger.Logger

	mu      sync.Mutex
	tasks   map[string]*task
	order   []string
	running bool

	shutdown chan struct{}
	done     chan struct{}
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		log:      logger.New(),
		tasks:    map[string]*task{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Register adds a task. The first run happens one full interval after
// Start, not immediately. Registering the same name twice replaces the
// task but keeps its position.
func (s *Scheduler) Register(name string, interval time.Duration, fn TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; !exists {
		s.order = append(s.order, name)
	}
	s.tasks[name] = &task{
		name:     name,
		fn:       fn,
		interval: interval,
		nextRun:  time.Now().Add(interval),
	}
}

// Start launches the scheduler loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	go s.run()
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			close(s.done)
			return
		case <-ticker.C:
			s.runDue(time.Now())
		}
	}
}

// runDue invokes every task whose next run has arrived. A failing or
// panicking task is recorded and rescheduled; it never stops the loop or
// the other tasks.
func (s *Scheduler) runDue(now time.Time) {
	s.mu.Lock()
	due := make([]*task, 0, len(s.order))
	for _, name := range s.order {
		t := s.tasks[name]
		if !now.Before(t.nextRun) {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		status := s.invoke(t)

		s.mu.Lock()
		ran := now
		t.lastRun = &ran
		t.lastStatus = status
		t.nextRun = now.Add(t.interval)
		s.mu.Unlock()
	}
}

func (s *Scheduler) invoke(t *task) (status string) {
	log := s.log
	if id, err := uuid.NewRandom(); err == nil {
		log = log.ID(id.String())
	}
	log = log.Root(logger.Data{"task": t.name})
	ctx := log.WithContext(context.Background())

	defer func() {
		if r := recover(); r != nil {
			status = fmt.Sprintf("panic: %v", r)
			log.Error("task panicked", logger.Data{"panic": fmt.Sprintf("%v", r)})
		}
	}()

	log.Info("task starting")
	if err := t.fn(ctx); err != nil {
		log.Err(err).Error("task failed")
		return fmt.Sprintf("error: %s", err.Error())
	}
	log.Info("task finished")
	return "ok"
}

// Stop signals the loop to exit and waits for it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	close(s.shutdown)
	<-s.done
}

// Status returns a snapshot of the scheduler and its tasks.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := Status{
		Running: s.running,
		Tasks:   make(map[string]TaskStatus, len(s.tasks)),
	}
	for name, t := range s.tasks {
		snapshot.Tasks[name] = TaskStatus{
			Interval:   t.interval.String(),
			LastRun:    t.lastRun,
			NextRun:    t.nextRun,
			LastStatus: t.lastStatus,
		}
	}
	return snapshot
}
