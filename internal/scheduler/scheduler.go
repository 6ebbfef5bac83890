package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler runs recurring jobs bound to the lifetime of the dashboard.
type Scheduler struct {
	scheduler *gocron.Scheduler
	jobs      int
}

// New creates a new Scheduler.
func New() *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Every registers fn to run every interval, starting immediately.
// A run that is still in progress when the next one is due is not overlapped.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler: invalid interval %s for job %q", interval, name)
	}

	_, err := s.scheduler.Every(interval).Tag(name).SingletonMode().Do(func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("ERROR: scheduler: job %q panicked: %v", name, r)
			}
		}()
		fn()
	})
	if err != nil {
		return fmt.Errorf("scheduler: register job %q: %w", name, err)
	}

	s.jobs++
	log.Printf("DEBUG: scheduler: registered job %q every %s", name, interval)
	return nil
}

// Start starts the underlying scheduler.
func (s *Scheduler) Start() {
	if s.jobs == 0 {
		log.Println("scheduler: no jobs registered; nothing to schedule")
		return
	}
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
