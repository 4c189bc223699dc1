// Package scheduler is a flag-based cooperative scheduler. A periodic tick
// marks tasks due and watches the button; the main loop runs due tasks to
// completion, one at a time, after a button gesture has finished.
//
//	s := scheduler.New(flags, button)
//	s.Register(scheduler.Range, rangeTask)
//	s.Register(scheduler.Inertial, inertialTask)
//	go s.Ticker(ctx, period)   // or call s.Tick() from a timer interrupt
//	s.Loop(ctx)                // or call s.Step(ctx) from the main loop
package scheduler

import (
	"context"
	"errors"
	"time"
)

// Button reads the gesture input. It is active low: Get returns false while
// the button is held.
type Button interface {
	Get() bool
}

// RunFunc runs one task to completion.
type RunFunc func(ctx context.Context) error

type entry struct {
	task Task
	run  RunFunc
}

type Scheduler struct {
	flags  *Flags
	button Button
	tasks  []entry

	// ReleasePoll is how often Step re-reads a held button. Default 1 ms.
	ReleasePoll time.Duration
	// OnError, if set, sees every error returned by a task.
	OnError func(t Task, err error)
	// OnGesture, if set, runs once per dispatched gesture before any task.
	OnGesture func()
}

func New(flags *Flags, button Button) *Scheduler {
	return &Scheduler{flags: flags, button: button, ReleasePoll: time.Millisecond}
}

// Flags returns the shared flag word.
func (s *Scheduler) Flags() *Flags { return s.flags }

// Register adds a task. Step dispatches in registration order.
// Register before starting Tick or Step.
func (s *Scheduler) Register(t Task, run RunFunc) {
	s.tasks = append(s.tasks, entry{task: t, run: run})
}

func (s *Scheduler) pressed() bool { return s.button != nil && !s.button.Get() }

// Tick is the timer interrupt entry point. While the serial line is busy it
// does nothing. Otherwise every registered task that is not running becomes
// due, and a held button records a gesture.
func (s *Scheduler) Tick() {
	if s.flags.Busy(Serial) {
		return
	}
	for _, e := range s.tasks {
		s.flags.MarkDue(e.task)
	}
	if !s.flags.GesturePending() && s.pressed() {
		s.flags.SetGesture()
	}
}

// Step is one main-loop iteration. It waits for the button to be released,
// then, if nothing is running and a gesture is pending, runs every due task
// in order and consumes the gesture. Task errors are joined.
func (s *Scheduler) Step(ctx context.Context) error {
	if err := s.waitRelease(ctx); err != nil {
		return err
	}
	if s.flags.AnyBusy() || !s.flags.GesturePending() {
		return nil
	}
	if s.OnGesture != nil {
		s.OnGesture()
	}
	var errs []error
	for _, e := range s.tasks {
		if !s.flags.Claim(e.task) {
			continue
		}
		err := e.run(ctx)
		s.flags.ClearBusy(e.task)
		if err != nil {
			if s.OnError != nil {
				s.OnError(e.task, err)
			}
			errs = append(errs, err)
		}
	}
	s.flags.ConsumeGesture()
	return errors.Join(errs...)
}

func (s *Scheduler) waitRelease(ctx context.Context) error {
	if !s.pressed() {
		return nil
	}
	t := time.NewTicker(s.ReleasePoll)
	defer t.Stop()
	for s.pressed() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// Ticker calls Tick every period until ctx is done.
func (s *Scheduler) Ticker(ctx context.Context, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Tick()
		}
	}
}

// Loop calls Step until ctx is done, idling for idle between iterations.
// Task errors go to OnError and do not stop the loop.
func (s *Scheduler) Loop(ctx context.Context, idle time.Duration) error {
	if idle <= 0 {
		idle = time.Millisecond
	}
	t := time.NewTicker(idle)
	defer t.Stop()
	for {
		if err := s.Step(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Run starts the ticker in a goroutine and runs the main loop.
func (s *Scheduler) Run(ctx context.Context, period, idle time.Duration) error {
	go s.Ticker(ctx, period)
	return s.Loop(ctx, idle)
}
