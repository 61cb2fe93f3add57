package runtime

import (
	"context"
	"sync"
)

type worker struct {
	name   string
	run    func(context.Context) error
	closeF func() error
}

// Supervisor runs named workers and closes them in reverse order on
// shutdown. The first worker error is retained and unblocks Wait, so a
// fatal monitor failure terminates the process without waiting for a
// signal.
type Supervisor struct {
	mu       sync.Mutex
	workers  []worker
	wg       sync.WaitGroup
	failOnce sync.Once
	failed   chan struct{}
	err      error
}

func NewSupervisor() *Supervisor {
	return &Supervisor{failed: make(chan struct{})}
}

func (s *Supervisor) Add(name string, run func(context.Context) error, closeF func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, worker{name: name, run: run, closeF: closeF})
}

func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.workers {
		w := w
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := w.run(ctx); err != nil {
				s.failOnce.Do(func() {
					s.err = err
					close(s.failed)
				})
			}
		}()
	}
	return nil
}

// Wait blocks until the context is cancelled or a worker fails, then
// closes workers in reverse registration order.
func (s *Supervisor) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-s.failed:
	}
	for i := len(s.workers) - 1; i >= 0; i-- {
		if s.workers[i].closeF != nil {
			_ = s.workers[i].closeF()
		}
	}
	s.wg.Wait()
	return s.err
}
