package workers

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/contract"
	"match-chat/errors"
	"sync"
	"time"
)

const waitTimeBeforeRestart = 200 * time.Millisecond

var _ contract.ISupervisor = (*Supervisor)(nil)

// Supervisor owns the context of the runtime workers.
// It runs each worker in its own goroutine, restarts it after a panic or an error,
// and waits for all of them once the context is canceled.
type Supervisor struct {
	mu             sync.Mutex
	cancel         context.CancelFunc
	wg             *sync.WaitGroup
	log            *slog.Logger
	workers        []contract.Worker
	restartBackoff time.Duration
}

func NewSupervisor(log *slog.Logger, restartBackoff time.Duration) *Supervisor {
	if restartBackoff <= 0 {
		restartBackoff = waitTimeBeforeRestart
	}
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, restartBackoff: restartBackoff}
}

// Run blocks until every worker returned.
// Canceling the parent context or calling Stop cancels all workers.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs a worker under supervision in a dedicated goroutine.
// A worker returning nil is done for good. A panic or an error restarts it after the backoff.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			s.log.Error("Worker crashed, restarting", "name", workerName, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.restartBackoff):
			}
		}
	}()
}

func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
