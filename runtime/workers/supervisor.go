// Package workers contains the supervised background goroutines of the
// server: the bus-to-hub pumps, the comment persistence sink, heartbeats
// and the periodic sweeps.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"blog-lab/contract"
	"blog-lab/errors"
)

const waitTimeBeforeRestart = 200 * time.Millisecond

// Supervisor runs each worker in its own goroutine, recovers panics and
// restarts crashed workers after a short delay. A failure in one worker
// never takes down the others; cancelling the parent context stops them
// all and Run returns once every goroutine has finished.
type Supervisor struct {
	Cancel  context.CancelFunc
	wg      *sync.WaitGroup
	log     *slog.Logger
	workers []contract.Worker
}

func NewSupervisor(log *slog.Logger) *Supervisor {
	return &Supervisor{wg: &sync.WaitGroup{}, log: log}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run blocks until every supervised worker has stopped. The local cancel
// lets Stop shut the workers down without touching the parent context.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	defer s.Cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

// Start runs one worker under supervision. A panic inside Run is
// recovered and counted as a crash; the worker is restarted until it
// returns nil or the context is cancelled.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Info("Stopping worker", "name", workerName)
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = errors.ErrWorkerPanic
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				// Terminated properly, never restart.
				s.log.Info("Worker finished", "name", workerName)
				return
			}
			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(waitTimeBeforeRestart):
			}
		}
	}()
}

// Stop cancels the supervised context; Run unblocks once the goroutines
// have drained.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}
