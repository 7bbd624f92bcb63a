package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"blog-lab/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSupervisor_RestartOnPanic(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	workerMock := mocks.NewMockWorker(ctrl)

	var calls atomic.Int32
	workerMock.EXPECT().
		Run(gomock.Any()).
		DoAndReturn(func(ctx context.Context) error {
			calls.Add(1)
			panic("boom")
		}).
		AnyTimes()

	sup := NewSupervisor(slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	go sup.Add(workerMock).Run(ctx)

	// Waiting for panics and restarts
	time.Sleep(900 * time.Millisecond)

	req.GreaterOrEqual(calls.Load(), int32(2))
}

func TestSupervisor_StopOnSuccess(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	workerMock := mocks.NewMockWorker(ctrl)

	// A worker returning nil is finished and must not be restarted.
	workerMock.EXPECT().
		Run(gomock.Any()).
		Return(nil).
		Times(1)

	sup := NewSupervisor(slog.Default())

	done := make(chan struct{})
	go func() {
		sup.Add(workerMock).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		req.Fail("Supervisor should have stopped after worker success")
	}
}

func TestSupervisor_StopCancelsWorkers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	workerMock := mocks.NewMockWorker(ctrl)
	workerMock.EXPECT().
		Run(gomock.Any()).
		DoAndReturn(func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}).
		Times(1)

	sup := NewSupervisor(slog.Default())
	done := make(chan struct{})
	go func() {
		sup.Add(workerMock).Run(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	sup.Stop()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		req.Fail("Stop should unblock Run")
	}
}

func TestSupervisor_OneCrashDoesNotStopOthers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	crashing := mocks.NewMockWorker(ctrl)
	crashing.EXPECT().
		Run(gomock.Any()).
		DoAndReturn(func(ctx context.Context) error {
			panic("boom")
		}).
		AnyTimes()

	var steadyRuns atomic.Int32
	steady := mocks.NewMockWorker(ctrl)
	steady.EXPECT().
		Run(gomock.Any()).
		DoAndReturn(func(ctx context.Context) error {
			steadyRuns.Add(1)
			<-ctx.Done()
			return nil
		}).
		Times(1)

	sup := NewSupervisor(slog.Default())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go sup.Add(crashing, steady).Run(ctx)
	time.Sleep(600 * time.Millisecond)

	req.Equal(int32(1), steadyRuns.Load(), "the steady worker keeps its single run")
}
