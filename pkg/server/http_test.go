package server

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kevgir/internal/app"
	"kevgir/internal/job"
)

func TestInitialRunSharesSchedulerGuard(t *testing.T) {
	var runs int32
	started := make(chan struct{})
	release := make(chan struct{})
	sched := job.NewScheduler("", func(context.Context) error {
		if atomic.AddInt32(&runs, 1) == 1 {
			close(started)
			<-release
		}
		return nil
	}, nil)

	cronRun := make(chan bool, 1)
	go func() { cronRun <- sched.RunOnce() }()
	<-started

	srv := NewHTTPServer(nil, nil, app.Config{}, nil, sched)
	assert.False(t, srv.initialRun(context.Background()), "overlapping run must be skipped")
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))

	close(release)
	assert.True(t, <-cronRun)
	assert.True(t, srv.initialRun(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
}

func TestInitialRunWithoutScheduler(t *testing.T) {
	svc, err := app.NewService(app.Config{}, &app.RunFlow{}, nil)
	require.NoError(t, err)

	srv := NewHTTPServer(nil, nil, app.Config{}, svc, nil)
	assert.True(t, srv.initialRun(context.Background()))

	empty := NewHTTPServer(nil, nil, app.Config{}, nil, nil)
	assert.False(t, empty.initialRun(context.Background()))
}
