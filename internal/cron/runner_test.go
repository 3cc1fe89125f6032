package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/itsDrac/e-auc-bidding/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_RunsCloseJob(t *testing.T) {
	r := New(context.Background(), logger.NewNop())

	var runs atomic.Int32
	closer := func(ctx context.Context) (int, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		runs.Add(1)
		return 0, errors.New("store down")
	}
	_, err := r.Add("* * * * * *", CloseJob(closer, time.Second, logger.NewNop()))
	require.NoError(t, err)

	r.Start()
	defer r.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestRunner_RejectsBadSpec(t *testing.T) {
	r := New(context.Background(), logger.NewNop())
	_, err := r.Add("every five seconds", func(context.Context) {})
	assert.Error(t, err)
}
