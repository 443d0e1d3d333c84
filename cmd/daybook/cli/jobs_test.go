package cli

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook/daybook/jobs"
)

func TestTriggerRejectsUnknownJob(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewJobsCLI(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Trigger(context.Background(), "mail:send", "")
	assert.Error(t, err)
}

func TestQueueStatsString(t *testing.T) {
	s := QueueStats{Queue: "default", Pending: 2}
	assert.Contains(t, s.String(), "pending=2")
}

func TestTriggerValidatesWarmupDay(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewJobsCLI(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Trigger(context.Background(), jobs.TaskDashboardWarmup, "tomorrow")
	assert.Error(t, err)
}

func TestNewJobsCLIRejectsEmptyAddress(t *testing.T) {
	_, err := NewJobsCLI("")
	assert.Error(t, err)
}
