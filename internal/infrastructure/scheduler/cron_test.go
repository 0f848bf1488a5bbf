package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddRejectsBadSpec(t *testing.T) {
	c := NewCron(time.UTC)
	require.Error(t, c.Add("not a cron spec", func() {}))
	require.NoError(t, c.Add("*/10 * * * *", func() {}))
}

func TestStartStop(t *testing.T) {
	c := NewCron(time.UTC)
	require.NoError(t, c.Add("0 0 1 1 *", func() {}))

	c.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
}
