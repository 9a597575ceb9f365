package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/autopress/internal/model"
	"github.com/d60-Lab/autopress/internal/repository"
)

type countingSweeper struct {
	mu   sync.Mutex
	opts []RunOptions
	ran  chan struct{}
}

func (c *countingSweeper) Run(ctx context.Context, opts RunOptions) SweepResult {
	c.mu.Lock()
	c.opts = append(c.opts, opts)
	c.mu.Unlock()
	if c.ran != nil {
		c.ran <- struct{}{}
	}
	if !opts.BotEnabled {
		return SweepResult{Skipped: true}
	}
	return SweepResult{RunID: "run-1", Accounts: 2, Inserted: 3}
}

func (c *countingSweeper) runs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.opts)
}

func TestScheduler_RunOnceReadsBotFlag(t *testing.T) {
	db := setupTestDB(t)
	settings := repository.NewSettingRepository(db)
	sw := &countingSweeper{}
	s := NewScheduler(sw, settings, time.Hour)
	ctx := context.Background()

	res := s.RunOnce(ctx)
	assert.True(t, res.Skipped)
	require.Len(t, sw.opts, 1)
	assert.False(t, sw.opts[0].BotEnabled)
	_, ok, err := settings.GetString(ctx, model.SettingBotLastRunAt)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, settings.Set(ctx, model.SettingBotEnabled, "true"))
	require.NoError(t, settings.Set(ctx, model.SettingAutoMode, "true"))
	res = s.RunOnce(ctx)
	assert.False(t, res.Skipped)
	require.Len(t, sw.opts, 2)
	assert.True(t, sw.opts[1].BotEnabled)
	assert.True(t, sw.opts[1].Settings.AutoMode)

	at, ok, err := settings.GetString(ctx, model.SettingBotLastRunAt)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = time.Parse(time.RFC3339, at)
	assert.NoError(t, err)

	raw, ok, err := settings.GetString(ctx, model.SettingBotLastResult)
	require.NoError(t, err)
	require.True(t, ok)
	var last SweepResult
	require.NoError(t, json.Unmarshal([]byte(raw), &last))
	assert.Equal(t, 3, last.Inserted)
	assert.Equal(t, &res, s.Last())
}

func TestScheduler_StartAndTrigger(t *testing.T) {
	db := setupTestDB(t)
	sw := &countingSweeper{ran: make(chan struct{}, 8)}
	s := NewScheduler(sw, repository.NewSettingRepository(db), time.Hour)

	stop := s.Start()
	waitRun(t, sw.ran)

	assert.True(t, s.Trigger())
	waitRun(t, sw.ran)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, stop(ctx))
	assert.Equal(t, 2, sw.runs())
}

func TestScheduler_TriggerDropsWhenPending(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, nil, time.Hour)
	assert.True(t, s.Trigger())
	assert.False(t, s.Trigger())
}

func waitRun(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not run")
	}
}
