package cron

import (
	"testing"
	"time"

	"github.com/farant/smaragda/domain/tessella"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextFire_EveryMinute(t *testing.T) {
	after := time.Date(2026, 7, 30, 10, 15, 30, 0, time.UTC)
	next, err := nextFire("* * * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 30, 10, 16, 0, 0, time.UTC), next)
}

func TestNextFire_Daily(t *testing.T) {
	after := time.Date(2026, 7, 30, 10, 15, 0, 0, time.UTC)
	next, err := nextFire("0 0 * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC), next)
}

func TestNextFire_InvalidExpression(t *testing.T) {
	_, err := nextFire("not a cron expression", time.Now())
	assert.Error(t, err)
}

func TestMinuteKey(t *testing.T) {
	a := time.Date(2026, 7, 30, 10, 15, 5, 0, time.UTC)
	b := time.Date(2026, 7, 30, 10, 15, 59, 0, time.UTC)
	c := time.Date(2026, 7, 30, 10, 16, 0, 0, time.UTC)
	assert.Equal(t, minuteKey(a), minuteKey(b))
	assert.NotEqual(t, minuteKey(a), minuteKey(c))
}

func TestDueSchedule(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 16, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, dueSchedule(Schedule{Status: ScheduleActive, NextFireAt: &past}, now))
	assert.False(t, dueSchedule(Schedule{Status: SchedulePaused, NextFireAt: &past}, now), "paused never fires")
	assert.False(t, dueSchedule(Schedule{Status: ScheduleActive, NextFireAt: &future}, now), "not due yet")
	assert.False(t, dueSchedule(Schedule{Status: ScheduleActive, NextFireAt: nil}, now), "no next_fire_at never fires")
	assert.False(t, dueSchedule(Schedule{Status: ScheduleActive, NextFireAt: &past, LastFiredMinute: minuteKey(now)}, now), "already fired this minute")
}

func TestDueTrigger(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 16, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, dueTrigger(ScheduledTrigger{Status: TriggerPending, ScheduledAt: past}, now))
	assert.False(t, dueTrigger(ScheduledTrigger{Status: TriggerFired, ScheduledAt: past}, now), "already fired")
	assert.False(t, dueTrigger(ScheduledTrigger{Status: TriggerPending, ScheduledAt: future}, now), "not due yet")
}

func TestSplitConfig(t *testing.T) {
	config := map[string]any{
		"bindings": map[string]any{"server": "01RES", "ignored": 42},
		"params":   map[string]any{"version": "1.2.3"},
	}
	bindings, params := splitConfig(config)
	assert.Equal(t, map[string]tessella.ResID{"server": "01RES"}, bindings)
	assert.Equal(t, map[string]any{"version": "1.2.3"}, params)
}

func TestSplitConfig_Empty(t *testing.T) {
	bindings, params := splitConfig(nil)
	assert.Empty(t, bindings)
	assert.Empty(t, params)
	assert.NotNil(t, bindings)
	assert.NotNil(t, params)
}

func TestContextResID(t *testing.T) {
	id := contextResID(map[string]any{"context_res_id": "01CTX"})
	require.NotNil(t, id)
	assert.Equal(t, tessella.ResID("01CTX"), *id)

	assert.Nil(t, contextResID(map[string]any{}))
	assert.Nil(t, contextResID(map[string]any{"context_res_id": ""}))
}
