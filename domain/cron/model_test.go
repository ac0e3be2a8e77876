package cron

import (
	"testing"
	"time"

	"github.com/farant/smaragda/domain/tessella"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectSchedule(t *testing.T) {
	firedAt := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	nextAt := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	state := tessella.State{
		"expression":        "0 * * * *",
		"target_type":       TargetAction,
		"target_genus_id":   "01GEN",
		"target_config":     map[string]any{"bindings": map[string]any{"server": "01RES"}},
		"status":            ScheduleActive,
		"last_fired_at":     firedAt.Format(time.RFC3339Nano),
		"next_fire_at":      nextAt.Format(time.RFC3339Nano),
		"last_fired_minute": float64(123),
	}
	sched := projectSchedule("01SCHED", state)
	assert.Equal(t, tessella.ResID("01SCHED"), sched.ID)
	assert.Equal(t, "0 * * * *", sched.Expression)
	assert.Equal(t, TargetAction, sched.TargetType)
	assert.Equal(t, tessella.ResID("01GEN"), sched.TargetGenusID)
	assert.Equal(t, ScheduleActive, sched.Status)
	require.NotNil(t, sched.LastFiredAt)
	assert.True(t, firedAt.Equal(*sched.LastFiredAt))
	require.NotNil(t, sched.NextFireAt)
	assert.True(t, nextAt.Equal(*sched.NextFireAt))
	assert.Equal(t, int64(123), sched.LastFiredMinute)
}

func TestProjectSchedule_NoFireHistoryYet(t *testing.T) {
	sched := projectSchedule("01SCHED", tessella.State{"status": ScheduleActive})
	assert.Nil(t, sched.LastFiredAt)
	assert.Nil(t, sched.NextFireAt)
	assert.Zero(t, sched.LastFiredMinute)
}

func TestProjectTrigger(t *testing.T) {
	scheduledAt := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	state := tessella.State{
		"target_type":     TargetProcess,
		"target_genus_id": "01PROC",
		"target_config":   map[string]any{"context_res_id": "01CTX"},
		"scheduled_at":    scheduledAt.Format(time.RFC3339Nano),
		"status":          TriggerPending,
	}
	trig := projectTrigger("01TRIG", state)
	assert.Equal(t, TargetProcess, trig.TargetType)
	assert.Equal(t, tessella.ResID("01PROC"), trig.TargetGenusID)
	assert.True(t, scheduledAt.Equal(trig.ScheduledAt))
	assert.Equal(t, TriggerPending, trig.Status)
}
