// Package cron implements recurring schedules and one-shot scheduled
// triggers: sentinel entities that fire an action or start a process on
// a timer, ticked externally at a fixed cadence.
package cron

import (
	"time"

	"github.com/farant/smaragda/domain/tessella"
)

// Target type discriminant shared by Schedule and ScheduledTrigger.
const (
	TargetAction  = "action"
	TargetProcess = "process"
)

// Schedule status values.
const (
	ScheduleActive = "active"
	SchedulePaused = "paused"
)

// ScheduledTrigger status values.
const (
	TriggerPending = "pending"
	TriggerFired   = "fired"
)

// Schedule is the projected view of a cron schedule sentinel entity.
type Schedule struct {
	ID              tessella.ResID
	Expression      string
	TargetType      string
	TargetGenusID   tessella.ResID
	TargetConfig    map[string]any
	Status          string
	LastFiredAt     *time.Time
	NextFireAt      *time.Time
	LastFiredMinute int64
}

// ScheduledTrigger is the projected view of a one-shot trigger sentinel
// entity.
type ScheduledTrigger struct {
	ID            tessella.ResID
	TargetType    string
	TargetGenusID tessella.ResID
	TargetConfig  map[string]any
	ScheduledAt   time.Time
	Status        string
}

func projectSchedule(id tessella.ResID, state tessella.State) Schedule {
	s := Schedule{
		ID:            id,
		Status:        stringAttr(state, "status"),
		TargetType:    stringAttr(state, "target_type"),
		TargetGenusID: tessella.ResID(stringAttr(state, "target_genus_id")),
		Expression:    stringAttr(state, "expression"),
	}
	if cfg, ok := state["target_config"].(map[string]any); ok {
		s.TargetConfig = cfg
	}
	s.LastFiredAt = timeAttr(state, "last_fired_at")
	s.NextFireAt = timeAttr(state, "next_fire_at")
	if v, ok := state["last_fired_minute"].(float64); ok {
		s.LastFiredMinute = int64(v)
	}
	return s
}

func projectTrigger(id tessella.ResID, state tessella.State) ScheduledTrigger {
	t := ScheduledTrigger{
		ID:            id,
		Status:        stringAttr(state, "status"),
		TargetType:    stringAttr(state, "target_type"),
		TargetGenusID: tessella.ResID(stringAttr(state, "target_genus_id")),
	}
	if cfg, ok := state["target_config"].(map[string]any); ok {
		t.TargetConfig = cfg
	}
	if at := timeAttr(state, "scheduled_at"); at != nil {
		t.ScheduledAt = *at
	}
	return t
}

func stringAttr(state tessella.State, key string) string {
	v, _ := state[key].(string)
	return v
}

// timeAttr parses an RFC3339 string attribute. Time values round-trip
// through tessella storage as JSON, so by the time a reader sees them
// again they are plain strings, never time.Time.
func timeAttr(state tessella.State, key string) *time.Time {
	raw, ok := state[key].(string)
	if !ok || raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	return &t
}
