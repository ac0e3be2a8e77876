package cron

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/farant/smaragda/domain/tessella"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextFire parses a standard five-field cron expression and returns the
// first fire time strictly after after.
func nextFire(expression string, after time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expression)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(after), nil
}

// minuteKey is the per-minute dedup key a schedule's last fire is
// compared against: a schedule fires at most once per (schedule_id,
// minute(now)).
func minuteKey(t time.Time) int64 {
	return t.UTC().Truncate(time.Minute).Unix()
}

// dueSchedule reports whether sched should fire at now: active, past its
// next fire time, and not already fired this minute.
func dueSchedule(sched Schedule, now time.Time) bool {
	if sched.Status != ScheduleActive {
		return false
	}
	if sched.NextFireAt == nil || sched.NextFireAt.After(now) {
		return false
	}
	return sched.LastFiredMinute != minuteKey(now)
}

// dueTrigger reports whether a one-shot trigger should fire at now.
func dueTrigger(trig ScheduledTrigger, now time.Time) bool {
	return trig.Status == TriggerPending && !trig.ScheduledAt.After(now)
}

// splitConfig pulls the resource bindings and action/process parameters
// out of a schedule or trigger's free-form target_config, defaulting
// both to empty (never nil) so callers never need a presence check.
func splitConfig(config map[string]any) (bindings map[string]tessella.ResID, params map[string]any) {
	bindings = map[string]tessella.ResID{}
	if raw, ok := config["bindings"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				bindings[k] = tessella.ResID(s)
			}
		}
	}
	params, _ = config["params"].(map[string]any)
	if params == nil {
		params = map[string]any{}
	}
	return bindings, params
}

// contextResID extracts the optional process context_res_id from a
// schedule or trigger's target_config.
func contextResID(config map[string]any) *tessella.ResID {
	raw, ok := config["context_res_id"].(string)
	if !ok || raw == "" {
		return nil
	}
	id := tessella.ResID(raw)
	return &id
}
