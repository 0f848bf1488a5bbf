package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"courtwatch/internal/ports"
)

const fallbackCooldown = 30 * time.Minute

// Span is a daily time-of-day interval [From, To) in "HH:MM" form.
// A span wrapping midnight (From > To) covers the overnight hours.
// Minutes is the cooldown applied inside the span; it is ignored for
// quiet spans.
type Span struct {
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Minutes int    `yaml:"minutes"`
}

// Policy is one source's polling cadence as a function of local
// time-of-day: peak/taper windows carry their own cooldown, quiet spans
// block runs outright, and everything else falls back to DefaultMinutes.
type Policy struct {
	Timezone       string `yaml:"timezone"`
	DefaultMinutes int    `yaml:"defaultMinutes"`
	Windows        []Span `yaml:"windows"`
	Quiet          []Span `yaml:"quiet"`
}

// CooldownAt resolves the cooldown in force at the given instant.
// ok=false means the instant falls in a quiet span and the source must
// not run at all, independent of elapsed time.
func (p Policy) CooldownAt(now time.Time) (time.Duration, bool) {
	local := now.In(p.location())
	minute := local.Hour()*60 + local.Minute()

	for _, span := range p.Quiet {
		if span.contains(minute) {
			return 0, false
		}
	}
	for _, span := range p.Windows {
		if span.contains(minute) {
			return time.Duration(span.Minutes) * time.Minute, true
		}
	}
	if p.DefaultMinutes > 0 {
		return time.Duration(p.DefaultMinutes) * time.Minute, true
	}
	return fallbackCooldown, true
}

func (p Policy) location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s Span) contains(minuteOfDay int) bool {
	from, errFrom := parseMinute(s.From)
	to, errTo := parseMinute(s.To)
	if errFrom != nil || errTo != nil {
		return false
	}
	if from <= to {
		return minuteOfDay >= from && minuteOfDay < to
	}
	return minuteOfDay >= from || minuteOfDay < to
}

func parseMinute(value string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad time-of-day %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("bad hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("bad minute in %q", value)
	}
	return hour*60 + minute, nil
}

// Gate combines a policy with the durable run-state map. Every adapter
// asks ShouldRun before touching the network and calls RecordRun after
// the attempt, whether or not it produced data.
type Gate struct {
	states ports.RunStateStore
	now    func() time.Time
}

// NewGate wires the run-state store; clock defaults to time.Now.
func NewGate(states ports.RunStateStore, clock func() time.Time) *Gate {
	if clock == nil {
		clock = time.Now
	}
	return &Gate{states: states, now: clock}
}

// ShouldRun reports whether enough wall-clock time has elapsed since the
// recorded run for this source under its policy. A source with no
// recorded run may always run outside quiet spans.
func (g *Gate) ShouldRun(ctx context.Context, name string, p Policy) (bool, error) {
	now := g.now()

	cooldown, ok := p.CooldownAt(now)
	if !ok {
		return false, nil
	}

	last, err := g.states.LastRun(ctx, name)
	if err != nil {
		return false, fmt.Errorf("load run state for %s: %w", name, err)
	}
	if last == nil {
		return true, nil
	}
	return now.Sub(*last) >= cooldown, nil
}

// RecordRun stamps the current time for the source unconditionally, so a
// failing source cannot fall into a tight retry loop.
func (g *Gate) RecordRun(ctx context.Context, name string) error {
	if err := g.states.RecordRun(ctx, name, g.now()); err != nil {
		return fmt.Errorf("record run for %s: %w", name, err)
	}
	return nil
}
