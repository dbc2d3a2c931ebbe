// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

// Package health tracks upstream provider availability from observed call
// outcomes.
package health

import (
	"sync"
	"time"
)

// failureThreshold is the number of consecutive failures after which a
// provider is reported unavailable.
const failureThreshold = 3

// cooldown is how long a provider stays unavailable after crossing the
// threshold, absent a successful call.
const cooldown = 30 * time.Second

// Metrics exposes the current health state of a provider for monitoring
// and operator visibility. All fields are point-in-time snapshots safe
// to serialize to JSON.
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}

// Tracker records call outcomes for one provider. Safe for concurrent use.
type Tracker struct {
	mu            sync.Mutex
	failures      int64
	consecutive   int
	lastFailureAt time.Time
	cooldownUntil time.Time

	now func() time.Time
}

// NewTracker returns a Tracker with no recorded outcomes.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Success records a successful call. Consecutive-failure state and any
// active cooldown are cleared.
func (t *Tracker) Success() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutive = 0
	t.cooldownUntil = time.Time{}
}

// Failure records a failed call. Crossing the consecutive-failure
// threshold starts a cooldown during which the provider reports
// unavailable.
func (t *Tracker) Failure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures++
	t.consecutive++
	t.lastFailureAt = t.now()
	if t.consecutive >= failureThreshold {
		t.cooldownUntil = t.lastFailureAt.Add(cooldown)
	}
}

// Snapshot returns the current metrics.
func (t *Tracker) Snapshot() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := Metrics{
		FailureCount: t.failures,
		Available:    t.cooldownUntil.IsZero() || t.now().After(t.cooldownUntil),
	}
	if !t.lastFailureAt.IsZero() {
		at := t.lastFailureAt
		m.LastFailureAt = &at
	}
	if !t.cooldownUntil.IsZero() {
		until := t.cooldownUntil
		m.CooldownUntil = &until
	}
	return m
}
