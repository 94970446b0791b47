package kgo

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryState is the opaque accumulator a RetryPolicy advances
// (spec §4.F, §6, GLOSSARY "Retry state").
type RetryState struct {
	attempt int
	backoff backoff.BackOff
}

// Attempt returns how many times awaitNextState has successfully advanced
// this state (0 before the first attempt).
func (s RetryState) Attempt() int { return s.attempt }

// RetryPolicy is the backoff/attempt-budget collaborator (spec §6).
// It is backed by github.com/cenkalti/backoff/v4, the out-of-scope
// "retry-policy scheduling arithmetic" helper spec §1 names.
type RetryPolicy interface {
	// newState returns the initial RetryState for a fresh attempt
	// sequence.
	newState() RetryState

	// awaitNextState performs the backoff delay for state's next
	// attempt and returns the advanced state, or false if the attempt
	// budget is exhausted.
	awaitNextState(ctx context.Context, state RetryState) (RetryState, bool)
}

type policy struct {
	build func() backoff.BackOff
}

func (p *policy) newState() RetryState {
	return RetryState{backoff: p.build()}
}

func (p *policy) awaitNextState(ctx context.Context, state RetryState) (RetryState, bool) {
	d := state.backoff.NextBackOff()
	if d == backoff.Stop {
		return state, false
	}
	state.attempt++
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return state, true
	case <-ctx.Done():
		return state, false
	}
}

// ConstantBoundedMs retries at a fixed delay up to maxAttempts times after
// the first attempt (spec §6 constructors; default bootstrap policy is
// constant 1000ms, 3 attempts, and default request policy is
// constant 1000ms, 20 attempts per spec §6 configuration table).
func ConstantBoundedMs(delayMs int64, maxAttempts int) RetryPolicy {
	return &policy{build: func() backoff.BackOff {
		b := backoff.NewConstantBackOff(time.Duration(delayMs) * time.Millisecond)
		return backoff.WithMaxRetries(b, uint64(maxAttempts))
	}}
}

// ExpRandLimitBoundedMs retries with exponential backoff randomized by
// jitter, capped at capMs, up to maxAttempts times after the first
// attempt (spec §6 constructors).
func ExpRandLimitBoundedMs(baseMs int64, factor float64, jitter float64, capMs int64, maxAttempts int) RetryPolicy {
	return &policy{build: func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = time.Duration(baseMs) * time.Millisecond
		b.Multiplier = factor
		b.RandomizationFactor = jitter
		b.MaxInterval = time.Duration(capMs) * time.Millisecond
		b.MaxElapsedTime = 0 // bounded by attempts, not wall clock
		return backoff.WithMaxRetries(b, uint64(maxAttempts))
	}}
}

func defaultBootstrapRetryPolicy() RetryPolicy { return ConstantBoundedMs(1000, 3) }
func defaultRequestRetryPolicy() RetryPolicy   { return ConstantBoundedMs(1000, 20) }
