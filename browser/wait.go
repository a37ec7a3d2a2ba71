package browser

import (
	"context"
	"time"
)

// stableInterval is how often the DOM is sampled while waiting for it to settle.
const stableInterval = 300 * time.Millisecond

// sleepCtx pauses for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// domProbe returns a cheap fingerprint of the current document, such as its
// serialized length. Equal consecutive samples mean nothing changed.
type domProbe func(ctx context.Context) (int, error)

// waitStable samples probe every interval and returns once two consecutive
// samples match, or when max has elapsed. Probe errors end the wait early
// without failing it: the caller reads whatever the page holds. Only the
// caller's context ending is reported.
func waitStable(ctx context.Context, max, interval time.Duration, probe domProbe) error {
	if max <= 0 {
		return nil
	}
	if interval <= 0 || interval > max {
		interval = max
	}

	deadline := time.Now().Add(max)
	last, err := probe(ctx)
	if err != nil {
		return ctx.Err()
	}

	for {
		step := interval
		if remaining := time.Until(deadline); remaining < step {
			step = remaining
		}
		if step <= 0 {
			return nil
		}
		if err := sleepCtx(ctx, step); err != nil {
			return err
		}

		cur, err := probe(ctx)
		if err != nil {
			return ctx.Err()
		}
		if cur == last {
			return nil
		}
		last = cur
	}
}
