package engine

import (
	"context"
	"time"
)

// Drive runs the controller on the calling goroutine until res delivers a
// result or ctx is done. It is the single-operation form of the scheduler loop.
func Drive(ctx context.Context, c *Controller, res <-chan Result) (Result, error) {
	for {
		select {
		case r := <-res:
			return r, nil
		default:
		}

		next := c.NextRunTime(c.now())
		if next == 0 {
			c.Run(ctx)
			continue
		}

		var timer *time.Timer
		var fire <-chan time.Time
		if next != Never {
			timer = time.NewTimer(time.Until(time.UnixMilli(next)))
			fire = timer.C
		}
		select {
		case r := <-res:
			stopTimer(timer)
			return r, nil
		case <-c.Wake():
		case <-fire:
		case <-ctx.Done():
			stopTimer(timer)
			return Result{}, ctx.Err()
		}
		stopTimer(timer)
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
