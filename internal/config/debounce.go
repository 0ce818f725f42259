package config

import (
	"context"
	"sync"
	"time"
)

type debounce[T any] struct {
	timer     *time.Timer
	duration  time.Duration
	process   func(context.Context, T)
	logicLock sync.Mutex
	latest    T

	// generation invalidates timers which fired while a newer request or a
	// stop was waiting for the lock.
	generation int
}

func newDebounce[T any](duration time.Duration, process func(context.Context, T)) *debounce[T] {
	return &debounce[T]{
		duration: duration,
		process:  process,
	}
}

// request schedules process with the latest t, restarting the quiet period
// on every call.
func (d *debounce[T]) request(ctx context.Context, t T) {
	d.logicLock.Lock()
	defer d.logicLock.Unlock()
	d.latest = t
	d.generation++
	generation := d.generation
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, func() {
		d.logicLock.Lock()
		if generation != d.generation {
			d.logicLock.Unlock()
			return
		}
		d.timer = nil
		val := d.latest
		d.logicLock.Unlock()
		d.process(ctx, val)
	})
}

func (d *debounce[T]) stop() {
	d.logicLock.Lock()
	defer d.logicLock.Unlock()
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
