package source

import (
	"context"
	"sync"
	"time"
)

// RateLimiter ограничивает число запросов в скользящем минутном окне.
// Явный объект с инжектируемыми часами вместо глобального состояния,
// часы подменяются в тестах
type RateLimiter struct {
	mu             sync.Mutex
	callsPerMinute int
	window         []time.Time
	now            func() time.Time
	sleep          func(context.Context, time.Duration) error
}

// NewRateLimiter создает ограничитель на callsPerMinute запросов в минуту
func NewRateLimiter(callsPerMinute int, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		callsPerMinute: callsPerMinute,
		now:            now,
		sleep:          sleepCtx,
	}
}

// Wait блокирует до освобождения слота в окне или отмены контекста
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.now()
		r.prune(now)

		if len(r.window) < r.callsPerMinute {
			r.window = append(r.window, now)
			r.mu.Unlock()
			return nil
		}

		wait := r.window[0].Add(time.Minute).Sub(now)
		r.mu.Unlock()

		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Remaining возвращает число свободных слотов в текущем окне
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(r.now())
	return r.callsPerMinute - len(r.window)
}

func (r *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	idx := 0
	for idx < len(r.window) && !r.window[idx].After(cutoff) {
		idx++
	}
	r.window = r.window[idx:]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
