// Package jitter содержит политику повторов с экспоненциальной задержкой и джиттером.
package jitter

import (
	"context"
	"math/rand/v2"
	"time"
)

// DefaultJitter — стандартный коэффициент джиттера (50%)
const DefaultJitter = 0.5

// Duration возвращает продолжительность с применённым джиттером в диапазоне [d, d*(1+factor)].
func Duration(d time.Duration, factor float64) time.Duration {
	if d <= 0 || factor <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*factor*float64(d))
}

// Backoff описывает политику повторов.
type Backoff struct {
	Base     time.Duration // задержка перед второй попыткой
	Max      time.Duration // верхняя граница задержки без учёта джиттера
	Attempts int           // общее число попыток, минимум 1
	Factor   float64       // коэффициент джиттера
}

// Delay возвращает задержку после попытки attempt (нумерация с нуля) без джиттера.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	return d
}

// Retry вызывает fn, пока она не вернёт nil, не исчерпаются попытки или не отменится ctx.
// retryable решает, стоит ли повторять конкретную ошибку; nil означает «повторять всё».
// onRetry вызывается перед каждым ожиданием и может быть nil.
func Retry(
	ctx context.Context,
	b Backoff,
	retryable func(error) bool,
	onRetry func(attempt int, delay time.Duration, err error),
	fn func(ctx context.Context) error,
) error {
	attempts := max(b.Attempts, 1)

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		delay := Duration(b.Delay(attempt), b.Factor)
		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return err
}
