package queue

import "time"

// RetrySchedule returns the first n backoff delays and the attempt limit.
func (q *Queue) RetrySchedule(n int) ([]time.Duration, uint64) {
	b := q.backoff()
	delays := make([]time.Duration, 0, n)
	for range n {
		d, stop := b.Next()
		if stop {
			break
		}
		delays = append(delays, d)
	}
	return delays, q.maxAttempts
}
