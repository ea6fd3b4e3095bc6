package sim

import "time"

// DefaultMaxEventsPerBucket bounds how many events a single timestamp may
// execute.
const DefaultMaxEventsPerBucket = 10000

// bucketQuota counts executions within the current bucket. Distinct
// timestamps always terminate; the quota catches an event that keeps
// posting work for its own instant.
type bucketQuota struct {
	limit   int
	current int
}

func (q *bucketQuota) check(at time.Time) error {
	q.current++
	if q.limit > 0 && q.current > q.limit {
		return newQuotaError(at, q.current-1, q.limit)
	}
	return nil
}

func (q *bucketQuota) reset() { q.current = 0 }
