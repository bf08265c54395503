package watch

import "time"

// maxRetryAttempts and backoff implement spec §4.12 step 8: "requeue with
// exponential backoff (3s x attempt, up to 2 attempts)", grounded on
// theweak1-file-maintenance's backoffForAttempt (a small capped table rather
// than unbounded exponential growth).
const maxRetryAttempts = 2

// backoffForAttempt returns the wait before retrying a failed watch job,
// attempt counting from 1.
func backoffForAttempt(attempt int) time.Duration {
	return time.Duration(attempt) * 3 * time.Second
}
