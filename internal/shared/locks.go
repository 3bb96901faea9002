package shared

import "fmt"

// JobLockKey builds redis keys guarding per-business background jobs.
func JobLockKey(job string, businessID int64) string {
	return fmt.Sprintf("ledger:job:%s:%d:lock", job, businessID)
}
