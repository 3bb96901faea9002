// Package testing switches binaries into test mode when imported by test
// packages, so cmd mains return before touching Postgres or Redis.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

const testModeEnv = "ODYSSEY_TEST_MODE"

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(testModeEnv, "1")
		if os.Getenv("REPORT_TIMEZONE") == "" {
			_ = os.Setenv("REPORT_TIMEZONE", "UTC")
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be assigned from a package test to run m in test mode.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
