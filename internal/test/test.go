package test

import (
	"os"
	"os/exec"
	"testing"
)

// Integration skips the test unless integration tests are enabled via the
// PLOTPIPE_INTEG env var.
func Integration(t *testing.T) {
	if os.Getenv("PLOTPIPE_INTEG") == "" {
		t.Skip("skipping integration test, set PLOTPIPE_INTEG=1 to run")
	}
}

// RequireGnuplot skips the test if there is no gnuplot binary on the PATH.
func RequireGnuplot(t *testing.T) {
	if _, err := exec.LookPath("gnuplot"); err != nil {
		t.Skip("skipping test, no gnuplot binary found on PATH")
	}
}
