//go:build unix

package main

import (
	"os"
	"syscall"
)

// triggerSignals start a session without a button press.
var triggerSignals = []os.Signal{syscall.SIGUSR1}
