package logic

import "fmt"

// SensorFault is an acquisition or calibration failure. It aborts the
// current session without touching persisted state.
type SensorFault struct {
	Phase State
	Err   error
}

func (e *SensorFault) Error() string {
	return fmt.Sprintf("sensor fault during %s: %v", e.Phase, e.Err)
}

func (e *SensorFault) Unwrap() error {
	return e.Err
}

// StorageFault is a failure to persist a session result. The result of that
// cycle is lost; the daemon keeps running.
type StorageFault struct {
	Op  string // "highscore" or "log"
	Err error
}

func (e *StorageFault) Error() string {
	return fmt.Sprintf("storage fault (%s): %v", e.Op, e.Err)
}

func (e *StorageFault) Unwrap() error {
	return e.Err
}
