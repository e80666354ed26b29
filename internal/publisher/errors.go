package publisher

import (
	"errors"
	"fmt"
	"time"
)

// ErrSessionLost means the browser session disappeared mid-attempt. The
// machine aborts immediately without touching the page again.
var ErrSessionLost = errors.New("publisher: session lost")

// StageTimeoutError reports a stage whose awaited UI condition never showed
// up within its timeout.
type StageTimeoutError struct {
	Stage   StageID
	Timeout time.Duration
}

func (e *StageTimeoutError) Error() string {
	return fmt.Sprintf("publisher: stage %s timed out after %s", e.Stage, e.Timeout)
}

// CriticalError marks failures after content was already generated: the
// composer surface could not be opened, filled, or submitted. This is lost
// work and deserves the loudest signal.
type CriticalError struct {
	Stage StageID
	Err   error
}

func (e *CriticalError) Error() string {
	return fmt.Sprintf("publisher: critical failure at stage %s: %v", e.Stage, e.Err)
}

func (e *CriticalError) Unwrap() error { return e.Err }
