package notify

import "time"

// Started publishes the started stage for an op.
func Started(b Bus, op Op, message string) {
	if b == nil {
		return
	}
	b.Publish(Event{Op: op, Stage: StageStarted, Level: LevelInfo, Message: message})
}

// Succeeded publishes a success toast for an op.
func Succeeded(b Bus, op Op, message string, elapsed time.Duration) {
	if b == nil {
		return
	}
	b.Publish(Event{Op: op, Stage: StageSucceeded, Level: LevelSuccess, Message: message, Elapsed: elapsed})
}

// Failed publishes an error toast for an op. The failure is always
// surfaced; a mutation that did not take effect must be visible.
func Failed(b Bus, op Op, message string, err error, elapsed time.Duration) {
	if b == nil {
		return
	}
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	b.Publish(Event{Op: op, Stage: StageFailed, Level: LevelError, Message: message, Err: errStr, Elapsed: elapsed})
}

// Warn publishes a warning toast outside the started/succeeded/failed
// lifecycle, e.g. a restored session that failed background validation.
func Warn(b Bus, op Op, message string) {
	if b == nil {
		return
	}
	b.Publish(Event{Op: op, Stage: StageFailed, Level: LevelWarning, Message: message})
}
