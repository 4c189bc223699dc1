package timex

import "time"

// PeriodFromHz returns the period of a tick running at freqHz.
// freqHz==0 is coerced to 1 to avoid division by zero.
func PeriodFromHz(freqHz uint32) time.Duration {
	if freqHz == 0 {
		freqHz = 1
	}
	return time.Second / time.Duration(freqHz)
}

// Since returns the elapsed time since start in whole milliseconds.
func Since(start time.Time) int64 { return time.Since(start).Milliseconds() }
