package timex

import (
	"testing"
	"time"
)

func TestPeriodFromHz(t *testing.T) {
	if PeriodFromHz(0) != time.Second {
		t.Fatal("0 Hz should clamp to 1 Hz")
	}
	if PeriodFromHz(10) != 100*time.Millisecond {
		t.Fatalf("10 Hz=%v", PeriodFromHz(10))
	}
	if PeriodFromHz(1000) != time.Millisecond {
		t.Fatalf("1 kHz=%v", PeriodFromHz(1000))
	}
}
