package domain

import "testing"

func TestRecordErrorBoundsWindow(t *testing.T) {
	m := &HealthMetrics{}
	for i := 0; i < MaxHealthErrorMessages+5; i++ {
		m.RecordError("err")
	}
	if len(m.ErrorMessages) != MaxHealthErrorMessages {
		t.Fatalf("expected window bounded to %d, got %d", MaxHealthErrorMessages, len(m.ErrorMessages))
	}
}
