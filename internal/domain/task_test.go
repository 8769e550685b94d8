package domain

import "testing"

func TestRequestCancel(t *testing.T) {
	task := &AnalysisTask{Status: TaskProcessing}
	if task.CancelRequested() {
		t.Fatal("expected no cancel requested initially")
	}
	task.RequestCancel()
	if !task.CancelRequested() {
		t.Fatal("expected cancel requested after RequestCancel")
	}
}
