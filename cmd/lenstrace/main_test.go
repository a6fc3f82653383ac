package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRunShutdownsReversesAndClears(t *testing.T) {
	var order []int
	shutdowns = []func(){
		func() { order = append(order, 0) },
		func() { order = append(order, 1) },
		func() { order = append(order, 2) },
	}

	runShutdowns()
	if diff := cmp.Diff(order, []int{2, 1, 0}); diff != "" {
		t.Errorf("Bad shutdown order; diff (-got +want)\n%s", diff)
	}

	// The error path in main and PersistentPostRun may both run; hooks fire once.
	runShutdowns()
	if len(order) != 3 {
		t.Errorf("Shutdown hooks ran %d times, want 3", len(order))
	}
}
