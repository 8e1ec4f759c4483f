package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCleanShutdown(t *testing.T) {
	if !cleanShutdown(context.Canceled) {
		t.Error("bare cancellation not recognized as clean shutdown")
	}
	if !cleanShutdown(fmt.Errorf("oracle mode: %w", context.Canceled)) {
		t.Error("wrapped cancellation not recognized as clean shutdown")
	}
	if cleanShutdown(errors.New("listen tcp :8000: address already in use")) {
		t.Error("real failure treated as clean shutdown")
	}
}
