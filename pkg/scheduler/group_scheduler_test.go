package scheduler

import (
	"context"
	"testing"
	"time"

	"unipi-control/pkg/config"
	"unipi-control/pkg/hardware"
	"unipi-control/pkg/modbusx"
)

func TestLaneSchedulerStopsOnContextCancel(t *testing.T) {
	cache := modbusx.NewRegisterCache()
	hwMap := hardware.HardwareMap{
		"PLC": {Unit: 0, Type: hardware.HardwareTypePLC, RegisterBlocks: []hardware.RegisterBlock{
			{StartRegister: 0, Count: 1, Unit: 1},
		}},
	}

	facade := modbusx.NewFacade(&config.Config{})
	s := New(facade, cache, hwMap, nil)
	s.tcpInterval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}
