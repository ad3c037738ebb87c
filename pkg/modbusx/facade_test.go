package modbusx

import (
	"errors"
	"testing"

	"unipi-control/pkg/bridgeerrors"
	"unipi-control/pkg/config"
)

func TestReadInputRegistersWrapsTCPConnectError(t *testing.T) {
	f := NewFacade(&config.Config{})
	defer f.Close()

	_, err := f.ReadInputRegisters(LaneTCP, 0, 1, 1)
	if err == nil {
		t.Fatal("expected an error: no Modbus TCP server is listening on localhost:502 in this test environment")
	}

	var modbusErr *bridgeerrors.ModbusError
	if !errors.As(err, &modbusErr) {
		t.Fatalf("error %v is not a *bridgeerrors.ModbusError", err)
	}
	if modbusErr.Unit != "tcp" {
		t.Errorf("Unit = %q, want tcp", modbusErr.Unit)
	}
}

func TestReadInputRegistersRTUWithoutDeviceConfigured(t *testing.T) {
	f := NewFacade(&config.Config{})
	defer f.Close()

	_, err := f.ReadInputRegisters(LaneRTU, 0, 1, 1)
	if err == nil {
		t.Fatal("expected an error selecting the RTU lane with no serial device configured")
	}

	var modbusErr *bridgeerrors.ModbusError
	if !errors.As(err, &modbusErr) {
		t.Fatalf("error %v is not a *bridgeerrors.ModbusError", err)
	}
	if modbusErr.Unit != "rtu" {
		t.Errorf("Unit = %q, want rtu", modbusErr.Unit)
	}
}

func TestWriteCoilReportsHealthHookOnError(t *testing.T) {
	f := NewFacade(&config.Config{})
	defer f.Close()

	var reportedLane Lane
	var reportedErr error
	called := false
	f.SetHealthHook(func(lane Lane, err error) {
		called = true
		reportedLane = lane
		reportedErr = err
	})

	_ = f.WriteCoil(LaneTCP, 0, true, 1)

	if !called {
		t.Fatal("expected the health hook to be invoked")
	}
	if reportedLane != LaneTCP {
		t.Errorf("reported lane = %v, want LaneTCP", reportedLane)
	}
	if reportedErr == nil {
		t.Error("expected the health hook to report the connect failure")
	}
}

func TestBytesToRegistersPacksBigEndianPairs(t *testing.T) {
	got := bytesToRegisters([]byte{0x01, 0x02, 0x00, 0xFF})
	want := []uint16{0x0102, 0x00FF}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestBytesToRegistersIgnoresTrailingOddByte(t *testing.T) {
	got := bytesToRegisters([]byte{0x00, 0x01, 0x02})
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1 (trailing odd byte dropped)", len(got))
	}
}
