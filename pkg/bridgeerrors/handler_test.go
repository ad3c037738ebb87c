package bridgeerrors

import (
	"context"
	"errors"
	"sync"
	"testing"

	"unipi-control/pkg/logger"
)

type fakeDiagnosticPublisher struct {
	mu      sync.Mutex
	codes   []int
	message string
}

func (p *fakeDiagnosticPublisher) PublishDiagnostic(_ context.Context, code int, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes = append(p.codes, code)
	p.message = message
	return nil
}

func (p *fakeDiagnosticPublisher) codeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.codes)
}

func TestHandleNilErrorPublishesNothing(t *testing.T) {
	pub := &fakeDiagnosticPublisher{}
	h := NewErrorHandler(pub)
	h.Handle(context.Background(), nil)
	if pub.codeCount() != 0 {
		t.Error("expected no diagnostic for a nil error")
	}
}

func TestHandleDispatchesEachErrorTypeToDiagnostics(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"modbus", NewModbusError("read", errors.New("x"), "tcp", 1), 3},
		{"hardware", NewHardwareError("identify", errors.New("x"), "M503"), 2},
		{"mqtt", NewMqttError("publish", errors.New("x"), "tcp://broker"), 4},
		{"config", NewConfigError("load", errors.New("x"), "mqtt.broker"), 1},
		{"validation", NewValidationError("baud_rate", 9600, 1200), 5},
		{"generic", errors.New("untyped failure"), 99},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pub := &fakeDiagnosticPublisher{}
			h := NewErrorHandler(pub)
			h.Handle(context.Background(), c.err)
			if pub.codeCount() != 1 {
				t.Fatalf("expected exactly one diagnostic publish, got %d", pub.codeCount())
			}
			if pub.codes[0] != c.wantCode {
				t.Errorf("published code = %d, want %d", pub.codes[0], c.wantCode)
			}
		})
	}
}

func TestHandleWithoutPublisherDoesNotPanic(t *testing.T) {
	h := NewErrorHandler(nil)
	h.Handle(context.Background(), NewModbusError("read", errors.New("x"), "tcp", 1))
}

func TestHandleLogsAtSeverityThroughInjectedLogger(t *testing.T) {
	mock := logger.NewMockLogger()
	h := NewErrorHandlerWithLogger(nil, mock)

	h.Handle(context.Background(), NewModbusError("read", errors.New("x"), "tcp", 1))
	if !mock.HasErrorMessage() {
		t.Error("expected an Error-level severity to be logged as an error")
	}

	mock.Reset()
	h.Handle(context.Background(), NewValidationError("baud_rate", 9600, 1200))
	if !mock.HasWarnMessage() {
		t.Error("expected a validation error to be logged as a warning")
	}
	if mock.HasErrorMessage() {
		t.Error("did not expect an error-level message for a warning-severity failure")
	}
}
