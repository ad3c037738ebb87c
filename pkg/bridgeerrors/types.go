package bridgeerrors

import (
	"errors"
	"fmt"
)

// ErrNotWritable is returned when a cover's cover_up/cover_down reference
// resolves to a feature that does not implement Writable (e.g. a DI).
var ErrNotWritable = errors.New("feature is not writable")

// ErrorSeverity defines the severity level of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// BridgeError is the base error type all daemon errors embed
type BridgeError struct {
	Op       string
	Err      error
	Severity ErrorSeverity
	Code     int
}

func (e *BridgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Severity, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Severity, e.Op)
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

// ConfigError represents errors loading or validating control.yaml
type ConfigError struct {
	BridgeError
	Field string
}

func NewConfigError(op string, err error, field string) *ConfigError {
	return &ConfigError{
		BridgeError: BridgeError{Op: op, Err: err, Severity: SeverityCritical, Code: 1},
		Field:       field,
	}
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] config field '%s': %s: %v", e.Severity, e.Field, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] config: %s: %v", e.Severity, e.Op, e.Err)
}

// HardwareError represents errors resolving the hardware map (EEPROM model
// read, missing board/extension YAML definitions)
type HardwareError struct {
	BridgeError
	Model string
}

func NewHardwareError(op string, err error, model string) *HardwareError {
	return &HardwareError{
		BridgeError: BridgeError{Op: op, Err: err, Severity: SeverityCritical, Code: 2},
		Model:       model,
	}
}

func (e *HardwareError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("[%s] hardware '%s': %s: %v", e.Severity, e.Model, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] hardware: %s: %v", e.Severity, e.Op, e.Err)
}

// ModbusError represents errors from the register cache / driver façade
type ModbusError struct {
	BridgeError
	Unit    string
	Address uint16
}

func NewModbusError(op string, err error, unit string, address uint16) *ModbusError {
	return &ModbusError{
		BridgeError: BridgeError{Op: op, Err: err, Severity: SeverityError, Code: 3},
		Unit:        unit,
		Address:     address,
	}
}

func (e *ModbusError) Error() string {
	return fmt.Sprintf("[%s] modbus unit '%s' addr %d: %s: %v",
		e.Severity, e.Unit, e.Address, e.Op, e.Err)
}

// MqttError represents errors from the MQTT engine
type MqttError struct {
	BridgeError
	Broker string
	Topic  string
}

func NewMqttError(op string, err error, broker string) *MqttError {
	return &MqttError{
		BridgeError: BridgeError{Op: op, Err: err, Severity: SeverityError, Code: 4},
		Broker:      broker,
	}
}

func (e *MqttError) Error() string {
	if e.Topic != "" {
		return fmt.Sprintf("[%s] mqtt broker '%s' (topic %s): %s: %v",
			e.Severity, e.Broker, e.Topic, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] mqtt broker '%s': %s: %v", e.Severity, e.Broker, e.Op, e.Err)
}

// UnexpectedError wraps a panic-recovery or otherwise unclassified failure
type UnexpectedError struct {
	BridgeError
}

func NewUnexpectedError(op string, err error) *UnexpectedError {
	return &UnexpectedError{
		BridgeError: BridgeError{Op: op, Err: err, Severity: SeverityCritical, Code: 99},
	}
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("[%s] unexpected: %s: %v", e.Severity, e.Op, e.Err)
}

// ValidationError represents a single field validation failure gathered
// during Config.Validate()
type ValidationError struct {
	BridgeError
	Field    string
	Expected interface{}
	Actual   interface{}
}

func NewValidationError(field string, expected, actual interface{}) *ValidationError {
	return &ValidationError{
		BridgeError: BridgeError{Op: "validation", Err: fmt.Errorf("validation failed"), Severity: SeverityWarning, Code: 5},
		Field:       field,
		Expected:    expected,
		Actual:      actual,
	}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] field '%s': expected %v, got %v", e.Severity, e.Field, e.Expected, e.Actual)
}
