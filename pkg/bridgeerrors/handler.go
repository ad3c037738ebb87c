package bridgeerrors

import (
	"context"
	"fmt"
	"unipi-control/pkg/logger"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	diagnosticPublisher DiagnosticPublisher
	logger              logger.ILogger
}

// DiagnosticPublisher publishes a bridge-level diagnostic message over MQTT
type DiagnosticPublisher interface {
	PublishDiagnostic(ctx context.Context, code int, message string) error
}

// NewErrorHandler creates a new error handler using the global log functions.
func NewErrorHandler(publisher DiagnosticPublisher) *ErrorHandler {
	return &ErrorHandler{diagnosticPublisher: publisher, logger: logger.NewStandardLogger()}
}

// NewErrorHandlerWithLogger creates a new error handler against an injected
// logger, letting tests assert on a MockLogger instead of global output.
func NewErrorHandlerWithLogger(publisher DiagnosticPublisher, log logger.ILogger) *ErrorHandler {
	return &ErrorHandler{diagnosticPublisher: publisher, logger: log}
}

// Handle processes an error with appropriate logging and diagnostics
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	switch e := err.(type) {
	case *HardwareError:
		h.handleHardwareError(ctx, e)
	case *ModbusError:
		h.handleModbusError(ctx, e)
	case *MqttError:
		h.handleMqttError(ctx, e)
	case *ConfigError:
		h.handleConfigError(ctx, e)
	case *ValidationError:
		h.handleValidationError(ctx, e)
	case *BridgeError:
		h.handleBridgeError(ctx, e)
	default:
		h.handleGenericError(ctx, err)
	}
}

func (h *ErrorHandler) handleHardwareError(ctx context.Context, err *HardwareError) {
	switch err.Severity {
	case SeverityCritical:
		h.logger.LogError("🔴 CRITICAL Hardware Error: %s", err.Error())
	case SeverityError:
		h.logger.LogError("❌ Hardware Error: %s", err.Error())
	case SeverityWarning:
		h.logger.LogWarn("⚠️ Hardware Warning: %s", err.Error())
	default:
		h.logger.LogInfo("ℹ️ Hardware Info: %s", err.Error())
	}

	if h.diagnosticPublisher != nil {
		message := fmt.Sprintf("Hardware '%s': %s", err.Model, err.Op)
		if publishErr := h.diagnosticPublisher.PublishDiagnostic(ctx, err.Code, message); publishErr != nil {
			h.logger.LogDebug("Failed to publish hardware error diagnostic: %v", publishErr)
		}
	}
}

func (h *ErrorHandler) handleModbusError(ctx context.Context, err *ModbusError) {
	switch err.Severity {
	case SeverityCritical:
		h.logger.LogError("🔴 CRITICAL Modbus Error: %s", err.Error())
	case SeverityError:
		h.logger.LogError("❌ Modbus Error: %s", err.Error())
	case SeverityWarning:
		h.logger.LogWarn("⚠️ Modbus Warning: %s", err.Error())
	default:
		h.logger.LogInfo("ℹ️ Modbus Info: %s", err.Error())
	}

	if h.diagnosticPublisher != nil {
		message := fmt.Sprintf("Unit '%s' addr %d: %s", err.Unit, err.Address, err.Op)
		if publishErr := h.diagnosticPublisher.PublishDiagnostic(ctx, err.Code, message); publishErr != nil {
			h.logger.LogDebug("Failed to publish Modbus error diagnostic: %v", publishErr)
		}
	}
}

func (h *ErrorHandler) handleMqttError(ctx context.Context, err *MqttError) {
	switch err.Severity {
	case SeverityCritical:
		h.logger.LogError("🔴 CRITICAL MQTT Error: %s", err.Error())
	case SeverityError:
		h.logger.LogError("❌ MQTT Error: %s", err.Error())
	case SeverityWarning:
		h.logger.LogWarn("⚠️ MQTT Warning: %s", err.Error())
	default:
		h.logger.LogInfo("ℹ️ MQTT Info: %s", err.Error())
	}

	if h.diagnosticPublisher != nil {
		message := fmt.Sprintf("Broker '%s': %s", err.Broker, err.Op)
		if publishErr := h.diagnosticPublisher.PublishDiagnostic(ctx, err.Code, message); publishErr != nil {
			h.logger.LogDebug("Failed to publish MQTT error diagnostic: %v", publishErr)
		}
	}
}

func (h *ErrorHandler) handleConfigError(ctx context.Context, err *ConfigError) {
	h.logger.LogError("🔴 CRITICAL Configuration Error: %s", err.Error())

	if h.diagnosticPublisher != nil {
		message := fmt.Sprintf("Config field '%s': %s", err.Field, err.Op)
		if publishErr := h.diagnosticPublisher.PublishDiagnostic(ctx, err.Code, message); publishErr != nil {
			h.logger.LogDebug("Failed to publish config error diagnostic: %v", publishErr)
		}
	}
}

func (h *ErrorHandler) handleValidationError(ctx context.Context, err *ValidationError) {
	h.logger.LogWarn("⚠️ Validation Error: %s", err.Error())

	if h.diagnosticPublisher != nil {
		message := fmt.Sprintf("Validation failed for '%s'", err.Field)
		if publishErr := h.diagnosticPublisher.PublishDiagnostic(ctx, err.Code, message); publishErr != nil {
			h.logger.LogDebug("Failed to publish validation error diagnostic: %v", publishErr)
		}
	}
}

func (h *ErrorHandler) handleBridgeError(ctx context.Context, err *BridgeError) {
	switch err.Severity {
	case SeverityCritical:
		h.logger.LogError("🔴 CRITICAL Error: %s", err.Error())
	case SeverityError:
		h.logger.LogError("❌ Error: %s", err.Error())
	case SeverityWarning:
		h.logger.LogWarn("⚠️ Warning: %s", err.Error())
	default:
		h.logger.LogInfo("ℹ️ Info: %s", err.Error())
	}

	if h.diagnosticPublisher != nil {
		if publishErr := h.diagnosticPublisher.PublishDiagnostic(ctx, err.Code, err.Op); publishErr != nil {
			h.logger.LogDebug("Failed to publish error diagnostic: %v", publishErr)
		}
	}
}

func (h *ErrorHandler) handleGenericError(ctx context.Context, err error) {
	h.logger.LogError("❌ Untyped Error: %v", err)

	if h.diagnosticPublisher != nil {
		if publishErr := h.diagnosticPublisher.PublishDiagnostic(ctx, 99, err.Error()); publishErr != nil {
			h.logger.LogDebug("Failed to publish generic error diagnostic: %v", publishErr)
		}
	}
}

// IsRecoverable returns true if the error does not warrant process exit
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}

	switch e := err.(type) {
	case *ConfigError:
		return false
	case *HardwareError:
		return e.Severity != SeverityCritical
	case *ModbusError:
		return e.Severity != SeverityCritical
	case *MqttError:
		return e.Severity != SeverityCritical
	case *UnexpectedError:
		return e.Severity != SeverityCritical
	case *BridgeError:
		return e.Severity != SeverityCritical
	default:
		return true
	}
}

// GetDiagnosticCode extracts the diagnostic code from an error
func GetDiagnosticCode(err error) int {
	if err == nil {
		return 0
	}

	switch e := err.(type) {
	case *HardwareError:
		return e.Code
	case *ModbusError:
		return e.Code
	case *MqttError:
		return e.Code
	case *ConfigError:
		return e.Code
	case *ValidationError:
		return e.Code
	case *BridgeError:
		return e.Code
	default:
		return 99
	}
}
