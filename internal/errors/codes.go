package errors

// Common error codes
const (
	// System errors
	ErrInternal         ErrorCode = "internal_error"
	ErrInvalidArgument  ErrorCode = "invalid_argument"
	ErrInvalidOperation ErrorCode = "invalid_operation"
	ErrTimeout          ErrorCode = "operation_timeout"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"
	ErrInvalidEndpoint ErrorCode = "invalid_endpoint"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrInstanceLocked ErrorCode = "instance_running"

	// Rig errors, recovered at the component boundary and reported to the operator
	ErrTransport      ErrorCode = "transport_error"
	ErrParse          ErrorCode = "parse_error"
	ErrNotConnected   ErrorCode = "not_connected"
	ErrAlreadyRunning ErrorCode = "already_running"
	ErrEmptyLog       ErrorCode = "empty_log"
	ErrSaveFailed     ErrorCode = "save_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:         "Internal error occurred",
	ErrInvalidArgument:  "Invalid argument provided",
	ErrInvalidOperation: "Invalid operation",
	ErrTimeout:          "Operation timed out",
	ErrInvalidConfig:    "Invalid configuration",
	ErrBindFlags:        "Failed to bind flags",
	ErrReadConfig:       "Failed to read config file",
	ErrInvalidLogLevel:  "Invalid log level",
	ErrInvalidEndpoint:  "Invalid controller endpoint",
	ErrInitFailed:       "Initialization failed",
	ErrShutdownFailed:   "Shutdown failed",
	ErrInstanceLocked:   "Another benchctl instance is running",
	ErrTransport:        "Connection to controller failed",
	ErrParse:            "Unrecognized message from controller",
	ErrNotConnected:     "Not connected to controller",
	ErrAlreadyRunning:   "Benchmark already running",
	ErrEmptyLog:         "Session log is empty",
	ErrSaveFailed:       "Failed to save export",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
