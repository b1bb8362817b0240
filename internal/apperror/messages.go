package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",
	CodeConfigInvalid:      "Configuration failed validation",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Venue errors
	CodeVenueTransient:      "Venue call failed transiently",
	CodeWebSocketDisconnect: "Venue WebSocket connection dropped",
	CodeVenueAuthFailure:    "Venue authentication failed",
	CodeBookStale:           "Order book entry exceeded freshness TTL",

	// Execution abort errors
	CodeNoLiquidity:   "Insufficient top-of-book liquidity for requested size",
	CodeBadPrice:      "Observed price failed sanity check",
	CodeBelowMinOrder: "Order size below venue minimum",

	// Risk and execution outcomes
	CodeRiskRejected:  "Risk gate rejected the trade",
	CodePartialFill:   "One or both legs partially filled",
	CodeUnwindFailed:  "Unwind of excess leg failed",
	CodeOrderRejected: "Venue rejected the order",
	CodeKillSwitch:    "Kill switch engaged, trading halted until restart",

	// Matching and detection
	CodeNoEquivalentMarket:             "No equivalent market found on the other venue",
	CodeOutcomeTokenFallbackPositional: "Outcome token resolved by position, not by label",

	// Persistence
	CodePersistenceWriteFailed: "Failed to persist record",
	CodeEventLogQueueFull:      "Event log queue full, record dropped",
}
