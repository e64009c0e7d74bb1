package ir

// Version constants for the persisted formats and the application.
const (
	// LogFormatVersion is the version of the serialized event log format.
	LogFormatVersion = "1"

	// AppVersion is the rally application version.
	AppVersion = "0.1.0"
)
