package ir

// Version constants for the record format and engine.
const (
	// RecordVersion is the version of the record envelope written to logs.
	RecordVersion = "1"

	// EngineVersion is the tokenflow engine version.
	EngineVersion = "0.1.0"
)
