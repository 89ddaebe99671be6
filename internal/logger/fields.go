package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Tracing Fields (Context level)
// Propagated through the call chain of a request or run
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldRunID is the import run ID
	FieldRunID = "run_id"

	// FieldFileType is the logical file type of the run
	FieldFileType = "file_type"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldSource is the remote file name being ingested
	FieldSource = "source"

	// FieldActor is the operator acting on a run
	FieldActor = "actor"
)

// ============================================
// Metric Fields (Entry level)
// Used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldBatch is the zero-based batch index of a write
	FieldBatch = "batch"
)
