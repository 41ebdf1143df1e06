package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Context-level fields, propagated through the call chain.
const (
	FieldRequestID  = "request_id"
	FieldSearchID   = "search_id"
	FieldComponent  = "component"
	FieldPromptID   = "prompt_id"
	FieldEntryPoint = "entry_point" // search, admin, preset:<name>
	FieldSource     = "source"      // catalog source during imports
)

// Entry-level metric fields, used for aggregation and alerting.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldStatus     = "status"
	FieldSize       = "size"
	FieldCacheHit   = "cache_hit"
)
