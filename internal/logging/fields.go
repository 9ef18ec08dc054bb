package logging

// Common structured log field keys to keep logs searchable/consistent.
const (
	FieldService     = "service"
	FieldVersion     = "version"
	FieldRequestID   = "request_id"
	FieldPath        = "path"
	FieldMethod      = "method"
	FieldStatusCode  = "status_code"
	FieldUser        = "user"
	FieldChallenge   = "challenge"
	FieldParticipant = "participant"
	FieldTeam        = "team"
	FieldDate        = "date"
	FieldCount       = "count"
	FieldDurationMS  = "duration_ms"
	FieldWatermark   = "watermark"
)
