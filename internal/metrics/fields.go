package metrics

// Common metric attribute keys to keep telemetry consistent/searchable.
const (
	AttrMethod  = "method"
	AttrPath    = "path"
	AttrStatus  = "status"
	AttrOutcome = "outcome"
)

// Refresh outcome attribute values, matching the error taxonomy.
const (
	OutcomeOK                = "ok"
	OutcomeMissingCredential = "missing_credential"
	OutcomeUpstreamError     = "upstream_error"
	OutcomeStoreError        = "store_error"
	OutcomeInvalidTimezone   = "invalid_timezone"
)
