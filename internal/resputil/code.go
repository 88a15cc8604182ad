package resputil

// Reason strings surfaced in the response envelope. The frontend switches
// on these, so they are part of the API contract.
const (
	ReasonValidation   = "validation error"
	ReasonNotFound     = "notfound"
	ReasonUnauthorized = "unauthorized"
	ReasonForbidden    = "forbidden"
	ReasonUnknown      = "unknown"
)

// Envelope types
const (
	TypeInfo    = "info"
	TypeSuccess = "success"
	TypeError   = "error"
)
