package types

// SuccessEnvelope wraps every successful API response body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the wire form of a failed request. Details carries structured
// context such as computed debit and credit totals on validation failures.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every failed API response body.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
