package response

type StandardApiResponse struct {
	Status     string      `json:"status"`           // "success" or "error"
	StatusCode int         `json:"status_code"`      // HTTP status code
	Message    string      `json:"message"`          // Human-readable message
	Data       interface{} `json:"data,omitempty"`   // Payload for success
	Errors     interface{} `json:"errors,omitempty"` // Validation or error details
}

// ErrorDetail is the errors payload for typed service failures.
type ErrorDetail struct {
	Code    string   `json:"code"`
	Message string   `json:"message,omitempty"`
	Seats   []string `json:"seats,omitempty"`
}
