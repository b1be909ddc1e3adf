package model

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	// Kind is "decode" or "processing" for pipeline failures.
	Kind string `json:"kind,omitempty"`
}

// StatusResponse answers the liveness routes.
type StatusResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

const (
	KindDecode     = "decode"
	KindProcessing = "processing"
)
