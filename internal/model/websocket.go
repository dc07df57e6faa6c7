package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage is pushed to job subscribers on every progress update
type WSProgressMessage struct {
	Type    string    `json:"type"`
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
	Stage   string    `json:"stage,omitempty"`
	Percent int       `json:"percent"`
}

// WSCompleteMessage is pushed when extraction finishes successfully
type WSCompleteMessage struct {
	Type      string   `json:"type"`
	JobID     string   `json:"jobId"`
	Artifacts []string `json:"artifacts"`
}

// WSErrorMessage is pushed when extraction fails
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError carries the failure details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
