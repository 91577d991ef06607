package web

import "time"

// APIResponse is the standard response envelope for every API endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError represents an error in an API response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunStatus is the JSON projection of a store.Run.
type RunStatus struct {
	ID              string    `json:"id"`
	SourcePath      string    `json:"sourcePath"`
	TargetPath      string    `json:"targetPath"`
	Status          string    `json:"status"`
	LastChangesetID int64     `json:"lastChangesetId"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ProgressEvent is a WebSocket event describing a run's progress.
type ProgressEvent struct {
	Type string       `json:"type"`
	Data ProgressData `json:"data"`
}

// ProgressData mirrors progress.Status plus the run it belongs to.
type ProgressData struct {
	RunID      string  `json:"runId"`
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Operation  string  `json:"operation"`
}

// ServerConfig configures the read-only monitor server.
type ServerConfig struct {
	Port int
}

// HealthStatus is the health check response body.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse builds a failed APIResponse.
func ErrorResponse(code, message string) APIResponse {
	return APIResponse{Success: false, Error: &APIError{Code: code, Message: message}}
}

// SuccessResponse builds a successful APIResponse.
func SuccessResponse(data interface{}) APIResponse {
	return APIResponse{Success: true, Data: data}
}
