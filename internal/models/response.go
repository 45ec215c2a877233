package models

// APIResponse is the bridge API response wrapper
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Stage   string      `json:"stage,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   message,
	}
}

// NewStageErrorResponse reports a photo-update failure together with the stage that failed.
func NewStageErrorResponse(message string, stage UploadState, data interface{}) APIResponse {
	return APIResponse{
		Success: false,
		Error:   message,
		Stage:   string(stage),
		Data:    data,
	}
}

// NewValidationErrorResponse lists the fields that failed validation.
func NewValidationErrorResponse(fields []string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   "Validation failed",
		Errors:  fields,
	}
}

// ProjectionResponse is the bridge rendering of the profile projection.
type ProjectionResponse struct {
	Status string       `json:"status"`
	View   *ProfileView `json:"view,omitempty"`
	Error  string       `json:"error,omitempty"`
}
