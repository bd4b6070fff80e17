package models

// ChatRequest is the body of a chat request.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the reply to a chat request. Doctors is never nil so it encodes as [].
type ChatResponse struct {
	Response string            `json:"response"`
	Doctors  []ProviderSummary `json:"doctors"`
}
